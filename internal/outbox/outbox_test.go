package outbox

import (
	"testing"
	"time"
)

func TestClaimOnlyReadyAndVisible(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Enqueue(Message{ID: "m1", Status: StatusReady, VisibleAt: now.Add(-time.Minute)})
	s.Enqueue(Message{ID: "m2", Status: StatusReady, VisibleAt: now.Add(time.Hour)}) // not yet visible
	s.Enqueue(Message{ID: "m3", Status: StatusDelivered, VisibleAt: now.Add(-time.Minute)})

	claimed := s.Claim(10, "worker-1", now)
	if len(claimed) != 1 || claimed[0].ID != "m1" {
		t.Fatalf("expected only m1 claimed, got %+v", claimed)
	}
	got, _ := s.Get("m1")
	if got.Status != StatusSending || got.WorkerID != "worker-1" {
		t.Fatalf("expected m1 SENDING/worker-1, got %+v", got)
	}
	if !got.LockExpiresAt.Equal(now.Add(lockDuration)) {
		t.Fatalf("expected lock_expires_at = now + lockDuration, got %v", got.LockExpiresAt)
	}
}

func TestClaimRespectsLimitAndOrder(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Enqueue(Message{ID: "later", Status: StatusReady, VisibleAt: now.Add(-time.Minute)})
	s.Enqueue(Message{ID: "earlier", Status: StatusReady, VisibleAt: now.Add(-time.Hour)})

	claimed := s.Claim(1, "w", now)
	if len(claimed) != 1 || claimed[0].ID != "earlier" {
		t.Fatalf("expected oldest-visible claimed first, got %+v", claimed)
	}
}

func TestClaimIsDisjointAcrossCalls(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Enqueue(Message{ID: string(rune('a' + i)), Status: StatusReady, VisibleAt: now.Add(-time.Minute)})
	}
	c1 := s.Claim(3, "w1", now)
	c2 := s.Claim(3, "w2", now)
	if len(c1) != 3 || len(c2) != 2 {
		t.Fatalf("expected 3 then 2 claimed, got %d then %d", len(c1), len(c2))
	}
	seen := map[string]bool{}
	for _, m := range append(c1, c2...) {
		if seen[m.ID] {
			t.Fatalf("message %s claimed twice", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestReapRetriesBelowMaxAttempts(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Enqueue(Message{ID: "m1", Status: StatusSending, LockExpiresAt: now.Add(-time.Second), AttemptCount: 0})

	retried, dead := s.Reap(now, time.Second)
	if len(dead) != 0 || len(retried) != 1 || retried[0] != "m1" {
		t.Fatalf("expected m1 retried, got retried=%v dead=%v", retried, dead)
	}
	got, _ := s.Get("m1")
	if got.Status != StatusRetrying || got.AttemptCount != 1 {
		t.Fatalf("expected RETRYING attempt=1, got %+v", got)
	}
	if !got.VisibleAt.After(now) {
		t.Fatalf("expected visible_at pushed into the future, got %v", got.VisibleAt)
	}
}

func TestReapDeclaresDeadAtMaxAttempts(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Enqueue(Message{ID: "m1", Status: StatusSending, LockExpiresAt: now.Add(-time.Second), AttemptCount: maxAttempts - 1})

	retried, dead := s.Reap(now, time.Second)
	if len(retried) != 0 || len(dead) != 1 || dead[0] != "m1" {
		t.Fatalf("expected m1 dead, got retried=%v dead=%v", retried, dead)
	}
	got, _ := s.Get("m1")
	if got.Status != StatusDead {
		t.Fatalf("expected DEAD, got %+v", got)
	}
}

func TestReapIgnoresUnexpiredLocks(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Enqueue(Message{ID: "m1", Status: StatusSending, LockExpiresAt: now.Add(time.Minute)})

	retried, dead := s.Reap(now, time.Second)
	if len(retried) != 0 || len(dead) != 0 {
		t.Fatalf("expected nothing reaped, got retried=%v dead=%v", retried, dead)
	}
}

func TestComputeBackoffCapsAndJitters(t *testing.T) {
	SeedJitter(42)
	base := time.Second
	d1 := ComputeBackoff(1, base)
	if d1 < base || d1 > time.Duration(float64(base)*1.15) {
		t.Fatalf("attempt 1 backoff out of expected [base, base*1.15] range: %v", d1)
	}

	// Large attempt counts must be capped at 2700s before jitter.
	dHuge := ComputeBackoff(20, base)
	maxExpected := time.Duration(2700 * 1.15 * float64(time.Second))
	if dHuge > maxExpected {
		t.Fatalf("expected backoff capped near 2700s*1.15, got %v", dHuge)
	}
}
