// Package outbox implements spec.md §6's outbox claim protocol and backoff
// formula as a standalone, unit-testable component: the dispatcher process
// that actually sends messages over a network is an out-of-scope external
// collaborator (spec.md §1), but the claim/reap algorithm it would run
// against is part of the core and is implemented here in full, backed by an
// in-memory store standing in for the real message queue.
package outbox

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Status is a message's position in the outbox state machine.
type Status string

const (
	StatusReady     Status = "READY"
	StatusSending   Status = "SENDING"
	StatusRetrying  Status = "RETRYING"
	StatusDead      Status = "DEAD"
	StatusDelivered Status = "DELIVERED"
)

// Message is one outbox row: a pending delivery to an external channel,
// identified by the same dedup key algorithm as fingerprint.DedupKey.
type Message struct {
	ID            string
	Tenant        string
	DedupKey      string
	Channel       string
	Payload       string
	Status        Status
	AttemptCount  int
	VisibleAt     time.Time
	LockExpiresAt time.Time
	WorkerID      string
}

// maxAttempts bounds retries before a message is declared DEAD.
const maxAttempts = 8

// lockDuration is how long a claimed row stays SENDING before the reaper
// considers the claiming worker dead and releases it.
const lockDuration = 30 * time.Second

// Store is an in-memory, mutex-guarded stand-in for the real outbox table:
// the SKIP-LOCKED semantics spec.md §6 describes for a SQL backend are
// reproduced here with a single mutex, since there is exactly one writer.
type Store struct {
	mu       sync.Mutex
	messages map[string]*Message
}

// NewStore returns an empty outbox.
func NewStore() *Store {
	return &Store{messages: make(map[string]*Message)}
}

// Enqueue adds msg, setting an empty Status to READY; it is visible
// immediately unless VisibleAt is already set.
func (s *Store) Enqueue(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Status == "" {
		msg.Status = StatusReady
	}
	cp := msg
	s.messages[msg.ID] = &cp
}

// Get returns a copy of the message with the given id, if present.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Claim atomically claims up to n READY-or-RETRYING rows visible at or
// before now, setting them SENDING with lock_expires_at = now + lock
// duration and worker_id = workerID. Rows are claimed in (visible_at, id)
// order so workers drain the oldest backlog first; two concurrent callers
// against the same Store always see disjoint rows because the whole
// selection-and-mutation runs under one mutex, the in-memory equivalent of
// `SELECT ... FOR UPDATE SKIP LOCKED`.
func (s *Store) Claim(n int, workerID string, now time.Time) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		if (m.Status == StatusReady || m.Status == StatusRetrying) && !m.VisibleAt.After(now) {
			candidates = append(candidates, m)
		}
	}
	sortByVisibleThenID(candidates)

	if n < len(candidates) {
		candidates = candidates[:n]
	}
	claimed := make([]Message, 0, len(candidates))
	for _, m := range candidates {
		m.Status = StatusSending
		m.LockExpiresAt = now.Add(lockDuration)
		m.WorkerID = workerID
		claimed = append(claimed, *m)
	}
	return claimed
}

func sortByVisibleThenID(ms []*Message) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0; j-- {
			a, b := ms[j-1], ms[j]
			if a.VisibleAt.Before(b.VisibleAt) || (a.VisibleAt.Equal(b.VisibleAt) && a.ID <= b.ID) {
				break
			}
			ms[j-1], ms[j] = ms[j], ms[j-1]
		}
	}
}

// MarkDelivered transitions a claimed message to DELIVERED.
func (s *Store) MarkDelivered(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		m.Status = StatusDelivered
	}
}

// Reap releases every SENDING row whose lock has expired: attempt_count is
// incremented, and the row moves to RETRYING (with visible_at pushed out by
// the backoff formula) or DEAD once attempt_count reaches max attempts. Returns the
// ids that were retried and the ids that died.
func (s *Store) Reap(now time.Time, base time.Duration) (retried, dead []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.Status != StatusSending || !m.LockExpiresAt.Before(now) {
			continue
		}
		m.AttemptCount++
		m.WorkerID = ""
		if m.AttemptCount >= maxAttempts {
			m.Status = StatusDead
			dead = append(dead, m.ID)
			continue
		}
		m.Status = StatusRetrying
		m.VisibleAt = now.Add(ComputeBackoff(m.AttemptCount, base))
		retried = append(retried, m.ID)
	}
	return retried, dead
}

// ComputeBackoff implements spec.md §6's exact formula:
//
//	delay = min(base * 5^(attempt-1), 2700) * (1 + U[0, 0.15])
//
// attempt is 1-indexed (the attempt that just failed). The jitter factor is
// drawn from the package-level PRNG; callers that need determinism can swap
// it via SeedJitter.
func ComputeBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	capped := math.Min(base.Seconds()*math.Pow(5, float64(attempt-1)), 2700)
	jitter := 1 + jitterSource.Float64()*0.15
	return time.Duration(capped * jitter * float64(time.Second))
}

// jitterSource is package-level so tests can replace it with a deterministic
// generator via SeedJitter without threading a *rand.Rand through every call.
var jitterSource = rand.New(rand.NewSource(1))

// SeedJitter reseeds the backoff jitter generator; intended for tests that
// need reproducible delay values.
func SeedJitter(seed int64) {
	jitterSource = rand.New(rand.NewSource(seed))
}
