package reqsign

import (
	"testing"
	"time"
)

func sampleRequest(now time.Time) Request {
	return Request{
		Method:          "POST",
		CanonicalPath:   "/v1/plans/plan-1/publish",
		Timestamp:       now.Unix(),
		Nonce:           "nonce-1",
		TenantCode:      "tenant-a",
		SiteCode:        "site-1",
		IsPlatformAdmin: false,
		Body:            []byte(`{"actor":"alice"}`),
	}
}

func TestVerifyAcceptsFreshSignedRequest(t *testing.T) {
	key := []byte("internal-signing-key")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := sampleRequest(now)
	sig := Sign(key, r)

	v := Verifier{Key: key, Nonces: NewNonceStore()}
	if err := v.Verify(r, sig, now); err != nil {
		t.Fatalf("expected valid request to verify, got %v", err)
	}
}

func TestVerifyRejectsBodyTamper(t *testing.T) {
	key := []byte("internal-signing-key")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := sampleRequest(now)
	sig := Sign(key, r)

	r.Body = []byte(`{"actor":"mallory"}`)
	v := Verifier{Key: key, Nonces: NewNonceStore()}
	if err := v.Verify(r, sig, now); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsClockSkew(t *testing.T) {
	key := []byte("internal-signing-key")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := sampleRequest(now)
	sig := Sign(key, r)

	v := Verifier{Key: key, Nonces: NewNonceStore()}
	tooLate := now.Add(121 * time.Second)
	if err := v.Verify(r, sig, tooLate); err != ErrClockSkew {
		t.Fatalf("expected ErrClockSkew, got %v", err)
	}
}

func TestVerifyRejectsReplayedNonce(t *testing.T) {
	key := []byte("internal-signing-key")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := sampleRequest(now)
	sig := Sign(key, r)
	nonces := NewNonceStore()

	v := Verifier{Key: key, Nonces: nonces}
	if err := v.Verify(r, sig, now); err != nil {
		t.Fatalf("first verify should succeed, got %v", err)
	}
	if err := v.Verify(r, sig, now.Add(time.Second)); err != ErrReplay {
		t.Fatalf("expected ErrReplay on reuse, got %v", err)
	}
}

func TestNonceStoreExpiresOldEntries(t *testing.T) {
	n := NewNonceStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if replay := n.CheckAndRemember("n1", now); replay {
		t.Fatalf("first sighting must not be a replay")
	}
	afterTTL := now.Add(nonceTTL + time.Second)
	if replay := n.CheckAndRemember("n1", afterTTL); replay {
		t.Fatalf("expected nonce to have expired past its TTL")
	}
}

func TestCanonicalFormFieldOrder(t *testing.T) {
	r := Request{
		Method:          "GET",
		CanonicalPath:   "/v1/status",
		Timestamp:       1234,
		Nonce:           "abc",
		TenantCode:      "t1",
		SiteCode:        "s1",
		IsPlatformAdmin: true,
		Body:            nil,
	}
	form := CanonicalForm(r)
	want := "GET|/v1/status|1234|abc|t1|s1|true|" + hexSHA256Empty
	if form != want {
		t.Fatalf("canonical form mismatch:\ngot  %s\nwant %s", form, want)
	}
}

// hexSHA256Empty is SHA-256 of the empty byte string, used to pin the
// canonical form's exact field order/content independent of the hashing
// implementation.
const hexSHA256Empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
