// Package reqsign implements spec.md §6's internal request signing V2
// canonical form and nonce replay tracking. Unlike internal/outbox and
// internal/webhook, this is not a stub for an out-of-scope collaborator:
// internal request signing secures calls between solvereign's own
// components, so it is implemented end to end.
package reqsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrReplay is returned for a nonce already seen within its TTL window
	// (spec.md §6: reuse => 403 REPLAY_ATTACK).
	ErrReplay = errors.New("reqsign: replay attack detected")
	// ErrBadSignature covers both signature mismatch and body-hash
	// mismatch (spec.md §6: body-hash mismatch => 401).
	ErrBadSignature = errors.New("reqsign: bad signature")
	// ErrClockSkew covers timestamps outside the ±120s window.
	ErrClockSkew = errors.New("reqsign: timestamp outside allowed window")
)

// timestampWindow is spec.md §6's ±120s tolerance.
const timestampWindow = 120 * time.Second

// nonceTTL is the replay table retention: window + buffer, so a nonce
// remains rejected slightly longer than the timestamp could ever be valid.
const nonceTTL = timestampWindow + 30*time.Second

// Request carries the fields the V2 canonical form is built from.
type Request struct {
	Method          string
	CanonicalPath   string
	Timestamp       int64 // unix seconds
	Nonce           string
	TenantCode      string
	SiteCode        string
	IsPlatformAdmin bool
	Body            []byte
}

// CanonicalForm renders spec.md §6's exact V2 string:
//
//	METHOD|CANONICAL_PATH|TIMESTAMP|NONCE|TENANT_CODE|SITE_CODE|IS_PLATFORM_ADMIN|SHA256(body)
func CanonicalForm(r Request) string {
	bodyHash := sha256.Sum256(r.Body)
	return strings.Join([]string{
		r.Method,
		r.CanonicalPath,
		strconv.FormatInt(r.Timestamp, 10),
		r.Nonce,
		r.TenantCode,
		r.SiteCode,
		strconv.FormatBool(r.IsPlatformAdmin),
		hex.EncodeToString(bodyHash[:]),
	}, "|")
}

// Sign returns the hex-lowercase HMAC-SHA256 of the canonical form under
// key, the form internal callers attach as the request signature.
func Sign(key []byte, r Request) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(CanonicalForm(r)))
	return hex.EncodeToString(mac.Sum(nil))
}

// NonceStore tracks recently-seen nonces so a Verifier can detect replays.
// Mutex-guarded in-memory map; spec.md §6 describes it as "a replay table
// with TTL" without mandating a backend, and nothing here precludes a
// sqlite-backed implementation of the same interface for multi-process
// deployments.
type NonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // nonce -> expiry
}

// NewNonceStore returns an empty replay table.
func NewNonceStore() *NonceStore {
	return &NonceStore{seen: make(map[string]time.Time)}
}

// CheckAndRemember reports whether nonce has been seen before its prior
// recording expired; if not, it records nonce with a fresh TTL from now.
// Expired entries are swept opportunistically on every call, so the table
// never grows unbounded.
func (n *NonceStore) CheckAndRemember(nonce string, now time.Time) (replay bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for k, expiry := range n.seen {
		if !expiry.After(now) {
			delete(n.seen, k)
		}
	}

	if expiry, ok := n.seen[nonce]; ok && expiry.After(now) {
		return true
	}
	n.seen[nonce] = now.Add(nonceTTL)
	return false
}

// Verifier validates inbound signed requests: signature correctness,
// timestamp freshness, and nonce replay, in that order per spec.md §6's
// 401/403 distinction (signature failures are 401, replays are 403).
type Verifier struct {
	Key    []byte
	Nonces *NonceStore
}

// Verify checks sig against r, rejecting with ErrBadSignature,
// ErrClockSkew, or ErrReplay as appropriate. now is the verifier's clock,
// passed explicitly so it stays pure/testable.
func (v Verifier) Verify(r Request, sig string, now time.Time) error {
	want := Sign(v.Key, r)
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return ErrBadSignature // unreachable: Sign always emits valid hex
	}
	if subtle.ConstantTimeCompare(got, wantBytes) != 1 {
		return ErrBadSignature
	}

	signedAt := time.Unix(r.Timestamp, 0)
	skew := now.Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > timestampWindow {
		return ErrClockSkew
	}

	if v.Nonces.CheckAndRemember(r.Nonce, now) {
		return ErrReplay
	}
	return nil
}
