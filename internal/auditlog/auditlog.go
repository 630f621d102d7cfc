// Package auditlog implements the hash-chained append-only audit log
// referenced throughout spec.md: every governance action (publish, lock,
// repair apply, kill-switch flip) is recorded as one JSONL entry whose hash
// commits to the entry before it, so any tamper is detectable by re-walking
// the chain.
//
// The JSONL-append shape (os.O_APPEND file, buffered json.Encoder, one
// event per line) is grounded directly on the teacher's internal/audit
// package; the hash-chaining on top is new, since the teacher's log is
// append-only by convention but not tamper-evident.
package auditlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/DRNaser/solvereign/internal/fingerprint"
)

// GenesisHash seeds the chain: sha256("GENESIS").
var GenesisHash = fingerprint.SHA256Hex("GENESIS")

// Severity levels attached to an event.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
	SeverityCrit Severity = "CRITICAL"
)

// Event is one hash-chained audit-log entry.
type Event struct {
	Seq         int             `json:"seq"`
	Timestamp   time.Time       `json:"ts"`
	EventType   string          `json:"event_type"`
	Tenant      string          `json:"tenant"`
	User        string          `json:"user"`
	Severity    Severity        `json:"severity"`
	DetailsJSON string          `json:"details_json"`
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
}

// ComputeHash implements h_i = sha256(h_{i-1} || ts || event_type || tenant
// || user || severity || details_json), with ts rendered as RFC3339Nano so
// the chain is stable across re-marshaling. Exported so other hash-chained
// stores (internal/store/sqlite's DB-backed audit_log table) derive
// entries with the exact same formula instead of a parallel
// re-implementation.
func ComputeHash(prevHash string, ts time.Time, eventType, tenant, user string, severity Severity, detailsJSON string) string {
	input := strings.Join([]string{
		prevHash,
		ts.UTC().Format(time.RFC3339Nano),
		eventType,
		tenant,
		user,
		string(severity),
		detailsJSON,
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Log is an append-only, hash-chained JSONL file.
type Log struct {
	path     string
	lastHash string
	nextSeq  int
}

// Open loads an existing log (verifying its chain) or creates an empty one.
func Open(path string) (*Log, error) {
	l := &Log{path: path, lastHash: GenesisHash, nextSeq: 1}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode audit log line: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log %s: %w", path, err)
	}
	if ok, brokenIdx := VerifyChain(events); !ok {
		return nil, fmt.Errorf("audit log %s: hash chain broken at entry %d", path, brokenIdx)
	}
	if n := len(events); n > 0 {
		l.lastHash = events[n-1].Hash
		l.nextSeq = events[n-1].Seq + 1
	}
	return l, nil
}

// Append writes one new hash-chained entry, canonicalizing details to JSON
// via sorted map keys (encoding/json's default for map[string]any) before
// it enters the hash.
func (l *Log) Append(eventType, tenant, user string, severity Severity, details map[string]any) (Event, error) {
	detailsBytes, err := marshalSortedDetails(details)
	if err != nil {
		return Event{}, fmt.Errorf("marshal audit details: %w", err)
	}
	detailsJSON := fingerprint.Canonicalize(string(detailsBytes))
	ts := time.Now().UTC()

	e := Event{
		Seq:         l.nextSeq,
		Timestamp:   ts,
		EventType:   eventType,
		Tenant:      tenant,
		User:        user,
		Severity:    severity,
		DetailsJSON: detailsJSON,
		PrevHash:    l.lastHash,
	}
	e.Hash = ComputeHash(e.PrevHash, e.Timestamp, e.EventType, e.Tenant, e.User, e.Severity, e.DetailsJSON)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Event{}, fmt.Errorf("open audit log %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return Event{}, fmt.Errorf("write audit log entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return Event{}, fmt.Errorf("flush audit log: %w", err)
	}

	l.lastHash = e.Hash
	l.nextSeq++
	return e, nil
}

// marshalSortedDetails renders details with keys sorted. The sorted keys are
// copied into a new map, so the key order in the output comes from
// encoding/json, which always writes map keys in sorted order.
func marshalSortedDetails(details map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]any, len(details))
	for _, k := range keys {
		ordered[k] = details[k]
	}
	return json.Marshal(ordered)
}

// VerifyChain re-derives every entry's hash from its predecessor and
// reports whether the chain is intact. On break, brokenIndex is the
// (0-based) index of the first entry whose stored hash no longer matches
// its re-derived hash, or whose prev_hash no longer matches the previous
// entry's (or genesis's) hash.
func VerifyChain(events []Event) (ok bool, brokenIndex int) {
	prev := GenesisHash
	for i, e := range events {
		if e.PrevHash != prev {
			return false, i
		}
		want := ComputeHash(e.PrevHash, e.Timestamp, e.EventType, e.Tenant, e.User, e.Severity, e.DetailsJSON)
		if e.Hash != want {
			return false, i
		}
		prev = e.Hash
	}
	return true, -1
}
