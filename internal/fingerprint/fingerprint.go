// Package fingerprint implements the canonical hashing primitives used
// across solvereign: tour template fingerprints, block/column fingerprints,
// dedup keys, and canonical-JSON content hashes for plans and forecasts.
//
// Every function here is pure and deterministic: same bytes in, same hex
// digest out.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TourTemplateFingerprint implements spec.md §3:
// hex(SHA-256(day|start|end|depot|skill)).
func TourTemplateFingerprint(day, startMin, endMin int, depot, skill string) string {
	input := strings.Join([]string{
		strconv.Itoa(day),
		strconv.Itoa(startMin),
		strconv.Itoa(endMin),
		depot,
		skill,
	}, "|")
	return SHA256Hex(input)
}

// BlockFingerprint hashes a block identity for block-pool dedup: sorted
// (day, kind, sorted tour instance ids).
func BlockFingerprint(day int, kind string, tourInstanceIDs []string) string {
	ids := append([]string(nil), tourInstanceIDs...)
	sort.Strings(ids)
	input := strconv.Itoa(day) + "|" + kind + "|" + strings.Join(ids, ",")
	return SHA256Hex(input)
}

// ColumnFingerprint implements spec.md §4.2: SHA-256 over sorted
// (day, block_kind, sorted_tour_instance_ids) across all seven days.
func ColumnFingerprint(dayBlocks []DayBlockKey) string {
	keys := append([]DayBlockKey(nil), dayBlocks...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Day < keys[j].Day })
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		ids := append([]string(nil), k.TourInstanceIDs...)
		sort.Strings(ids)
		b.WriteString(strconv.Itoa(k.Day))
		b.WriteByte(':')
		b.WriteString(k.Kind)
		b.WriteByte(':')
		b.WriteString(strings.Join(ids, ","))
	}
	return SHA256Hex(b.String())
}

// DayBlockKey is the per-day component fed into ColumnFingerprint.
type DayBlockKey struct {
	Day             int
	Kind            string
	TourInstanceIDs []string
}

// DedupKey implements the exact message-outbox algorithm of spec.md §6:
//
//	input = join('|', tenant_id, site_id?, snapshot_id?, driver_id, channel, template, template_version)
//	dedup_key = hex(sha256(utf8(input)))
//
// All nullable fields become empty strings before joining.
func DedupKey(tenantID, siteID, snapshotID, driverID, channel, template, templateVersion string) string {
	input := strings.Join([]string{tenantID, siteID, snapshotID, driverID, channel, template, templateVersion}, "|")
	return SHA256Hex(input)
}

// Canonicalize normalizes whitespace in s: trims leading/trailing space on
// every line and collapses internal runs of space/tab, matching the
// "sorted keys, normalized whitespace" canonicalization spec.md §4.7 and
// §6 require for forecasts and plan JSON prior to hashing.
func Canonicalize(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

// ContentHash hashes already-canonicalized content (e.g. canonical JSON
// produced by encoding/json with sorted struct-tag field order).
func ContentHash(canonical string) string {
	return SHA256Hex(canonical)
}
