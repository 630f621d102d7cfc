// Package blockbuilder implements spec.md §4.1: enumeration of legal
// 1/2/3-tour blocks for a single driver-day.
//
// The algorithm is pure and deterministic: BuildBlocks never performs I/O
// and never fails except by returning an empty slice for an empty day.
package blockbuilder

import (
	"sort"

	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/model"
)

// Gap zone boundaries, minutes (spec.md §3).
const (
	RegularGapMin = 30
	RegularGapMax = 120
	SplitGapMin   = 240
	SplitGapMax   = 360

	SpanRegularMax = 840 // 14h, for B1 and B2_REG
	SpanWideMax    = 960 // 16h, for B2_SPLIT and B3
)

// Caps holds the per-anchor pool-size limits K_2ER, K_2ER_SPLIT, K_3ER.
// K2ERBase is the uncapped pool size before cap_quota_2er is applied; the
// effective 2-tour-regular cap is max(1, round(CapQuota2ER*K2ERBase)), per
// the Open Question in spec.md §9 ("preserve it as a block-builder cap on
// 2-tour regular blocks per anchor tour").
type Caps struct {
	K2ERBase     int
	K2ERSplit    int
	K3ER         int
}

// DefaultCaps returns the pool-size defaults used absent tuning.
func DefaultCaps() Caps {
	return Caps{K2ERBase: 8, K2ERSplit: 4, K3ER: 4}
}

func (c Caps) effectiveK2ER(cfg config.Config) int {
	q := cfg.CapQuota2ER
	if q <= 0 {
		q = 1
	}
	k := int(q*float64(c.K2ERBase) + 0.5)
	if k < 1 {
		k = 1
	}
	return k
}

// gapZone classifies a gap in minutes; ok is false for the forbidden zone
// (120,240) or for a negative/overlapping gap.
func gapZone(gapMin int) (zone model.PauseZone, ok bool) {
	switch {
	case gapMin >= RegularGapMin && gapMin <= RegularGapMax:
		return model.PauseRegular, true
	case gapMin >= SplitGapMin && gapMin <= SplitGapMax:
		return model.PauseSplit, true
	default:
		return "", false
	}
}

// localEnd returns a tour instance's end expressed as day-local minutes
// from midnight of its own day, allowing values beyond 1440 when the tour
// crosses midnight (so gap arithmetic between same-day tours stays linear).
func localEnd(t model.TourInstance) int {
	return t.StartMin + t.DurationMin()
}

// BuildBlocks enumerates every feasible block for one driver-day, budgeted
// per anchor tour by caps, and returns them in the canonical deterministic
// order: lexicographic by (day, first_start, last_end, kind).
func BuildBlocks(day int, instances []model.TourInstance, caps Caps, cfg config.Config) []model.Block {
	if len(instances) == 0 {
		return nil
	}
	sorted := append([]model.TourInstance(nil), instances...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartMin != sorted[j].StartMin {
			return sorted[i].StartMin < sorted[j].StartMin
		}
		return sorted[i].EndMin < sorted[j].EndMin
	})

	k2er := caps.effectiveK2ER(cfg)

	var all []model.Block

	// B1: every single tour is always legal.
	for _, t := range sorted {
		all = append(all, makeBlock(day, []model.TourInstance{t}, nil))
	}

	// Group 2-tour and 3-tour candidates per anchor (the chronologically
	// first tour in the block).
	reg2ByAnchor := map[string][]rankedBlock{}
	split2ByAnchor := map[string][]rankedBlock{}
	reg3ByAnchor := map[string][]rankedBlock{}

	n := len(sorted)
	for i := 0; i < n; i++ {
		anchorID := sorted[i].ID()
		for j := i + 1; j < n; j++ {
			gap := sorted[j].StartMin - localEnd(sorted[i])
			zone, ok := gapZone(gap)
			if !ok {
				continue
			}
			span := localEnd(sorted[j]) - sorted[i].StartMin
			switch zone {
			case model.PauseRegular:
				if span > SpanRegularMax {
					continue
				}
				b := makeBlock(day, []model.TourInstance{sorted[i], sorted[j]}, []int{gap})
				b.Kind = model.BlockB2Reg
				reg2ByAnchor[anchorID] = append(reg2ByAnchor[anchorID], rankedBlock{b, span})

				// Extend into a 3-tour regular chain.
				for k := j + 1; k < n; k++ {
					gap2 := sorted[k].StartMin - localEnd(sorted[j])
					zone2, ok2 := gapZone(gap2)
					if !ok2 || zone2 != model.PauseRegular {
						continue
					}
					span3 := localEnd(sorted[k]) - sorted[i].StartMin
					if span3 > SpanWideMax {
						continue
					}
					b3 := makeBlock(day, []model.TourInstance{sorted[i], sorted[j], sorted[k]}, []int{gap, gap2})
					b3.Kind = model.BlockB3
					reg3ByAnchor[anchorID] = append(reg3ByAnchor[anchorID], rankedBlock{b3, span3})
				}
			case model.PauseSplit:
				if span > SpanWideMax {
					continue
				}
				b := makeBlock(day, []model.TourInstance{sorted[i], sorted[j]}, []int{gap})
				b.Kind = model.BlockB2Split
				split2ByAnchor[anchorID] = append(split2ByAnchor[anchorID], rankedBlock{b, span})
			}
		}
	}

	all = append(all, rankAndCap(reg2ByAnchor, k2er)...)
	all = append(all, rankAndCap(split2ByAnchor, caps.K2ERSplit)...)
	all = append(all, rankAndCap(reg3ByAnchor, caps.K3ER)...)

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.FirstStartMin() != b.FirstStartMin() {
			return a.FirstStartMin() < b.FirstStartMin()
		}
		if a.LastEndMin() != b.LastEndMin() {
			return a.LastEndMin() < b.LastEndMin()
		}
		return a.Kind < b.Kind
	})
	return all
}

// rankedBlock pairs a candidate block with its span for ranking.
type rankedBlock struct {
	b    model.Block
	span int
}

func rankAndCap(byAnchor map[string][]rankedBlock, cap int) []model.Block {
	var out []model.Block
	// Deterministic anchor iteration order.
	anchors := make([]string, 0, len(byAnchor))
	for a := range byAnchor {
		anchors = append(anchors, a)
	}
	sort.Strings(anchors)
	for _, a := range anchors {
		cands := byAnchor[a]
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].span != cands[j].span {
				return cands[i].span < cands[j].span
			}
			// "latest-first" tiebreak preserves diversity among equal-span candidates.
			return cands[i].b.LastEndMin() > cands[j].b.LastEndMin()
		})
		limit := cap
		if limit > len(cands) {
			limit = len(cands)
		}
		for i := 0; i < limit; i++ {
			out = append(out, cands[i].b)
		}
	}
	return out
}

func makeBlock(day int, tours []model.TourInstance, gaps []int) model.Block {
	work := 0
	for _, t := range tours {
		work += t.DurationMin()
	}
	b := model.Block{
		Day:     day,
		Tours:   tours,
		GapsMin: gaps,
		WorkMin: work,
		SpanMin: localEnd(tours[len(tours)-1]) - tours[0].StartMin,
	}
	switch len(tours) {
	case 1:
		b.Kind = model.BlockB1
		b.PauseZone = model.PauseRegular
	case 2:
		// Kind/PauseZone set by caller based on gap classification.
		if gaps[0] >= SplitGapMin {
			b.PauseZone = model.PauseSplit
		} else {
			b.PauseZone = model.PauseRegular
		}
	case 3:
		b.Kind = model.BlockB3
		b.PauseZone = model.PauseRegular
	}
	return b
}
