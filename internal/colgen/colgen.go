// Package colgen implements spec.md §4.2: the column generator.
//
// The generator is modeled as a restartable, finite producer of Column
// values keyed by fingerprint, driven by the master loop (internal/master).
// Each call to Generate runs a deterministic, seeded, priced-greedy search
// over the block pool and returns up to maxColumns fresh (never-seen)
// columns; it returns fewer when the pool's random walk is exhausted, and
// never signals failure, matching spec.md §4.2's failure-mode contract.
package colgen

import (
	"math/rand"
	"sort"

	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/fingerprint"
	"github.com/DRNaser/solvereign/internal/model"
)

// FTEFloorMin is the 40h soft floor FTE columns are expected to cover and
// the hard ceiling PT columns may not reach (spec.md §3).
const FTEFloorMin = 40 * 60

// LongDaySpanMin marks a block as a "long day" for LONG_DAY_PENALTY.
const LongDaySpanMin = 13 * 60

// Pool is the per-day block pool produced by internal/blockbuilder.
type Pool map[int][]model.Block

// Request parameterizes one Generate call.
type Request struct {
	DriverType model.DriverType
	Duals      map[string]float64 // tour instance id -> dual price
	Seed       int64
	MaxColumns int
	Seen       map[string]bool // fingerprints already produced; mutated in place
}

// Generate emits up to req.MaxColumns fresh columns.
func Generate(pool Pool, cfg config.Config, req Request) []model.Column {
	if req.Seen == nil {
		req.Seen = map[string]bool{}
	}
	var out []model.Column
	stagnant := 0
	for i := 0; i < req.MaxColumns; i++ {
		rng := rand.New(rand.NewSource(req.Seed*1000003 + int64(i) + 1))
		col, ok := buildOneColumn(pool, cfg, req.DriverType, req.Duals, rng)
		if !ok {
			stagnant++
			if stagnant > 20 {
				break
			}
			continue
		}
		if req.Seen[col.Fingerprint] {
			stagnant++
			if stagnant > 20 {
				break
			}
			continue
		}
		req.Seen[col.Fingerprint] = true
		out = append(out, col)
		stagnant = 0
	}
	return out
}

type candidate struct {
	block       *model.Block
	reducedCost float64
}

func buildOneColumn(pool Pool, cfg config.Config, driverType model.DriverType, duals map[string]float64, rng *rand.Rand) (model.Column, bool) {
	var col model.Column
	col.DriverType = driverType
	var prev *model.Block
	weeklyMin := 0
	maxWeekly := cfg.MaxWeeklyMinutes()

	var dayKeys []fingerprint.DayBlockKey

	for day := 1; day <= 7; day++ {
		blocks := pool[day]
		cands := make([]candidate, 0, len(blocks))

		for idx := range blocks {
			b := &blocks[idx]
			if weeklyMin+b.WorkMin > maxWeekly {
				continue
			}
			if driverType == model.DriverPT && weeklyMin+b.WorkMin >= FTEFloorMin {
				continue
			}
			if prev != nil {
				restGap := b.FirstStartMin() - prev.LastEndMin()
				if restGap < cfg.MinRestMinutes {
					continue
				}
				if prev.Kind == model.BlockB3 && b.Kind == model.BlockB3 {
					continue
				}
			}
			price := 0.0
			for _, t := range b.Tours {
				price += duals[t.ID()]
			}
			reduced := float64(b.WorkMin) - price
			cands = append(cands, candidate{block: b, reducedCost: reduced})
		}

		// Deterministic shuffle before a stable sort so seed-driven ties
		// break differently across columns without breaking determinism
		// for a fixed seed.
		rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].reducedCost < cands[j].reducedCost })

		if len(cands) == 0 {
			continue // no feasible block on this day
		}
		best := cands[0]

		chosen := *best.block
		col.Days[day] = &chosen
		weeklyMin += chosen.WorkMin
		prev = &chosen
		dayKeys = append(dayKeys, fingerprint.DayBlockKey{
			Day:             day,
			Kind:            string(chosen.Kind),
			TourInstanceIDs: chosen.TourIDs(),
		})
	}

	if weeklyMin == 0 {
		return model.Column{}, false
	}

	col.WeeklyMin = weeklyMin
	col.Fingerprint = fingerprint.ColumnFingerprint(dayKeys)
	col.Cost = computeCost(col, cfg)
	return col, true
}

func computeCost(col model.Column, cfg config.Config) int64 {
	base := int64(col.WeeklyMin)

	var ptPenalty int64
	if col.DriverType == model.DriverPT {
		ptPenalty = cfg.PTPenalty
	}

	var hoursPenalty int64
	if col.DriverType == model.DriverFTE && col.WeeklyMin < FTEFloorMin {
		hoursPenalty = int64(FTEFloorMin-col.WeeklyMin) * 50
	}

	var longDayCount int64
	for day := 1; day <= 7; day++ {
		b := col.Days[day]
		if b != nil && b.SpanMin > LongDaySpanMin {
			longDayCount++
		}
	}
	longDayPenalty := longDayCount * 5000

	return base + ptPenalty + hoursPenalty + longDayPenalty
}
