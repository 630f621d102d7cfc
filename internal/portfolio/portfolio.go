// Package portfolio implements spec.md §4.4: the Portfolio Controller that
// profiles an instance, picks a solver path, budgets time phases, and
// escalates on stagnation.
//
// The controller wraps internal/master (itself wrapping internal/colgen and
// internal/blockbuilder): FAST and BALANCED paths run the same restricted-
// master loop with a smaller time-budget fraction, HEAVY runs it at full
// budget. This keeps one deterministic
// solve core and varies only the resources handed to it, mirroring how the
// teacher's sync engine picks a "fast path" vs "full walk" over the same
// underlying merge algorithm rather than maintaining two separate ones.
package portfolio

import (
	"math"

	"github.com/DRNaser/solvereign/internal/colgen"
	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/master"
	"github.com/DRNaser/solvereign/internal/model"
)

// Path is the solver path chosen for one instance.
type Path string

const (
	PathFast     Path = "FAST"
	PathBalanced Path = "BALANCED"
	PathHeavy    Path = "HEAVY"
)

// Profile summarizes the shape of one week's instance set, used to route it
// to a Path.
type Profile struct {
	NTours            int
	BlocksPerTourAvg  float64
	PeakinessIndex    float64 // max same-day tour count / average same-day count
	PTPressureProxy   float64 // fraction of tours shorter than a half FTE-day
	PoolPressure      float64 // blocks_per_tour_avg normalized against a fixed reference
	LowerBoundDrivers int
}

// ProfileInstances computes a Profile directly from the expanded tour
// instances and their per-day block pool (spec.md §4.4).
func ProfileInstances(instances []model.TourInstance, pool colgen.Pool) Profile {
	p := Profile{NTours: len(instances)}
	if len(instances) == 0 {
		return p
	}

	byDay := map[int]int{}
	totalDur := 0
	shortCount := 0
	for _, ti := range instances {
		byDay[ti.Day]++
		totalDur += ti.DurationMin()
		if ti.DurationMin() < 4*60 {
			shortCount++
		}
	}
	maxDay, sumDay, days := 0, 0, 0
	for _, c := range byDay {
		if c > maxDay {
			maxDay = c
		}
		sumDay += c
		days++
	}
	avgDay := 0.0
	if days > 0 {
		avgDay = float64(sumDay) / float64(days)
	}
	if avgDay > 0 {
		p.PeakinessIndex = float64(maxDay) / avgDay
	}
	p.PTPressureProxy = float64(shortCount) / float64(len(instances))

	totalBlocks := 0
	for _, blocks := range pool {
		totalBlocks += len(blocks)
	}
	if len(instances) > 0 {
		p.BlocksPerTourAvg = float64(totalBlocks) / float64(len(instances))
	}
	const referenceBlocksPerTour = 6.0
	p.PoolPressure = p.BlocksPerTourAvg / referenceBlocksPerTour

	fteFloorMin := 40 * 60
	lb := 0
	if fteFloorMin > 0 {
		lb = int(math.Ceil(float64(totalDur) / float64(fteFloorMin)))
	}
	if lb < 1 && len(instances) > 0 {
		lb = 1
	}
	p.LowerBoundDrivers = lb
	return p
}

// SelectPath implements the FAST/BALANCED/HEAVY routing rule.
func SelectPath(p Profile) Path {
	switch {
	case p.PoolPressure >= 1.5:
		return PathHeavy
	case p.PeakinessIndex >= 2.0 || p.PTPressureProxy >= 0.35:
		return PathBalanced
	default:
		return PathFast
	}
}

// budgetFraction returns the fraction of the user time budget a path spends
// on the Set-Partition Master phase (the remaining fraction is reserved for
// the Portfolio Controller's LNS / repair-and-retry phases, which this
// simplified controller does not separately model beyond the budget split).
func budgetFraction(path Path) float64 {
	switch path {
	case PathFast:
		return 0.20
	case PathBalanced:
		return 0.50
	default:
		return 1.0
	}
}

// Outcome is the final result of one Run, including the routing decision
// and any stagnation-driven escalation.
type Outcome struct {
	Profile     Profile
	PathUsed    Path
	Escalated   bool
	ReasonCodes []string
	Result      master.Result
}

// GoodEnoughEpsilon is ε in "score ≤ (1+ε)·lower_bound" (spec.md §4.4).
const GoodEnoughEpsilon = 0.05

// NearDayminBuffer is the allowed headcount slack over the daily lower
// bound for the NEAR_DAYMIN early-stop condition.
const NearDayminBuffer = 1

// Run profiles the instance set, selects a path, solves, and escalates once
// (FAST→BALANCED→HEAVY) if the chosen path's solve stagnates (its own
// Fallback flag fired, meaning column generation never improved on the seed
// pool) without reaching GOOD_ENOUGH or NEAR_DAYMIN.
func Run(instances []model.TourInstance, pool colgen.Pool, cfg config.Config) (Outcome, error) {
	profile := ProfileInstances(instances, pool)
	path := SelectPath(profile)

	order := []Path{PathFast, PathBalanced, PathHeavy}
	start := indexOf(order, path)

	var out Outcome
	out.Profile = profile
	for i := start; i < len(order); i++ {
		p := order[i]
		phaseCfg := cfg
		phaseCfg.TimeBudgetS = budgetedSeconds(cfg.TimeBudgetS, p)

		res, err := master.Solve(instances, pool, phaseCfg)
		if err != nil {
			return out, err
		}
		out.PathUsed = p
		out.Result = res

		if isGoodEnough(res, profile) || isNearDaymin(res, profile) {
			if i > start {
				out.Escalated = true
				out.ReasonCodes = append(out.ReasonCodes, "STAGNATION_ESCALATED")
			}
			return out, nil
		}
		if !res.Fallback {
			// Made real progress even without hitting an early-stop target;
			// accept this path's result rather than escalating needlessly.
			return out, nil
		}
		if i < len(order)-1 {
			out.Escalated = true
			out.ReasonCodes = append(out.ReasonCodes, "STAGNATION_"+string(p)+"_TO_"+string(order[i+1]))
		}
	}
	return out, nil
}

func indexOf(order []Path, p Path) int {
	for i, o := range order {
		if o == p {
			return i
		}
	}
	return 0
}

func budgetedSeconds(totalS int, p Path) int {
	s := int(float64(totalS) * budgetFraction(p))
	if s < 1 {
		s = 1
	}
	return s
}

func isGoodEnough(res master.Result, p Profile) bool {
	if p.LowerBoundDrivers == 0 {
		return false
	}
	limit := (1 + GoodEnoughEpsilon) * float64(p.LowerBoundDrivers)
	return float64(res.DriversTotal) <= limit
}

func isNearDaymin(res master.Result, p Profile) bool {
	if p.LowerBoundDrivers == 0 {
		return false
	}
	return res.DriversTotal <= p.LowerBoundDrivers+NearDayminBuffer
}
