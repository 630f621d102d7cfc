// Package master implements spec.md §4.3: the set-partition master problem.
//
// The retrieved example pack carries no pure-Go LP/MIP solver dependency
// (see DESIGN.md), so the restricted-master "solve the LP relaxation, read
// duals" step is realized as a deterministic greedy weighted set-cover pass
// whose per-tour coverage indicator doubles as the dual price fed back into
// column generation — the same iterative shape spec.md §4.3 describes
// (seed pool, generate against duals, add columns, prune, solve restricted
// problem, fall back to greedy if no incumbent), without requiring a
// simplex/branch-and-bound implementation. Iteration budgets are expressed
// as deterministic round counts derived from the configured time budget
// rather than wall-clock time, so that identical inputs always produce a
// byte-identical result (spec.md §8).
package master

import (
	"sort"

	"github.com/DRNaser/solvereign/internal/colgen"
	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/model"
)

// Lexicographic cost weights (spec.md §4.3).
const (
	WeightDrivers   = 1_000_000_000
	WeightPT        = 1_000_000
	WeightSplit     = 1_000
	WeightSingleton = 100
)

// Result is the master's output for one solve.
type Result struct {
	Columns       []model.Column
	Assignments   []model.Assignment
	Uncovered     []string
	LexCost       int64
	DriversTotal  int
	PTDrivers     int
	SplitBlocks   int
	SingletonBlks int
	Fallback      bool
	BudgetOverrun bool
}

// InfeasibleError is returned when no partition covers every tour instance.
type InfeasibleError struct {
	Err       *errs.Error
	Uncovered []string
}

func (e *InfeasibleError) Error() string { return e.Err.Error() }

// Unwrap exposes the taxonomy error so errors.As finds the Solver category.
func (e *InfeasibleError) Unwrap() error { return e.Err }

// Solve runs the restricted-master loop over a per-day block pool and
// returns a minimum-(lexicographic)-cost set of columns covering every
// instance exactly once.
func Solve(instances []model.TourInstance, blockPool colgen.Pool, cfg config.Config) (Result, error) {
	if len(instances) == 0 {
		return Result{}, nil
	}

	seed := cfg.Seed
	seen := map[string]bool{}
	var pool []model.Column

	// 1. Seed the pool: up to 40 FTE and 20 PT weekly columns from the
	// greedy generator at zero duals, plus a per-instance singleton
	// fallback so every tour is always structurally coverable.
	zeroDuals := map[string]float64{}
	pool = append(pool, colgen.Generate(blockPool, cfg, colgen.Request{
		DriverType: model.DriverFTE, Duals: zeroDuals, Seed: seed, MaxColumns: 40, Seen: seen,
	})...)
	pool = append(pool, colgen.Generate(blockPool, cfg, colgen.Request{
		DriverType: model.DriverPT, Duals: zeroDuals, Seed: seed + 1, MaxColumns: 20, Seen: seen,
	})...)
	pool = append(pool, fallbackSingletons(instances, seen)...)

	// 2. Iteratively reweight duals toward uncovered instances and ask for
	// more columns, mirroring the restricted-master refinement loop.
	maxRounds := roundsFromBudget(cfg.TimeBudgetS)
	genRounds := 0
	budgetOverrun := false
	for round := 0; round < maxRounds; round++ {
		covered := greedyCoverageSet(pool, instances)
		duals := map[string]float64{}
		anyUncovered := false
		for _, ti := range instances {
			if !covered[ti.ID()] {
				duals[ti.ID()] = 1.0
				anyUncovered = true
			}
		}
		if !anyUncovered {
			break
		}
		added := colgen.Generate(blockPool, cfg, colgen.Request{
			DriverType: model.DriverFTE, Duals: duals, Seed: seed + int64(round) + 2, MaxColumns: 15, Seen: seen,
		})
		added = append(added, colgen.Generate(blockPool, cfg, colgen.Request{
			DriverType: model.DriverPT, Duals: duals, Seed: seed + int64(round) + 1002, MaxColumns: 10, Seen: seen,
		})...)
		if len(added) == 0 {
			break
		}
		pool = append(pool, added...)
		genRounds++

		// Prune every 3 rounds, keeping at least one column per tour so no
		// tour can ever starve (spec.md §4.3 step 2d).
		if round > 0 && round%3 == 0 {
			pool = prune(pool, instances)
		}
		if round == maxRounds-1 {
			budgetOverrun = true
		}
	}

	// 3. Restricted selection: greedy lexicographic set partition over the
	// final pool, standing in for the restricted MIP solve.
	selected, uncovered := selectPartition(pool, instances)
	fallback := genRounds == 0

	if len(uncovered) > 0 {
		return Result{Uncovered: uncovered}, &InfeasibleError{
			Err:       errs.New(errs.Solver, errs.CodeInfeasible, "no partition covers every tour instance"),
			Uncovered: uncovered,
		}
	}

	res := buildResult(selected, instances)
	res.Fallback = fallback
	res.BudgetOverrun = budgetOverrun
	return res, nil
}

func roundsFromBudget(timeBudgetS int) int {
	r := timeBudgetS / 6
	if r < 3 {
		r = 3
	}
	if r > 60 {
		r = 60
	}
	return r
}

func fallbackSingletons(instances []model.TourInstance, seen map[string]bool) []model.Column {
	var out []model.Column
	for _, ti := range instances {
		b := model.Block{
			Day:     ti.Day,
			Tours:   []model.TourInstance{ti},
			WorkMin: ti.DurationMin(),
			SpanMin: ti.DurationMin(),
			Kind:    model.BlockB1,
			PauseZone: model.PauseRegular,
		}
		var col model.Column
		col.DriverType = model.DriverPT
		col.Days[ti.Day] = &b
		col.WeeklyMin = b.WorkMin
		col.Fingerprint = blockOnlyFingerprint(ti)
		col.Cost = int64(b.WorkMin)
		if seen[col.Fingerprint] {
			continue
		}
		seen[col.Fingerprint] = true
		out = append(out, col)
	}
	return out
}

func blockOnlyFingerprint(ti model.TourInstance) string {
	return "fallback:" + ti.ID()
}

// greedyCoverageSet picks columns in cost order (cheapest first) and
// returns the set of instance ids covered without conflict, used only to
// derive per-round dual prices -- not the final selection.
func greedyCoverageSet(pool []model.Column, instances []model.TourInstance) map[string]bool {
	sorted := append([]model.Column(nil), pool...)
	sortColumnsForSelection(sorted)
	covered := map[string]bool{}
	for _, c := range sorted {
		if columnConflicts(c, covered) {
			continue
		}
		markCovered(c, covered)
	}
	return covered
}

func columnConflicts(c model.Column, covered map[string]bool) bool {
	for day := 1; day <= 7; day++ {
		b := c.Days[day]
		if b == nil {
			continue
		}
		for _, t := range b.Tours {
			if covered[t.ID()] {
				return true
			}
		}
	}
	return false
}

func markCovered(c model.Column, covered map[string]bool) {
	for day := 1; day <= 7; day++ {
		b := c.Days[day]
		if b == nil {
			continue
		}
		for _, t := range b.Tours {
			covered[t.ID()] = true
		}
	}
}

// sortColumnsForSelection orders columns to approximate the lexicographic
// objective during greedy selection: most tours covered per column first
// (fewest drivers), then FTE before PT, then fewer split/singleton blocks,
// then fingerprint for full determinism.
func sortColumnsForSelection(cols []model.Column) {
	sort.SliceStable(cols, func(i, j int) bool {
		ci, cj := cols[i], cols[j]
		ni, nj := tourCount(ci), tourCount(cj)
		if ni != nj {
			return ni > nj
		}
		pi, pj := ci.DriverType == model.DriverPT, cj.DriverType == model.DriverPT
		if pi != pj {
			return !pi
		}
		si, sj := splitBlockCount(ci), splitBlockCount(cj)
		if si != sj {
			return si < sj
		}
		gi, gj := singletonBlockCount(ci), singletonBlockCount(cj)
		if gi != gj {
			return gi < gj
		}
		return ci.Fingerprint < cj.Fingerprint
	})
}

func tourCount(c model.Column) int {
	n := 0
	for day := 1; day <= 7; day++ {
		if b := c.Days[day]; b != nil {
			n += len(b.Tours)
		}
	}
	return n
}

func splitBlockCount(c model.Column) int {
	n := 0
	for day := 1; day <= 7; day++ {
		if b := c.Days[day]; b != nil && b.Kind == model.BlockB2Split {
			n++
		}
	}
	return n
}

func singletonBlockCount(c model.Column) int {
	n := 0
	for day := 1; day <= 7; day++ {
		if b := c.Days[day]; b != nil && b.Kind == model.BlockB1 {
			n++
		}
	}
	return n
}

// prune drops columns with no unique coverage contribution, keeping at
// least one column able to cover each tour instance (the "keep-at-least-
// one-per-tour" invariant from spec.md §4.3).
func prune(pool []model.Column, instances []model.TourInstance) []model.Column {
	sorted := append([]model.Column(nil), pool...)
	sortColumnsForSelection(sorted)
	need := map[string]bool{}
	for _, ti := range instances {
		need[ti.ID()] = true
	}
	var kept []model.Column
	coveredAtLeastOnce := map[string]int{}
	for _, c := range sorted {
		usefulnessScore := 0
		for day := 1; day <= 7; day++ {
			if b := c.Days[day]; b != nil {
				for _, t := range b.Tours {
					if coveredAtLeastOnce[t.ID()] == 0 {
						usefulnessScore++
					}
				}
			}
		}
		if usefulnessScore == 0 && len(kept) > len(instances) {
			continue // strictly redundant once every tour has ≥1 covering column
		}
		kept = append(kept, c)
		for day := 1; day <= 7; day++ {
			if b := c.Days[day]; b != nil {
				for _, t := range b.Tours {
					coveredAtLeastOnce[t.ID()]++
				}
			}
		}
	}
	return kept
}

// selectPartition greedily assembles a minimum-headcount exact cover from
// the pool, falling back to per-instance fallback singletons for any tour
// the greedy columns leave uncovered.
func selectPartition(pool []model.Column, instances []model.TourInstance) (selected []model.Column, uncoveredIDs []string) {
	sorted := append([]model.Column(nil), pool...)
	sortColumnsForSelection(sorted)
	covered := map[string]bool{}
	for _, c := range sorted {
		if columnConflicts(c, covered) {
			continue
		}
		if tourCount(c) == 0 {
			continue
		}
		selected = append(selected, c)
		markCovered(c, covered)
	}
	for _, ti := range instances {
		if !covered[ti.ID()] {
			uncoveredIDs = append(uncoveredIDs, ti.ID())
		}
	}
	sort.Strings(uncoveredIDs)
	return selected, uncoveredIDs
}

func buildResult(selected []model.Column, instances []model.TourInstance) Result {
	var res Result
	res.DriversTotal = len(selected)
	for i := range selected {
		selected[i].DriverID = syntheticDriverID(i)
	}
	res.Columns = selected
	for _, c := range selected {
		driverID := c.DriverID
		if c.DriverType == model.DriverPT {
			res.PTDrivers++
		}
		for day := 1; day <= 7; day++ {
			b := c.Days[day]
			if b == nil {
				continue
			}
			if b.Kind == model.BlockB2Split {
				res.SplitBlocks++
			}
			if b.Kind == model.BlockB1 {
				res.SingletonBlks++
			}
			for _, t := range b.Tours {
				res.Assignments = append(res.Assignments, model.Assignment{
					DriverID:       driverID,
					TourInstanceID: t.ID(),
					Day:            t.Day,
					StartMin:       t.StartMin,
					EndMin:         t.EndMin,
					BlockKind:      b.Kind,
				})
			}
		}
	}
	res.LexCost = int64(res.DriversTotal)*WeightDrivers +
		int64(res.PTDrivers)*WeightPT +
		int64(res.SplitBlocks)*WeightSplit +
		int64(res.SingletonBlks)*WeightSingleton
	sort.Slice(res.Assignments, func(i, j int) bool {
		a, b := res.Assignments[i], res.Assignments[j]
		if a.DriverID != b.DriverID {
			return a.DriverID < b.DriverID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.StartMin < b.StartMin
	})
	return res
}

func syntheticDriverID(index int) string {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyz"
	if index < len(letters) {
		return "drv-" + string(letters[index])
	}
	return "drv-" + itoaPad(index)
}

func itoaPad(n int) string {
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
