// Package auditengine implements spec.md §4.5: eight independent,
// side-effect-free checks over a solved plan.
//
// Each check is a pure function returning {status, violation_count,
// details}; none of them touch storage or the network, mirroring the
// teacher's validation passes in internal/sync (pure functions over in-
// memory bead graphs, called both from the CLI and from tests).
package auditengine

import (
	"sort"

	"github.com/DRNaser/solvereign/internal/model"
)

// Status is a check's verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// CheckResult is the uniform shape every check returns.
type CheckResult struct {
	Status         Status
	ViolationCount int
	Details        []string
}

func pass() CheckResult { return CheckResult{Status: StatusPass} }

func fail(details ...string) CheckResult {
	return CheckResult{Status: StatusFail, ViolationCount: len(details), Details: details}
}

func warn(details ...string) CheckResult {
	return CheckResult{Status: StatusWarn, ViolationCount: len(details), Details: details}
}

// Report bundles every check's result for one plan.
type Report struct {
	Coverage         CheckResult
	Overlap          CheckResult
	Rest             CheckResult
	SpanRegular      CheckResult
	SpanSplit        CheckResult
	Fatigue          CheckResult
	Reproducibility  CheckResult
	Sensitivity      CheckResult
}

// AllPass reports whether every check passed (no WARN, no FAIL).
func (r Report) AllPass() bool {
	for _, c := range r.all() {
		if c.Status != StatusPass {
			return false
		}
	}
	return true
}

// AnyFail reports whether any check FAILed (publish-blocking).
func (r Report) AnyFail() bool {
	for _, c := range r.all() {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

func (r Report) all() []CheckResult {
	return []CheckResult{r.Coverage, r.Overlap, r.Rest, r.SpanRegular, r.SpanSplit, r.Fatigue, r.Reproducibility, r.Sensitivity}
}

// CheckCoverage verifies every tour instance has exactly one assignment.
func CheckCoverage(instances []model.TourInstance, assignments []model.Assignment) CheckResult {
	counts := map[string]int{}
	for _, a := range assignments {
		counts[a.TourInstanceID]++
	}
	var details []string
	for _, ti := range instances {
		c := counts[ti.ID()]
		if c != 1 {
			details = append(details, ti.ID())
		}
	}
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckOverlap verifies no driver has two assignments whose absolute
// minute-of-week intervals intersect.
func CheckOverlap(assignments []model.Assignment) CheckResult {
	byDriver := groupByDriver(assignments)
	var details []string
	for driverID, list := range byDriver {
		sort.Slice(list, func(i, j int) bool { return list[i].AbsoluteStartMin() < list[j].AbsoluteStartMin() })
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if cur.AbsoluteStartMin() < prev.AbsoluteEndMin() {
				details = append(details, driverID+":"+prev.TourInstanceID+"x"+cur.TourInstanceID)
			}
		}
	}
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckRest verifies next.start - prev.end >= minRestMinutes for every
// driver's consecutive assignments.
func CheckRest(assignments []model.Assignment, minRestMinutes int) CheckResult {
	byDriver := groupByDriver(assignments)
	var details []string
	for driverID, list := range byDriver {
		sort.Slice(list, func(i, j int) bool { return list[i].AbsoluteStartMin() < list[j].AbsoluteStartMin() })
		for i := 1; i < len(list); i++ {
			gap := list[i].AbsoluteStartMin() - list[i-1].AbsoluteEndMin()
			if gap < minRestMinutes {
				details = append(details, driverID+":"+list[i-1].TourInstanceID+"->"+list[i].TourInstanceID)
			}
		}
	}
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckSpanRegular verifies every B1/B2_REG block's span <= 840 minutes.
func CheckSpanRegular(columns []model.Column) CheckResult {
	var details []string
	forEachBlock(columns, func(driverID string, b *model.Block) {
		if b.Kind == model.BlockB1 || b.Kind == model.BlockB2Reg {
			if b.SpanMin > 840 {
				details = append(details, blockLabel(driverID, b))
			}
		}
	})
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckSpanSplit verifies every B2_SPLIT/B3 block's span and gap zones.
func CheckSpanSplit(columns []model.Column) CheckResult {
	var details []string
	forEachBlock(columns, func(driverID string, b *model.Block) {
		if b.Kind != model.BlockB2Split && b.Kind != model.BlockB3 {
			return
		}
		if b.SpanMin > 960 {
			details = append(details, blockLabel(driverID, b)+":span")
			return
		}
		for _, g := range b.GapsMin {
			regular := g >= 30 && g <= 120
			split := g >= 240 && g <= 360
			if !regular && !split {
				details = append(details, blockLabel(driverID, b)+":gap")
			}
		}
	})
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckFatigue verifies no driver has a B3 block on two consecutive
// calendar days.
func CheckFatigue(columns []model.Column) CheckResult {
	var details []string
	for i, col := range columns {
		driverID := driverLabel(i)
		for day := 1; day <= 6; day++ {
			b1, b2 := col.Days[day], col.Days[day+1]
			if b1 != nil && b2 != nil && b1.Kind == model.BlockB3 && b2.Kind == model.BlockB3 {
				details = append(details, driverID+":day"+itoa(day))
			}
		}
	}
	if len(details) == 0 {
		return pass()
	}
	return fail(details...)
}

// CheckReproducibility compares two output hashes produced from identical
// (forecast, seed, config) inputs.
func CheckReproducibility(hashA, hashB string) CheckResult {
	if hashA == hashB {
		return pass()
	}
	return fail("output_hash mismatch: " + hashA + " != " + hashB)
}

// SensitivityThreshold is the maximum fractional churn a single policy
// parameter perturbation may cause before the plan is flagged fragile.
const SensitivityThreshold = 0.10

// CheckSensitivity takes, for each perturbed policy parameter, the
// fractional churn it caused relative to the base plan's assignment count.
func CheckSensitivity(churnByParam map[string]float64) CheckResult {
	var details []string
	keys := make([]string, 0, len(churnByParam))
	for k := range churnByParam {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if churnByParam[k] >= SensitivityThreshold {
			details = append(details, k)
		}
	}
	if len(details) == 0 {
		return pass()
	}
	return warn(details...)
}

// RunAll executes every check and assembles a Report. Reproducibility and
// Sensitivity require externally-supplied comparison inputs (a second solve
// and a set of perturbation churn ratios respectively) since they are not
// derivable from a single plan alone; callers that cannot supply them pass
// an empty/matching value and get a PASS by construction.
func RunAll(instances []model.TourInstance, assignments []model.Assignment, columns []model.Column, minRestMinutes int, reproHashA, reproHashB string, sensitivityChurn map[string]float64) Report {
	return Report{
		Coverage:        CheckCoverage(instances, assignments),
		Overlap:         CheckOverlap(assignments),
		Rest:            CheckRest(assignments, minRestMinutes),
		SpanRegular:     CheckSpanRegular(columns),
		SpanSplit:       CheckSpanSplit(columns),
		Fatigue:         CheckFatigue(columns),
		Reproducibility: CheckReproducibility(reproHashA, reproHashB),
		Sensitivity:     CheckSensitivity(sensitivityChurn),
	}
}

func groupByDriver(assignments []model.Assignment) map[string][]model.Assignment {
	out := map[string][]model.Assignment{}
	for _, a := range assignments {
		out[a.DriverID] = append(out[a.DriverID], a)
	}
	return out
}

func forEachBlock(columns []model.Column, fn func(driverID string, b *model.Block)) {
	for i, col := range columns {
		driverID := driverLabel(i)
		for day := 1; day <= 7; day++ {
			if b := col.Days[day]; b != nil {
				fn(driverID, b)
			}
		}
	}
}

func driverLabel(index int) string {
	return "col" + itoa(index)
}

func blockLabel(driverID string, b *model.Block) string {
	return driverID + ":day" + itoa(b.Day)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
