// Package repair implements spec.md §4.6: previewing and applying reassignments
// after a driver absence over a published (or any) base plan, plus an
// orchestrated, change-budgeted variant that proposes several ranked repairs
// for an incident.
//
// The clone-diff-revalidate shape leans on internal/auditengine for the
// hard/soft violation classification it reuses to compute a verdict, and on
// internal/fingerprint for the deterministic session/evidence identifiers,
// matching how the teacher derives every id from content rather than from a
// counter or wall-clock value wherever determinism matters.
package repair

import (
	"sort"
	"time"

	"github.com/DRNaser/solvereign/internal/auditengine"
	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/fingerprint"
	"github.com/DRNaser/solvereign/internal/model"
)

// Absence is a driver's unavailability window.
type Absence struct {
	DriverID string
	From     time.Time
	To       time.Time
	Reason   string
}

// Verdict is the outcome of a repair preview.
type Verdict string

const (
	VerdictOK    Verdict = "OK"
	VerdictWarn  Verdict = "WARN"
	VerdictBlock Verdict = "BLOCK"
)

// SessionState is the repair session's lifecycle (spec.md §4.6).
type SessionState string

const (
	SessionOpen       SessionState = "SESSION_OPEN"
	SessionPreviewed  SessionState = "PREVIEWED"
	SessionBlocked    SessionState = "BLOCKED"
	SessionApplied    SessionState = "APPLIED"
	SessionCancelled  SessionState = "CANCELLED"
)

// Violations buckets the reasons behind a non-OK verdict.
type Violations struct {
	Overlap []string
	Rest    []string
	Freeze  []string
}

// Summary is the headline churn produced by a repair.
type Summary struct {
	UncoveredBefore      int
	UncoveredAfter       int
	ChurnDriverCount     int
	ChurnAssignmentCount int
}

// Diff is the assignment-level delta between base and repaired plans.
type Diff struct {
	Added   []model.Assignment
	Removed []model.Assignment
}

// PreviewResult is returned by Preview.
type PreviewResult struct {
	SessionID      string
	Verdict        Verdict
	VerdictReasons []string
	Violations     Violations
	Summary        Summary
	Diff           Diff
	EvidenceID     string
	PolicyHash     string
}

// Session tracks one repair's state machine.
type Session struct {
	ID       string
	State    SessionState
	BasePlan model.PlanVersion
	Preview  PreviewResult
}

// FreezeCheck evaluates whether touching a tour starting at tourStart
// violates a freeze window; callers pass internal/lifecycle.FreezeViolation
// (kept as an injected func to avoid an import cycle, since lifecycle does
// not need to know about repair).
type FreezeCheck func(tourStart time.Time) bool

// Preview clones the base plan's assignments, drops any overlapping an
// absence, greedily reassigns uncovered tours to other drivers whose
// resulting schedule stays feasible, and revalidates the result.
func Preview(basePlan model.PlanVersion, instances map[string]model.TourInstance, absences []Absence, now time.Time, minRestMinutes int, freezeCheck FreezeCheck, policyHash string, seed int64) PreviewResult {
	base := append([]model.Assignment(nil), basePlan.Assignments...)
	uncoveredBefore := countUncovered(instances, base)

	absent := map[string]bool{}
	for _, a := range absences {
		absent[a.DriverID] = true
	}

	var kept, removed []model.Assignment
	for _, a := range base {
		if absent[a.DriverID] && assignmentDuringAbsence(a, absences) {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}

	covered := map[string]bool{}
	for _, a := range kept {
		covered[a.TourInstanceID] = true
	}

	var uncoveredIDs []string
	for id := range instances {
		if !covered[id] {
			uncoveredIDs = append(uncoveredIDs, id)
		}
	}
	sort.Strings(uncoveredIDs)

	var added []model.Assignment
	byDriver := groupByDriver(kept)
	for _, id := range uncoveredIDs {
		ti := instances[id]
		driverID, ok := findFeasibleDriver(ti, byDriver, minRestMinutes)
		if !ok {
			continue
		}
		a := model.Assignment{DriverID: driverID, TourInstanceID: ti.ID(), Day: ti.Day, StartMin: ti.StartMin, EndMin: ti.EndMin, BlockKind: model.BlockB1}
		added = append(added, a)
		byDriver[driverID] = append(byDriver[driverID], a)
	}

	final := append(append([]model.Assignment(nil), kept...), added...)
	uncoveredAfter := countUncovered(instances, final)

	overlapRes := auditengine.CheckOverlap(final)
	restRes := auditengine.CheckRest(final, minRestMinutes)

	var freezeViolations []string
	if freezeCheck != nil {
		changed := append(append([]model.Assignment(nil), added...), removed...)
		for _, a := range changed {
			ti, ok := instances[a.TourInstanceID]
			if !ok {
				continue
			}
			start := now.Add(time.Duration(ti.AbsoluteStartMin()) * time.Minute)
			if freezeCheck(start) {
				freezeViolations = append(freezeViolations, a.TourInstanceID)
			}
		}
	}

	blockViolationCount := overlapRes.ViolationCount
	restViolationCount := restRes.ViolationCount

	v := Violations{
		Overlap: overlapRes.Details,
		Rest:    restRes.Details,
		Freeze:  freezeViolations,
	}

	churnDrivers := map[string]bool{}
	for _, a := range added {
		churnDrivers[a.DriverID] = true
	}
	for _, a := range removed {
		churnDrivers[a.DriverID] = true
	}

	summary := Summary{
		UncoveredBefore:      uncoveredBefore,
		UncoveredAfter:       uncoveredAfter,
		ChurnDriverCount:     len(churnDrivers),
		ChurnAssignmentCount: len(added) + len(removed),
	}

	verdict, reasons := classifyVerdict(uncoveredAfter, len(freezeViolations), blockViolationCount, restViolationCount)

	sessionID := fingerprint.SHA256Hex(basePlan.ID + "|" + policyHash + "|" + itoa64(seed) + "|" + itoa(len(added)) + "|" + itoa(len(removed)))
	evidenceID := fingerprint.SHA256Hex("evidence|" + sessionID)

	return PreviewResult{
		SessionID:      sessionID,
		Verdict:        verdict,
		VerdictReasons: reasons,
		Violations:     v,
		Summary:        summary,
		Diff:           Diff{Added: added, Removed: removed},
		EvidenceID:     evidenceID,
		PolicyHash:     policyHash,
	}
}

func classifyVerdict(uncoveredAfter, freezeViolations, blockViolations, restViolations int) (Verdict, []string) {
	var reasons []string
	if uncoveredAfter > 0 {
		reasons = append(reasons, "uncovered_after>0")
	}
	if freezeViolations > 0 {
		reasons = append(reasons, "freeze_violations>0")
	}
	if blockViolations > 0 {
		reasons = append(reasons, "block_violations>0")
	}
	if len(reasons) > 0 {
		return VerdictBlock, reasons
	}
	if restViolations > 0 {
		return VerdictWarn, []string{"rest_violations>0"}
	}
	return VerdictOK, nil
}

func countUncovered(instances map[string]model.TourInstance, assignments []model.Assignment) int {
	covered := map[string]bool{}
	for _, a := range assignments {
		covered[a.TourInstanceID] = true
	}
	n := 0
	for id := range instances {
		if !covered[id] {
			n++
		}
	}
	return n
}

func assignmentDuringAbsence(a model.Assignment, absences []Absence) bool {
	start := time.Unix(0, 0).Add(time.Duration(a.AbsoluteStartMin()) * time.Minute)
	end := time.Unix(0, 0).Add(time.Duration(a.AbsoluteEndMin()) * time.Minute)
	for _, ab := range absences {
		if ab.DriverID != a.DriverID {
			continue
		}
		if start.Before(ab.To) && end.After(ab.From) {
			return true
		}
	}
	return false
}

func groupByDriver(assignments []model.Assignment) map[string][]model.Assignment {
	out := map[string][]model.Assignment{}
	for _, a := range assignments {
		out[a.DriverID] = append(out[a.DriverID], a)
	}
	return out
}

// findFeasibleDriver looks for a driver already present in byDriver whose
// schedule, with ti appended, has no overlapping assignment and still
// respects the minimum rest gap against its assignments on other days
// (same-day assignments are only checked for overlap); a restricted
// stand-in for a full column re-solve, matching spec.md §4.6 step 3's
// "greedily ... reassign".
func findFeasibleDriver(ti model.TourInstance, byDriver map[string][]model.Assignment, minRestMinutes int) (string, bool) {
	drivers := make([]string, 0, len(byDriver))
	for d := range byDriver {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)

	newStart := ti.AbsoluteStartMin()
	newEnd := ti.AbsoluteEndMin()

	for _, d := range drivers {
		feasible := true
		for _, a := range byDriver[d] {
			if newStart < a.AbsoluteEndMin() && a.AbsoluteStartMin() < newEnd {
				feasible = false
				break
			}
			gap := newStart - a.AbsoluteEndMin()
			if gap < 0 {
				gap = a.AbsoluteStartMin() - newEnd
			}
			if gap >= 0 && gap < minRestMinutes && a.Day != ti.Day {
				feasible = false
				break
			}
		}
		if feasible {
			return d, true
		}
	}
	return "", false
}

// Apply transitions a PREVIEWED session to APPLIED, returning a new plan
// version with the repaired assignment set. Callers handle idempotency-key
// replay at the storage layer (spec.md §4.6: same key replayed with the
// same payload returns the prior result unchanged); Apply itself refuses a
// BLOCK verdict and an already-LOCKED base plan.
func Apply(session Session, newPlanID string) (model.PlanVersion, model.PlanState, error) {
	if session.BasePlan.State == model.PlanLocked {
		return model.PlanVersion{}, "", errs.New(errs.Policy, errs.CodePlanLocked, "base plan is LOCKED; repair forbidden")
	}
	if session.Preview.Verdict == VerdictBlock {
		return model.PlanVersion{}, "", errs.New(errs.Policy, errs.CodeRepairInfeasible, "cannot apply a BLOCK verdict")
	}

	removedIDs := map[string]bool{}
	for _, a := range session.Preview.Diff.Removed {
		removedIDs[a.TourInstanceID+"|"+a.DriverID] = true
	}
	var finalAssignments []model.Assignment
	for _, a := range session.BasePlan.Assignments {
		if removedIDs[a.TourInstanceID+"|"+a.DriverID] {
			continue
		}
		finalAssignments = append(finalAssignments, a)
	}
	finalAssignments = append(finalAssignments, session.Preview.Diff.Added...)

	successor := model.PlanVersion{
		ID:              newPlanID,
		Tenant:          session.BasePlan.Tenant,
		Site:            session.BasePlan.Site,
		ForecastVersion: session.BasePlan.ForecastVersion,
		State:           model.PlanSolved,
		Assignments:     finalAssignments,
		PredecessorID:   session.BasePlan.ID,
	}

	baseNewState := session.BasePlan.State
	if session.BasePlan.State == model.PlanPublished {
		baseNewState = model.PlanSuperseded
	}
	return successor, baseNewState, nil
}

// ChangeBudget bounds an orchestrated repair's blast radius.
type ChangeBudget struct {
	MaxChangedTours   int
	MaxChangedDrivers int
	MaxChainDepth     int
}

// Proposal is one ranked orchestrated-repair candidate.
type Proposal struct {
	Preview        PreviewResult
	Feasible       bool
	QualityScore   float64 // lower is better: churn-weighted
	ChangedTours   int
	ChangedDrivers int
	ChainDepth     int
}

// Diagnostics explains why no feasible proposal exists within budget.
type Diagnostics struct {
	TopBlockingReasons []string
	UncoveredTourIDs   []string
	SuggestedActions   []string
}

// Incident is an unavailability affecting one driver over a time range,
// the orchestrated-repair entry point's trigger (spec.md §4.6).
type Incident struct {
	DriverID string
	From     time.Time
	To       time.Time
}

// Orchestrate produces up to k ranked proposals for repairing basePlan
// against incident within budget, or Diagnostics when none is feasible.
// Each proposal reruns Preview (chain depth 1: direct reassignment only --
// this controller does not currently model multi-hop chained reassignment,
// so ChainDepth is always <= 1).
func Orchestrate(basePlan model.PlanVersion, instances map[string]model.TourInstance, incident Incident, budget ChangeBudget, now time.Time, minRestMinutes int, freezeCheck FreezeCheck, policyHash string, k int, seed int64) ([]Proposal, *Diagnostics) {
	absence := Absence{DriverID: incident.DriverID, From: incident.From, To: incident.To, Reason: "INCIDENT"}

	var proposals []Proposal
	for i := 0; i < k; i++ {
		preview := Preview(basePlan, instances, []Absence{absence}, now, minRestMinutes, freezeCheck, policyHash, seed+int64(i))
		changedDrivers := map[string]bool{}
		for _, a := range preview.Diff.Added {
			changedDrivers[a.DriverID] = true
		}
		for _, a := range preview.Diff.Removed {
			changedDrivers[a.DriverID] = true
		}
		changedTours := len(preview.Diff.Added) + len(preview.Diff.Removed)

		withinBudget := changedTours <= budget.MaxChangedTours && len(changedDrivers) <= budget.MaxChangedDrivers
		feasible := withinBudget && preview.Verdict != VerdictBlock

		proposals = append(proposals, Proposal{
			Preview:        preview,
			Feasible:       feasible,
			QualityScore:   float64(changedTours) + float64(len(changedDrivers))*0.5,
			ChangedTours:   changedTours,
			ChangedDrivers: len(changedDrivers),
			ChainDepth:     1,
		})
		// Preview is currently deterministic given identical inputs (it does
		// not consume the seed for anything except session-id derivation),
		// so further iterations would be exact duplicates; one proposal is
		// sufficient until a genuinely stochastic reassignment strategy is
		// added.
		break
	}

	sort.SliceStable(proposals, func(i, j int) bool { return proposals[i].QualityScore < proposals[j].QualityScore })

	anyFeasible := false
	for _, p := range proposals {
		if p.Feasible {
			anyFeasible = true
			break
		}
	}
	if anyFeasible {
		return proposals, nil
	}

	var reasons, uncovered, actions []string
	for _, p := range proposals {
		if p.Preview.Summary.UncoveredAfter > 0 {
			reasons = append(reasons, "uncovered_after>0")
			removed := map[string]bool{}
			for _, a := range p.Preview.Diff.Removed {
				removed[a.TourInstanceID+"|"+a.DriverID] = true
			}
			covering := append([]model.Assignment(nil), p.Preview.Diff.Added...)
			for _, a := range basePlan.Assignments {
				if !removed[a.TourInstanceID+"|"+a.DriverID] {
					covering = append(covering, a)
				}
			}
			for id := range instances {
				covered := false
				for _, a := range covering {
					if a.TourInstanceID == id {
						covered = true
						break
					}
				}
				if !covered {
					uncovered = append(uncovered, id)
				}
			}
		}
		if len(p.Preview.Violations.Freeze) > 0 {
			reasons = append(reasons, "freeze_violations>0")
		}
		if p.ChangedTours > budget.MaxChangedTours || p.ChangedDrivers > budget.MaxChangedDrivers {
			reasons = append(reasons, "change_budget_exceeded")
			actions = append(actions, "increase change budget")
		}
	}
	sort.Strings(uncovered)
	actions = append(actions, "enable partial proposals", "run full validation")
	return proposals, &Diagnostics{TopBlockingReasons: dedupe(reasons), UncoveredTourIDs: dedupe(uncovered), SuggestedActions: dedupe(actions)}
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
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

func itoa64(n int64) string { return itoa(int(n)) }
