// Package model holds the core domain types shared by every solver and
// governance component: tour templates/instances, blocks, roster columns,
// plan versions, snapshots and assignments.
//
// Types here are plain values that reference each other by id; nothing in
// this package owns a database connection or performs I/O.
package model

import "time"

// DriverType constrains a roster column to a labor category.
type DriverType string

const (
	DriverFTE DriverType = "FTE"
	DriverPT  DriverType = "PT"
)

// PauseZone classifies the inter-tour gaps inside a block.
type PauseZone string

const (
	PauseRegular PauseZone = "REGULAR"
	PauseSplit   PauseZone = "SPLIT"
)

// BlockKind enumerates the legal block shapes.
type BlockKind string

const (
	BlockB1       BlockKind = "B1"
	BlockB2Reg    BlockKind = "B2_REG"
	BlockB2Split  BlockKind = "B2_SPLIT"
	BlockB3       BlockKind = "B3"
)

// PlanState is the monotonic lifecycle of a Plan Version.
type PlanState string

const (
	PlanDraft     PlanState = "DRAFT"
	PlanSolved    PlanState = "SOLVED"
	PlanApproved  PlanState = "APPROVED"
	PlanPublished PlanState = "PUBLISHED"
	PlanLocked    PlanState = "LOCKED"
	PlanFailed    PlanState = "FAILED"
	PlanSuperseded PlanState = "SUPERSEDED"
)

// Immutable reports whether a plan in this state refuses further mutation.
func (s PlanState) Immutable() bool {
	return s == PlanLocked || s == PlanPublished
}

// SnapshotStatus is the lifecycle of a published snapshot.
type SnapshotStatus string

const (
	SnapshotActive     SnapshotStatus = "ACTIVE"
	SnapshotSuperseded SnapshotStatus = "SUPERSEDED"
	SnapshotArchived   SnapshotStatus = "ARCHIVED"
)

// TourTemplate is the canonical forecast entity before expansion.
//
// TemplateID is the caller-supplied template row id
// (forecast.TemplateInput.TemplateID), kept distinct from Fingerprint:
// Fingerprint intentionally excludes tenant/site per spec so that two
// templates at the same day/time/depot/skill hash identically, while
// TemplateID keeps each template and its instances individually
// addressable.
type TourTemplate struct {
	TemplateID      string
	Tenant          string
	Site            string
	Day             int // 1..7
	StartMin        int // minutes since midnight, 0..1439
	EndMin          int // minutes since midnight, 0..1439; may be <= StartMin
	CrossesMidnight bool
	Depot           string
	Skill           string
	Count           int
	Fingerprint     string
}

// DurationMin returns the tour's duration, allowing End < Start to mean the
// tour crosses midnight.
func (t TourTemplate) DurationMin() int {
	if t.EndMin <= t.StartMin {
		return (1440 - t.StartMin) + t.EndMin
	}
	return t.EndMin - t.StartMin
}

// TourInstance is one physical tour expanded from a template.
type TourInstance struct {
	TemplateID      string
	InstanceNo      int
	Tenant          string
	Site            string
	Day             int
	StartMin        int
	EndMin          int
	CrossesMidnight bool
	Depot           string
	Skill           string
}

// ID is the unique identity of this instance: (template_id, instance_no).
func (ti TourInstance) ID() string {
	return ti.TemplateID + "#" + itoa(ti.InstanceNo)
}

// DurationMin mirrors TourTemplate.DurationMin for an expanded instance.
func (ti TourInstance) DurationMin() int {
	if ti.EndMin <= ti.StartMin {
		return (1440 - ti.StartMin) + ti.EndMin
	}
	return ti.EndMin - ti.StartMin
}

// AbsoluteStartMin returns the tour's start expressed as minute-of-week
// (0..10079), with day 1 starting at minute 0.
func (ti TourInstance) AbsoluteStartMin() int {
	return (ti.Day-1)*1440 + ti.StartMin
}

// AbsoluteEndMin returns the tour's end expressed as an absolute minute
// count from the start of the week; it is allowed to exceed 10080 when a
// day-7 tour crosses midnight (the week has no wraparound in this model).
func (ti TourInstance) AbsoluteEndMin() int {
	return ti.AbsoluteStartMin() + ti.DurationMin()
}

// Block is an ordered sequence of 1..3 tour instances for one driver on one
// calendar day.
type Block struct {
	Day         int
	Tours       []TourInstance // chronological order by start
	GapsMin     []int          // len(Tours)-1 gaps between consecutive tours
	WorkMin     int            // sum of tour durations
	SpanMin     int            // last.end - first.start
	PauseZone   PauseZone
	Kind        BlockKind
}

// FirstStartMin and LastEndMin are convenience accessors used for ordering
// and span computation.
func (b Block) FirstStartMin() int { return b.Tours[0].AbsoluteStartMin() }
func (b Block) LastEndMin() int    { return b.Tours[len(b.Tours)-1].AbsoluteEndMin() }

// TourIDs returns the instance ids referenced by this block, in the block's
// tour order (not sorted), used for fingerprinting.
func (b Block) TourIDs() []string {
	ids := make([]string, len(b.Tours))
	for i, t := range b.Tours {
		ids[i] = t.ID()
	}
	return ids
}

// Column is one driver's weekly schedule.
type Column struct {
	DriverID    string // assigned once the column is selected into a plan; empty on unselected candidates
	DriverType  DriverType
	Days        [8]*Block // index 1..7 used, 0 unused
	WeeklyMin   int
	Cost        int64
	Fingerprint string
}

// Assignment binds one tour instance to one driver within a plan.
type Assignment struct {
	DriverID       string
	TourInstanceID string
	Day            int
	StartMin       int
	EndMin         int
	BlockKind      BlockKind
}

// AbsoluteStartMin / AbsoluteEndMin mirror TourInstance's for overlap/rest
// checks performed directly against assignments.
func (a Assignment) AbsoluteStartMin() int { return (a.Day-1)*1440 + a.StartMin }
func (a Assignment) AbsoluteEndMin() int {
	d := a.EndMin - a.StartMin
	if a.EndMin <= a.StartMin {
		d = (1440 - a.StartMin) + a.EndMin
	}
	return a.AbsoluteStartMin() + d
}

// PlanVersion is a single candidate or committed weekly roster.
type PlanVersion struct {
	ID               string
	Tenant           string
	Site             string
	ForecastVersion  string
	Seed             int64
	SolverConfigHash string
	OutputHash       string
	State            PlanState
	CreatedAt        time.Time
	Assignments      []Assignment
	Columns          []Column
	PredecessorID    string // non-empty for repair-produced successors
}

// Snapshot is an immutable copy of a plan produced on publish.
type Snapshot struct {
	SnapshotID      string
	Tenant          string
	Site            string
	PlanVersionID   string
	VersionNumber   int
	Status          SnapshotStatus
	PublishedAt     time.Time
	PublishedBy     string
	FreezeUntil     time.Time
}

// FreezeWindow is a tenant/site policy governing how close to a tour's start
// it may still be modified.
type FreezeWindow struct {
	Tenant        string
	Site          string
	HorizonMinutes int
	Until         time.Time
}

// Driver is referenced by id from roster columns and assignments; fleet/HR
// management is out of scope, so this carries only what the solver needs.
type Driver struct {
	DriverID   string
	Tenant     string
	Site       string
	Constraint DriverType // FTE, PT, or "" meaning EITHER
	Skills     []string
	Active     bool
}

// Forecast is the top-level ingestion unit owning tour templates for one
// (tenant, site, forecast_version).
type Forecast struct {
	Tenant          string
	Site            string
	ForecastVersion string
	WeekStart       time.Time
	Templates       []TourTemplate
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
