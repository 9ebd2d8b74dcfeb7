package timetable

import (
	"context"
	"time"

	"github.com/hrygo/classledger/store"
)

// Service reconciles a semester's bell schedule with its weekly slot
// assignments and edits both.
type Service interface {
	// Timeline merges the periods with the assignments of one weekday.
	Timeline(ctx context.Context, semester int, weekday time.Weekday) (*DayTimeline, error)

	// Week returns the seven timelines of a semester, Monday first.
	Week(ctx context.Context, semester int) ([]*DayTimeline, error)

	// Structure returns the periods of a semester in chronological order.
	Structure(ctx context.Context, semester int) ([]*store.Period, error)

	// SaveStructure validates, normalizes and stores the full period list.
	// Periods starting within MatchTolerance of their predecessor are saved
	// and reported as conflicts.
	SaveStructure(ctx context.Context, semester int, periods []*store.Period) ([]*store.Period, []StructureConflict, error)

	// AddPeriod appends one period to the structure.
	AddPeriod(ctx context.Context, semester int, period *store.Period) ([]*store.Period, []StructureConflict, error)

	// DeletePeriod removes one period. Assignments are kept and render as
	// free until a matching period exists again.
	DeletePeriod(ctx context.Context, semester int, periodID string) ([]*store.Period, error)

	// SaveSlot validates and stores a slot assignment.
	SaveSlot(ctx context.Context, semester int, slot *store.SlotAssignment) (*store.SlotAssignment, error)

	// DeleteSlot removes a slot assignment.
	DeleteSlot(ctx context.Context, id string) error
}

// ResolvedSlot is one entry of a DayTimeline.
type ResolvedSlot struct {
	// Slot is the real assignment, or a synthesized one when Placeholder.
	Slot *store.SlotAssignment
	// PeriodID is the period this slot fills; empty without periods.
	PeriodID string
	// PeriodKind is the kind of that period, or the slot's own kind
	// without periods.
	PeriodKind  store.Kind
	Placeholder bool
}

// DayTimeline is the resolved schedule of one weekday.
type DayTimeline struct {
	Weekday time.Weekday
	Slots   []*ResolvedSlot
	// Conflicts lists periods that start within MatchTolerance of the
	// previous period.
	Conflicts []StructureConflict
	// Unmatched lists assignments that fill no period.
	Unmatched []*store.SlotAssignment
}

// StructureConflict reports a period starting too close to its predecessor.
// The earlier period wins matching; the later one usually renders free.
type StructureConflict struct {
	PeriodID      string
	ConflictsWith string
	StartTime     string
	// Gap is the distance in minutes between the two starts.
	Gap int
}
