// Package timetable reconciles a semester's bell schedule (periods) with its
// per-weekday subject assignments.
//
// Key features:
//   - Deterministic day timelines with one resolved slot per period
//   - Placeholder synthesis for unfilled periods
//   - Structure validation with non-fatal conflict reporting
//
// Matching is by start time within MatchTolerance, never by id, so editing
// the structure never orphans an assignment.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/classledger/internal/util"
	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/server/timecodec"
	"github.com/hrygo/classledger/store"
)

// weekOrder lists weekdays the way a timetable is read.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

type service struct {
	store Store
}

// Store is the interface for store operations needed by the timetable service.
type Store interface {
	FetchTimetable(ctx context.Context, semester int) (*store.Timetable, error)
	SaveTimetableStructure(ctx context.Context, periods []*store.Period, semester int) error
	SaveSlotAssignment(ctx context.Context, semester int, slot *store.SlotAssignment) (*store.SlotAssignment, error)
	DeleteSlotAssignment(ctx context.Context, id string) error
}

// NewService creates a new timetable service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Timeline(ctx context.Context, semester int, weekday time.Weekday) (*DayTimeline, error) {
	tt, err := s.fetch(ctx, semester)
	if err != nil {
		return nil, err
	}
	return s.merge(tt, weekday), nil
}

func (s *service) Week(ctx context.Context, semester int) ([]*DayTimeline, error) {
	tt, err := s.fetch(ctx, semester)
	if err != nil {
		return nil, err
	}
	week := make([]*DayTimeline, 0, len(weekOrder))
	for _, wd := range weekOrder {
		week = append(week, s.merge(tt, wd))
	}
	return week, nil
}

func (s *service) merge(tt *store.Timetable, weekday time.Weekday) *DayTimeline {
	timeline := Merge(weekday, tt.Periods, tt.Day(weekday))
	if len(timeline.Conflicts) > 0 {
		slog.Warn("timetable structure has conflicting periods",
			"semester", tt.Semester,
			"weekday", weekday.String(),
			"conflicts", len(timeline.Conflicts))
	}
	return timeline
}

func (s *service) Structure(ctx context.Context, semester int) ([]*store.Period, error) {
	tt, err := s.fetch(ctx, semester)
	if err != nil {
		return nil, err
	}
	periods := make([]*store.Period, len(tt.Periods))
	copy(periods, tt.Periods)
	store.SortPeriods(periods)
	return periods, nil
}

func (s *service) SaveStructure(ctx context.Context, semester int, periods []*store.Period) ([]*store.Period, []StructureConflict, error) {
	if semester <= 0 {
		return nil, nil, ledgererr.Validation("semester must be positive, got %d", semester)
	}

	withIDs := make([]*store.Period, 0, len(periods))
	for _, p := range periods {
		if p == nil {
			continue
		}
		c := p.Clone()
		if c.ID == "" {
			c.ID = util.GenShortID()
		}
		c.Semester = semester
		withIDs = append(withIDs, c)
	}

	sorted, conflicts, err := ValidateStructure(withIDs)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.SaveTimetableStructure(ctx, sorted, semester); err != nil {
		return nil, nil, ledgererr.RemoteWrite("save timetable structure", err)
	}

	if len(conflicts) > 0 {
		slog.Warn("saved timetable structure with conflicts",
			"semester", semester,
			"error", ConflictsError(conflicts))
	}
	slog.Info("saved timetable structure", "semester", semester, "periods", len(sorted))
	return sorted, conflicts, nil
}

func (s *service) AddPeriod(ctx context.Context, semester int, period *store.Period) ([]*store.Period, []StructureConflict, error) {
	if period == nil {
		return nil, nil, ledgererr.Validation("period is empty")
	}
	current, err := s.Structure(ctx, semester)
	if err != nil {
		return nil, nil, err
	}
	return s.SaveStructure(ctx, semester, append(current, period))
}

func (s *service) DeletePeriod(ctx context.Context, semester int, periodID string) ([]*store.Period, error) {
	current, err := s.Structure(ctx, semester)
	if err != nil {
		return nil, err
	}

	kept := make([]*store.Period, 0, len(current))
	for _, p := range current {
		if p.ID != periodID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(current) {
		return nil, ledgererr.NotFound(fmt.Sprintf("period %s", periodID))
	}

	saved, _, err := s.SaveStructure(ctx, semester, kept)
	return saved, err
}

func (s *service) SaveSlot(ctx context.Context, semester int, slot *store.SlotAssignment) (*store.SlotAssignment, error) {
	if slot == nil {
		return nil, ledgererr.Validation("slot is empty")
	}
	n := slot.Clone()
	if n.Kind == "" {
		n.Kind = store.KindClass
	}
	if err := ValidateSlot(n); err != nil {
		return nil, err
	}
	if IsPlaceholderID(n.ID) {
		// Filling a placeholder creates a new assignment.
		n.ID = ""
	}
	n.StartTime, _ = timecodec.Normalize(n.StartTime)
	if n.EndTime != "" {
		n.EndTime, _ = timecodec.Normalize(n.EndTime)
	}

	saved, err := s.store.SaveSlotAssignment(ctx, semester, n)
	if err != nil {
		return nil, ledgererr.RemoteWrite("save slot assignment", err)
	}
	return saved, nil
}

func (s *service) DeleteSlot(ctx context.Context, id string) error {
	if id == "" || IsPlaceholderID(id) {
		return ledgererr.Validation("slot id %q does not name a stored assignment", id)
	}
	if err := s.store.DeleteSlotAssignment(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ledgererr.NotFound(fmt.Sprintf("slot assignment %s", id))
		}
		return ledgererr.RemoteWrite("delete slot assignment", err)
	}
	return nil
}

func (s *service) fetch(ctx context.Context, semester int) (*store.Timetable, error) {
	tt, err := s.store.FetchTimetable(ctx, semester)
	if err != nil {
		return nil, ledgererr.RemoteRead(fmt.Sprintf("fetch timetable of semester %d", semester), err)
	}
	if tt == nil {
		tt = &store.Timetable{Semester: semester}
	}
	return tt, nil
}
