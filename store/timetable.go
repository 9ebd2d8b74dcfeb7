package store

import (
	"context"
	"time"
)

// Kind classifies periods and slot assignments.
type Kind string

const (
	KindClass  Kind = "class"
	KindBreak  Kind = "break"
	KindFree   Kind = "free"
	KindCustom Kind = "custom"
)

// Valid reports whether k is a known slot kind.
func (k Kind) Valid() bool {
	switch k {
	case KindClass, KindBreak, KindFree, KindCustom:
		return true
	}
	return false
}

// ValidPeriodKind reports whether k may be used on a Period.
func (k Kind) ValidPeriodKind() bool {
	return k == KindClass || k == KindBreak
}

// Period is one entry of a semester's bell schedule.
type Period struct {
	ID        string
	Semester  int
	StartTime string
	EndTime   string
	Kind      Kind
}

// Clone returns a copy of the period.
func (p *Period) Clone() *Period {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// SlotAssignment places a subject (or a break, free or custom block) on a
// weekday. It is matched to a Period by start time, never by id.
type SlotAssignment struct {
	ID        string
	Semester  int
	Weekday   time.Weekday
	StartTime string
	EndTime   string
	// SubjectID is empty for break, free and custom slots.
	SubjectID string
	Kind      Kind
	Classroom string
}

// Clone returns a copy of the slot.
func (s *SlotAssignment) Clone() *SlotAssignment {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Timetable is the full weekly structure of a semester.
type Timetable struct {
	Semester int
	Periods  []*Period
	Schedule map[time.Weekday][]*SlotAssignment
}

// Day returns the slot assignments of a weekday.
func (t *Timetable) Day(weekday time.Weekday) []*SlotAssignment {
	if t == nil || t.Schedule == nil {
		return nil
	}
	return t.Schedule[weekday]
}

// FetchTimetable returns the periods and weekly assignments of a semester.
func (s *Store) FetchTimetable(ctx context.Context, semester int) (*Timetable, error) {
	return s.driver.FetchTimetable(ctx, semester)
}

// SaveTimetableStructure replaces the periods of a semester. Slot
// assignments are left untouched.
func (s *Store) SaveTimetableStructure(ctx context.Context, periods []*Period, semester int) error {
	if err := s.waitWrite(ctx); err != nil {
		return err
	}
	return s.driver.SaveTimetableStructure(ctx, periods, semester)
}

// SaveSlotAssignment creates or updates a slot assignment.
func (s *Store) SaveSlotAssignment(ctx context.Context, semester int, slot *SlotAssignment) (*SlotAssignment, error) {
	if err := s.waitWrite(ctx); err != nil {
		return nil, err
	}
	return s.driver.SaveSlotAssignment(ctx, semester, slot)
}

// DeleteSlotAssignment removes a slot assignment by id.
func (s *Store) DeleteSlotAssignment(ctx context.Context, id string) error {
	if err := s.waitWrite(ctx); err != nil {
		return err
	}
	return s.driver.DeleteSlotAssignment(ctx, id)
}
