package store

import (
	"context"
	"fmt"
	"strings"
)

// Status is the attendance state of one subject on one date.
type Status string

const (
	StatusPresent         Status = "present"
	StatusAbsent          Status = "absent"
	StatusLate            Status = "late"
	StatusMedicalApproved Status = "medical_approved"
	StatusMedicalExcused  Status = "medical_excused"
	StatusCancelled       Status = "cancelled"
	StatusSubstituted     Status = "substituted"

	// StatusPending means "no log". It is never persisted.
	StatusPending Status = "pending"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusPresent,
	StatusAbsent,
	StatusLate,
	StatusMedicalApproved,
	StatusMedicalExcused,
	StatusCancelled,
	StatusSubstituted,
	StatusPending,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusMedicalApproved,
		StatusMedicalExcused, StatusCancelled, StatusSubstituted, StatusPending:
		return true
	}
	return false
}

// IsPending reports whether s means the absence of a log.
func (s Status) IsPending() bool {
	return s == StatusPending || s == ""
}

// CountsTowardTotal reports whether a log with this status increments a
// subject's total class counter.
func (s Status) CountsTowardTotal() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusMedicalApproved:
		return true
	}
	return false
}

// CountsAsAttended reports whether a log with this status increments a
// subject's attended counter.
func (s Status) CountsAsAttended() bool {
	switch s {
	case StatusPresent, StatusLate, StatusMedicalApproved:
		return true
	}
	return false
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(text string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(text)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown attendance status %q", text)
	}
	return s, nil
}

// AttendanceLog is one recorded status of a subject on a date.
type AttendanceLog struct {
	ID        string
	SubjectID string
	// Date is the calendar day, YYYY-MM-DD.
	Date      string
	Status    Status
	Note      string
	Semester  int
	CreatedTs int64
	UpdatedTs int64
}

// Clone returns a copy of the log.
func (l *AttendanceLog) Clone() *AttendanceLog {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// DayClass is a scheduled slot on a concrete date with its marked status.
// Status is StatusPending and LogID empty when the subject is unmarked.
type DayClass struct {
	Slot        *SlotAssignment
	SubjectName string
	Status      Status
	LogID       string
	Note        string
}

// Clone returns a deep copy of the day class.
func (c *DayClass) Clone() *DayClass {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Slot = c.Slot.Clone()
	return &cp
}

// SubjectID returns the subject of the underlying slot, if any.
func (c *DayClass) SubjectID() string {
	if c == nil || c.Slot == nil {
		return ""
	}
	return c.Slot.SubjectID
}

// FetchMonthLogs returns the logs of a month grouped by date.
func (s *Store) FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*AttendanceLog, error) {
	return s.driver.FetchMonthLogs(ctx, year, month, semester)
}

// FetchDayClasses returns the classes scheduled on date with their statuses.
func (s *Store) FetchDayClasses(ctx context.Context, date string, semester int) ([]*DayClass, error) {
	return s.driver.FetchDayClasses(ctx, date, semester)
}

// WriteAttendance creates or replaces the log of subjectID on date.
// Writes are throttled by the store's limiter.
func (s *Store) WriteAttendance(ctx context.Context, subjectID string, status Status, date, note string) (*AttendanceLog, error) {
	if err := s.waitWrite(ctx); err != nil {
		return nil, err
	}
	return s.driver.WriteAttendance(ctx, subjectID, status, date, note)
}

// DeleteAttendance removes a log by id.
func (s *Store) DeleteAttendance(ctx context.Context, logID string) error {
	if err := s.waitWrite(ctx); err != nil {
		return err
	}
	return s.driver.DeleteAttendance(ctx, logID)
}
