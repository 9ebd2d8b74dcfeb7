package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It is the contract of the academic-data service: every remote read and
// write the engine performs goes through it.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Attendance related methods.
	FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*AttendanceLog, error)
	FetchDayClasses(ctx context.Context, date string, semester int) ([]*DayClass, error)
	// WriteAttendance upserts the log of (subjectID, date) and updates the
	// subject's counters in the same transaction.
	WriteAttendance(ctx context.Context, subjectID string, status Status, date, note string) (*AttendanceLog, error)
	DeleteAttendance(ctx context.Context, logID string) error

	// Timetable related methods.
	FetchTimetable(ctx context.Context, semester int) (*Timetable, error)
	SaveTimetableStructure(ctx context.Context, periods []*Period, semester int) error
	SaveSlotAssignment(ctx context.Context, semester int, slot *SlotAssignment) (*SlotAssignment, error)
	DeleteSlotAssignment(ctx context.Context, id string) error

	// Subject related methods.
	FetchSubjects(ctx context.Context, semester int) ([]*Subject, error)
	SaveSubject(ctx context.Context, semester int, subject *Subject) (*Subject, error)

	// SemesterResult related methods.
	FetchSemesterResults(ctx context.Context) ([]*SemesterResult, error)
	SaveSemesterResult(ctx context.Context, result *SemesterResult) error
	DeleteSemesterResult(ctx context.Context, semester int) error
}
