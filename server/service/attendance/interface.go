// Package attendance applies attendance changes to the ledger.
//
// A Mutator owns the selected day's class list and the buffered months of
// attendance logs. Every change is applied optimistically to both, written
// to the academic-data service, and reconciled from the service afterwards.
// A failed write is followed by a synchronous corrective fetch so local state
// never diverges from the service for longer than one call.
package attendance

import (
	"context"

	"github.com/hrygo/classledger/store"
)

// Store is the interface for store operations needed by the Mutator.
type Store interface {
	FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*store.AttendanceLog, error)
	FetchDayClasses(ctx context.Context, date string, semester int) ([]*store.DayClass, error)
	WriteAttendance(ctx context.Context, subjectID string, status store.Status, date, note string) (*store.AttendanceLog, error)
	DeleteAttendance(ctx context.Context, logID string) error
}

// AggregateRefresher drops derived aggregates of a semester after its logs
// change.
type AggregateRefresher interface {
	Invalidate(semester int)
}

// MarkOptions tunes a single Mark call.
type MarkOptions struct {
	// SkipRefresh suppresses the background re-fetch. Bulk callers set it on
	// every mark but the last.
	SkipRefresh bool
	Note        string
}

// BatchMark is one entry of a MarkBatch call.
type BatchMark struct {
	SubjectID string
	Status    store.Status
	Note      string
}
