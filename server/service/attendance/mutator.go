package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/server/internal/observability"
	"github.com/hrygo/classledger/server/timezone"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/cache"
)

// Config configures a Mutator.
type Config struct {
	Semester int
	// MonthMaxAge is how long a buffered month stays fresh.
	MonthMaxAge time.Duration
	// Refresher is invalidated after every refresh. Optional.
	Refresher AggregateRefresher
	// Metrics defaults to observability.GlobalMetrics.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Mutator applies attendance changes for one semester.
type Mutator struct {
	store     Store
	buffer    *cache.MonthBuffer
	refresher AggregateRefresher
	metrics   *observability.Metrics
	logger    *slog.Logger

	// mu guards the selected day and serializes optimistic updates.
	mu       sync.Mutex
	selected string
	day      []*store.DayClass
	// dayTicket numbers day fetches in the order they start; dayStored is
	// the ticket of the installed list. An earlier fetch never replaces a
	// later one.
	dayTicket uint64
	dayStored uint64

	background sync.WaitGroup
}

// NewMutator creates a Mutator over st.
func NewMutator(st Store, cfg Config) *Mutator {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.GlobalMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		store:     st,
		buffer:    cache.NewMonthBuffer(st, cfg.Semester, cfg.MonthMaxAge),
		refresher: cfg.Refresher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Buffer exposes the month buffer.
func (m *Mutator) Buffer() *cache.MonthBuffer {
	return m.buffer
}

// Semester returns the active semester.
func (m *Mutator) Semester() int {
	return m.buffer.Semester()
}

// SetSemester switches the active semester. Buffered months and the selected
// day are dropped.
func (m *Mutator) SetSemester(semester int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer.SetSemester(semester)
	m.selected = ""
	m.day = nil
}

// SelectDate loads the class list of date and buffers its month and the two
// adjacent months.
func (m *Mutator) SelectDate(ctx context.Context, date string) ([]*store.DayClass, error) {
	if !timezone.IsValidDate(date) {
		return nil, ledgererr.Validation("malformed date %q", date)
	}
	monthKey, _ := timezone.MonthOf(date)

	ticket := m.nextDayTicket()
	classes, err := m.store.FetchDayClasses(ctx, date, m.Semester())
	if err != nil {
		return nil, ledgererr.RemoteRead(fmt.Sprintf("fetch classes of %s", date), err)
	}

	m.mu.Lock()
	m.selected = date
	m.day = cloneDay(classes)
	m.dayStored = max(m.dayStored, ticket)
	m.mu.Unlock()

	if err := m.buffer.SetActiveMonth(ctx, monthKey); err != nil {
		return cloneDay(classes), ledgererr.RemoteRead(fmt.Sprintf("buffer month %s", monthKey), err)
	}
	return cloneDay(classes), nil
}

// SelectedDate returns the date last passed to SelectDate.
func (m *Mutator) SelectedDate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Day returns a copy of the selected day's class list.
func (m *Mutator) Day() []*store.DayClass {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDay(m.day)
}

// Month returns the logs of a month, buffering it first when absent. The
// buffer stays centred on the selected date's month.
func (m *Mutator) Month(ctx context.Context, monthKey string) (cache.MonthData, error) {
	if data, ok := m.buffer.Cache().Get(monthKey); ok {
		return data, nil
	}
	if _, _, err := timezone.ParseMonth(monthKey); err != nil {
		return nil, ledgererr.Validation("malformed month %q", monthKey)
	}
	if err := m.buffer.Load(ctx, monthKey); err != nil {
		return nil, ledgererr.RemoteRead(fmt.Sprintf("fetch month %s", monthKey), err)
	}
	data, _ := m.buffer.Cache().Get(monthKey)
	return data, nil
}

// Mark sets the status of subjectID on date. Marking StatusPending clears
// the existing log.
//
// The day list and month cache are updated before the remote write. On a
// failed write both are re-fetched before the RemoteWrite error is returned.
func (m *Mutator) Mark(ctx context.Context, subjectID, date string, status store.Status, opts MarkOptions) (*store.AttendanceLog, error) {
	if err := validate(subjectID, date); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, ledgererr.Validation("unknown attendance status %q", status)
	}
	if status.IsPending() {
		return nil, m.clear(ctx, subjectID, date, "", opts.SkipRefresh)
	}

	op := observability.NewOperationContext(m.logger, observability.OpMark, m.Semester(), subjectID, date)
	m.metrics.RecordMutation(observability.OpMark)
	defer func() { m.metrics.RecordDuration(observability.OpMark, op.Duration()) }()

	optimistic := &store.AttendanceLog{
		SubjectID: subjectID,
		Date:      date,
		Status:    status,
		Note:      opts.Note,
		Semester:  m.Semester(),
	}
	snapshot := m.apply(subjectID, date, optimistic)

	written, err := m.store.WriteAttendance(ctx, subjectID, status, date, opts.Note)
	if err == nil && written == nil {
		err = errors.New("service returned no log")
	}
	if err != nil {
		m.metrics.RecordFailure(observability.OpMark)
		op.Error("attendance write failed", err)
		m.reconcile(ctx, date, snapshot)
		return nil, ledgererr.RemoteWrite("mark attendance", err).
			WithContext("subject", subjectID).
			WithContext("date", date)
	}

	m.apply(subjectID, date, written)
	op.Info("attendance marked", slog.String(observability.LogFieldStatus, string(status)), op.DurationAttr())

	if !opts.SkipRefresh {
		m.refreshInBackground(ctx, date)
	}
	return written.Clone(), nil
}

// Clear removes the log of subjectID on date. An empty logID is resolved
// from the day list, the month cache, or the service, in that order.
// Clearing an unmarked subject is a no-op.
func (m *Mutator) Clear(ctx context.Context, subjectID, date, logID string) error {
	if err := validate(subjectID, date); err != nil {
		return err
	}
	return m.clear(ctx, subjectID, date, logID, false)
}

// MarkBatch marks several subjects on one date serially. Only the last mark
// triggers a refresh. Every entry is validated before the first write; the
// batch stops at the first failed write.
func (m *Mutator) MarkBatch(ctx context.Context, date string, marks []BatchMark) ([]*store.AttendanceLog, error) {
	for _, mark := range marks {
		if err := validate(mark.SubjectID, date); err != nil {
			return nil, err
		}
		if !mark.Status.Valid() {
			return nil, ledgererr.Validation("unknown attendance status %q for subject %s", mark.Status, mark.SubjectID)
		}
	}

	written := make([]*store.AttendanceLog, 0, len(marks))
	for i, mark := range marks {
		opts := MarkOptions{SkipRefresh: i < len(marks)-1, Note: mark.Note}
		log, err := m.Mark(ctx, mark.SubjectID, date, mark.Status, opts)
		if err != nil {
			return written, errors.Wrapf(err, "batch stopped at subject %s", mark.SubjectID)
		}
		if log != nil {
			written = append(written, log)
		}
	}
	return written, nil
}

// Refresh drops every buffered month, re-buffers around the active month and
// re-fetches the selected day.
func (m *Mutator) Refresh(ctx context.Context) error {
	m.metrics.RecordRefresh()
	if err := m.buffer.Refresh(ctx); err != nil {
		return ledgererr.RemoteRead("refresh months", err)
	}

	date := m.SelectedDate()
	if date != "" {
		ticket := m.nextDayTicket()
		classes, err := m.store.FetchDayClasses(ctx, date, m.Semester())
		if err != nil {
			return ledgererr.RemoteRead(fmt.Sprintf("refresh classes of %s", date), err)
		}
		m.replaceDay(date, classes, ticket)
	}
	m.invalidateAggregates()
	return nil
}

// Wait blocks until every background refresh has finished.
func (m *Mutator) Wait() {
	m.background.Wait()
}

func (m *Mutator) clear(ctx context.Context, subjectID, date, logID string, skipRefresh bool) error {
	op := observability.NewOperationContext(m.logger, observability.OpClear, m.Semester(), subjectID, date)
	m.metrics.RecordMutation(observability.OpClear)
	defer func() { m.metrics.RecordDuration(observability.OpClear, op.Duration()) }()

	if logID == "" {
		resolved, err := m.resolveLogID(ctx, subjectID, date)
		if err != nil {
			return err
		}
		if resolved == "" {
			op.Debug("nothing to clear")
			return nil
		}
		logID = resolved
	}

	snapshot := m.apply(subjectID, date, nil)

	if err := m.store.DeleteAttendance(ctx, logID); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.metrics.RecordFailure(observability.OpClear)
		op.Error("attendance delete failed", err)
		m.reconcile(ctx, date, snapshot)
		return ledgererr.RemoteWrite("clear attendance", err).
			WithContext("subject", subjectID).
			WithContext("date", date)
	}
	op.Info("attendance cleared", op.DurationAttr())

	if !skipRefresh {
		m.refreshInBackground(ctx, date)
	}
	return nil
}

func (m *Mutator) resolveLogID(ctx context.Context, subjectID, date string) (string, error) {
	m.mu.Lock()
	if m.selected == date {
		for _, c := range m.day {
			if c.SubjectID() == subjectID && c.LogID != "" {
				m.mu.Unlock()
				return c.LogID, nil
			}
		}
	}
	m.mu.Unlock()

	monthKey, _ := timezone.MonthOf(date)
	if logs, ok := m.buffer.Cache().LogsOn(monthKey, date); ok {
		for _, l := range logs {
			if l.SubjectID == subjectID && l.ID != "" {
				return l.ID, nil
			}
		}
	}

	classes, err := m.store.FetchDayClasses(ctx, date, m.Semester())
	if err != nil {
		return "", ledgererr.RemoteRead(fmt.Sprintf("resolve log of %s on %s", subjectID, date), err)
	}
	for _, c := range classes {
		if c.SubjectID() == subjectID && c.LogID != "" {
			return c.LogID, nil
		}
	}
	return "", nil
}

// apply writes log (nil meaning pending) into the day list, if date is
// selected, and into the cached month. It returns the day list as it was
// before, or nil when date is not selected.
func (m *Mutator) apply(subjectID, date string, log *store.AttendanceLog) []*store.DayClass {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snapshot []*store.DayClass
	if m.selected == date {
		snapshot = cloneDay(m.day)
		for _, c := range m.day {
			if c.SubjectID() != subjectID {
				continue
			}
			if log == nil {
				c.Status, c.LogID, c.Note = store.StatusPending, "", ""
				continue
			}
			c.Status, c.LogID, c.Note = log.Status, log.ID, log.Note
		}
	}

	monthKey, _ := timezone.MonthOf(date)
	if logs, ok := m.buffer.Cache().LogsOn(monthKey, date); ok {
		next := make([]*store.AttendanceLog, 0, len(logs)+1)
		for _, l := range logs {
			if l.SubjectID != subjectID {
				next = append(next, l)
			}
		}
		if log != nil {
			next = append(next, log.Clone())
		}
		m.buffer.Cache().ApplyDelta(monthKey, date, next)
	}
	return snapshot
}

// reconcile re-fetches the day list and month of date after a failed write.
// A failed day fetch restores snapshot; a failed month fetch leaves the month
// absent.
func (m *Mutator) reconcile(ctx context.Context, date string, snapshot []*store.DayClass) {
	ctx = context.WithoutCancel(ctx)
	m.metrics.RecordRefresh()

	if m.SelectedDate() == date {
		ticket := m.nextDayTicket()
		classes, err := m.store.FetchDayClasses(ctx, date, m.Semester())
		if err != nil {
			slog.Warn("corrective day fetch failed, restoring snapshot",
				slog.String("date", date),
				slog.String("error", err.Error()))
			if snapshot != nil {
				m.replaceDay(date, snapshot, ticket)
				m.metrics.RecordRollback()
			}
		} else {
			m.replaceDay(date, classes, ticket)
		}
	}

	monthKey, _ := timezone.MonthOf(date)
	if m.buffer.Cache().Has(monthKey) {
		if err := m.buffer.RefetchMonth(ctx, monthKey); err != nil {
			slog.Warn("corrective month fetch failed, month invalidated",
				slog.String("month", monthKey),
				slog.String("error", err.Error()))
		}
	}
	m.invalidateAggregates()
}

// refreshInBackground re-fetches the day list and month of date on a
// goroutine that outlives ctx's cancellation.
func (m *Mutator) refreshInBackground(ctx context.Context, date string) {
	bg := context.WithoutCancel(ctx)
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		m.metrics.RecordRefresh()

		if m.SelectedDate() == date {
			ticket := m.nextDayTicket()
			classes, err := m.store.FetchDayClasses(bg, date, m.Semester())
			if err != nil {
				slog.Warn("background day refresh failed",
					slog.String("date", date),
					slog.String("error", err.Error()))
			} else {
				m.replaceDay(date, classes, ticket)
			}
		}

		monthKey, _ := timezone.MonthOf(date)
		if m.buffer.Cache().Has(monthKey) {
			if err := m.buffer.RefetchMonth(bg, monthKey); err != nil {
				slog.Warn("background month refresh failed",
					slog.String("month", monthKey),
					slog.String("error", err.Error()))
			}
		}
		m.invalidateAggregates()
	}()
}

// nextDayTicket numbers a day fetch that is about to start.
func (m *Mutator) nextDayTicket() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayTicket++
	return m.dayTicket
}

// replaceDay installs classes as the day list if date is still selected and
// no fetch that started later has been installed.
func (m *Mutator) replaceDay(date string, classes []*store.DayClass, ticket uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected != date || ticket <= m.dayStored {
		return
	}
	m.dayStored = ticket
	m.day = cloneDay(classes)
}

func (m *Mutator) invalidateAggregates() {
	if m.refresher != nil {
		m.refresher.Invalidate(m.Semester())
	}
}

func validate(subjectID, date string) error {
	if strings.TrimSpace(subjectID) == "" {
		return ledgererr.Validation("subject id is required")
	}
	if !timezone.IsValidDate(date) {
		return ledgererr.Validation("malformed date %q", date)
	}
	return nil
}

func cloneDay(classes []*store.DayClass) []*store.DayClass {
	if classes == nil {
		return nil
	}
	out := make([]*store.DayClass, len(classes))
	for i, c := range classes {
		out[i] = c.Clone()
	}
	return out
}
