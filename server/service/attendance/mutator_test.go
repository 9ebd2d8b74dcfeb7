package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/server/internal/observability"
	"github.com/hrygo/classledger/store"
	"github.com/hrygo/classledger/store/cache"
)

const (
	testDate  = "2024-03-15"
	testMonth = "2024-03"
)

// MockStoreForAttendance is an in-memory academic-data service.
type MockStoreForAttendance struct {
	mu       sync.Mutex
	subjects map[string][]string // date -> scheduled subject ids
	logs     map[string]*store.AttendanceLog
	nextID   int

	writeErr, deleteErr, dayErr, monthErr error

	writes, deletes, dayFetches int

	// monthHold parks the next month fetch after it has read the logs.
	monthHold, monthHeld chan struct{}
}

func newMockStore(subjects map[string][]string) *MockStoreForAttendance {
	return &MockStoreForAttendance{subjects: subjects, logs: map[string]*store.AttendanceLog{}}
}

func logKey(subjectID, date string) string { return subjectID + "|" + date }

func (m *MockStoreForAttendance) seed(subjectID, date string, status store.Status) *store.AttendanceLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l := &store.AttendanceLog{ID: fmt.Sprintf("log-%d", m.nextID), SubjectID: subjectID, Date: date, Status: status, Semester: 1}
	m.logs[logKey(subjectID, date)] = l
	return l.Clone()
}

func (m *MockStoreForAttendance) set(fn func(m *MockStoreForAttendance)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *MockStoreForAttendance) counts() (writes, deletes, dayFetches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes, m.deletes, m.dayFetches
}

func (m *MockStoreForAttendance) FetchMonthLogs(ctx context.Context, year, month, semester int) (map[string][]*store.AttendanceLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.monthErr != nil {
		err := m.monthErr
		m.mu.Unlock()
		return nil, err
	}
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	out := map[string][]*store.AttendanceLog{}
	for _, l := range m.logs {
		if strings.HasPrefix(l.Date, prefix) {
			out[l.Date] = append(out[l.Date], l.Clone())
		}
	}
	for _, logs := range out {
		sort.Slice(logs, func(i, j int) bool { return logs[i].SubjectID < logs[j].SubjectID })
	}
	hold, held := m.monthHold, m.monthHeld
	m.monthHold, m.monthHeld = nil, nil
	m.mu.Unlock()

	if hold != nil {
		close(held)
		<-hold
	}
	return out, nil
}

func (m *MockStoreForAttendance) holdNextMonthFetch() (release, held chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monthHold, m.monthHeld = make(chan struct{}), make(chan struct{})
	return m.monthHold, m.monthHeld
}

func (m *MockStoreForAttendance) FetchDayClasses(ctx context.Context, date string, semester int) ([]*store.DayClass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dayErr != nil {
		return nil, m.dayErr
	}
	m.dayFetches++
	classes := make([]*store.DayClass, 0, len(m.subjects[date]))
	for i, subjectID := range m.subjects[date] {
		c := &store.DayClass{
			Slot: &store.SlotAssignment{
				ID:        "slot-" + subjectID,
				Semester:  semester,
				StartTime: fmt.Sprintf("%02d:00 AM", 9+i),
				SubjectID: subjectID,
				Kind:      store.KindClass,
			},
			SubjectName: strings.ToUpper(subjectID),
			Status:      store.StatusPending,
		}
		if l, ok := m.logs[logKey(subjectID, date)]; ok {
			c.Status, c.LogID, c.Note = l.Status, l.ID, l.Note
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func (m *MockStoreForAttendance) WriteAttendance(ctx context.Context, subjectID string, status store.Status, date, note string) (*store.AttendanceLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.writes++
	l, ok := m.logs[logKey(subjectID, date)]
	if !ok {
		m.nextID++
		l = &store.AttendanceLog{ID: fmt.Sprintf("log-%d", m.nextID), SubjectID: subjectID, Date: date, Semester: 1}
		m.logs[logKey(subjectID, date)] = l
	}
	l.Status, l.Note = status, note
	return l.Clone(), nil
}

func (m *MockStoreForAttendance) DeleteAttendance(ctx context.Context, logID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for k, l := range m.logs {
		if l.ID == logID {
			delete(m.logs, k)
			m.deletes++
			return nil
		}
	}
	return store.ErrNotFound
}

type mockRefresher struct {
	mock.Mock
}

func (r *mockRefresher) Invalidate(semester int) {
	r.Called(semester)
}

func newTestMutator(st Store) (*Mutator, *observability.Metrics) {
	metrics := observability.NewMetrics(10)
	return NewMutator(st, Config{Semester: 1, Metrics: metrics}), metrics
}

func selectedMutator(t *testing.T, st Store) (*Mutator, *observability.Metrics) {
	t.Helper()
	m, metrics := newTestMutator(st)
	_, err := m.SelectDate(context.Background(), testDate)
	require.NoError(t, err)
	return m, metrics
}

func TestSelectDateBuffersAdjacentMonths(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	m, _ := newTestMutator(st)

	day, err := m.SelectDate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, day, 2)
	assert.Equal(t, testDate, m.SelectedDate())
	assert.Equal(t, []string{"2024-02", "2024-03", "2024-04"}, m.Buffer().Cache().Keys())

	_, err = m.SelectDate(context.Background(), "15/03/2024")
	assert.True(t, ledgererr.IsValidation(err))
}

func TestMarkReplacesOptimisticLogWithServerLog(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	m, metrics := selectedMutator(t, st)

	written, err := m.Mark(context.Background(), "math", testDate, store.StatusPresent, MarkOptions{SkipRefresh: true, Note: "front row"})
	require.NoError(t, err)
	require.NotEmpty(t, written.ID)

	day := m.Day()
	assert.Equal(t, store.StatusPresent, day[0].Status)
	assert.Equal(t, written.ID, day[0].LogID)
	assert.Equal(t, "front row", day[0].Note)
	assert.Equal(t, store.StatusPending, day[1].Status)

	logs, ok := m.Buffer().Cache().LogsOn(testMonth, testDate)
	require.True(t, ok)
	require.Len(t, logs, 1)
	assert.Equal(t, written.ID, logs[0].ID)

	writes, _, _ := st.counts()
	assert.Equal(t, 1, writes)
	assert.EqualValues(t, 1, metrics.Snapshot().MutationTotal)
}

func TestMarkOverwritesExistingLogInCache(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	existing := st.seed("math", testDate, store.StatusAbsent)
	m, _ := selectedMutator(t, st)

	_, err := m.Mark(context.Background(), "math", testDate, store.StatusLate, MarkOptions{SkipRefresh: true})
	require.NoError(t, err)

	logs, _ := m.Buffer().Cache().LogsOn(testMonth, testDate)
	require.Len(t, logs, 1)
	assert.Equal(t, existing.ID, logs[0].ID)
	assert.Equal(t, store.StatusLate, logs[0].Status)
}

func TestMarkFailureLeavesStateEqualToFreshFetch(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	st.seed("physics", testDate, store.StatusAbsent)
	st.seed("math", "2024-03-02", store.StatusPresent)
	m, metrics := selectedMutator(t, st)

	st.set(func(s *MockStoreForAttendance) { s.writeErr = errors.New("service offline") })
	_, err := m.Mark(ctx, "math", testDate, store.StatusPresent, MarkOptions{})
	require.Error(t, err)
	assert.True(t, ledgererr.IsRemoteWrite(err))

	freshDay, err := st.FetchDayClasses(ctx, testDate, 1)
	require.NoError(t, err)
	assert.Equal(t, freshDay, m.Day())

	freshMonth, err := st.FetchMonthLogs(ctx, 2024, 3, 1)
	require.NoError(t, err)
	cached, ok := m.Buffer().Cache().Get(testMonth)
	require.True(t, ok)
	assert.Equal(t, cache.MonthData(freshMonth), cached)

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.MutationFailed)
	assert.EqualValues(t, 0, snap.Rollbacks)
}

func TestMarkFailureWithUnreachableServiceRollsBack(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	st.seed("physics", testDate, store.StatusAbsent)
	m, metrics := selectedMutator(t, st)
	before := m.Day()

	offline := errors.New("service offline")
	st.set(func(s *MockStoreForAttendance) {
		s.writeErr, s.dayErr, s.monthErr = offline, offline, offline
	})
	_, err := m.Mark(context.Background(), "math", testDate, store.StatusPresent, MarkOptions{})
	require.True(t, ledgererr.IsRemoteWrite(err))

	assert.Equal(t, before, m.Day())
	// The month that could not be corrected is dropped, not half-corrected.
	assert.False(t, m.Buffer().Cache().Has(testMonth))
	assert.True(t, m.Buffer().Cache().Has("2024-02"))
	assert.EqualValues(t, 1, metrics.Snapshot().Rollbacks)
}

func TestValidationHappensBeforeMutation(t *testing.T) {
	tests := []struct {
		name      string
		subjectID string
		date      string
		status    store.Status
	}{
		{"empty subject", "", testDate, store.StatusPresent},
		{"blank subject", "  ", testDate, store.StatusPresent},
		{"malformed date", "math", "2024-13-01", store.StatusPresent},
		{"unknown status", "math", testDate, store.Status("skipped")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMockStore(map[string][]string{testDate: {"math"}})
			m, _ := selectedMutator(t, st)
			before := m.Day()
			month, _ := m.Buffer().Cache().Get(testMonth)

			_, err := m.Mark(context.Background(), tt.subjectID, tt.date, tt.status, MarkOptions{})
			require.Error(t, err)
			assert.True(t, ledgererr.IsValidation(err))

			writes, _, _ := st.counts()
			assert.Zero(t, writes)
			assert.Equal(t, before, m.Day())
			after, _ := m.Buffer().Cache().Get(testMonth)
			assert.Equal(t, month, after)
		})
	}
}

func TestClearResolvesLogIDFromDayList(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	st.seed("math", testDate, store.StatusPresent)
	m, _ := selectedMutator(t, st)

	require.NoError(t, m.Clear(context.Background(), "math", testDate, ""))
	m.Wait()

	assert.Equal(t, store.StatusPending, m.Day()[0].Status)
	assert.Empty(t, m.Day()[0].LogID)
	logs, ok := m.Buffer().Cache().LogsOn(testMonth, testDate)
	assert.True(t, ok)
	assert.Empty(t, logs)
	_, deletes, _ := st.counts()
	assert.Equal(t, 1, deletes)
}

func TestClearResolvesLogIDFromService(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	st.seed("math", testDate, store.StatusAbsent)
	m, _ := newTestMutator(st)

	require.NoError(t, m.Clear(context.Background(), "math", testDate, ""))
	m.Wait()
	_, deletes, _ := st.counts()
	assert.Equal(t, 1, deletes)
}

func TestClearUnmarkedSubjectIsNoop(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	m, _ := selectedMutator(t, st)

	require.NoError(t, m.Clear(context.Background(), "math", testDate, ""))
	_, deletes, _ := st.counts()
	assert.Zero(t, deletes)
}

func TestClearFailureRefetches(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	l := st.seed("math", testDate, store.StatusPresent)
	m, _ := selectedMutator(t, st)

	st.set(func(s *MockStoreForAttendance) { s.deleteErr = errors.New("timeout") })
	err := m.Clear(context.Background(), "math", testDate, l.ID)
	assert.True(t, ledgererr.IsRemoteWrite(err))

	assert.Equal(t, store.StatusPresent, m.Day()[0].Status)
	logs, _ := m.Buffer().Cache().LogsOn(testMonth, testDate)
	require.Len(t, logs, 1)
	assert.Equal(t, l.ID, logs[0].ID)
}

func TestMarkPendingDeletesLog(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	st.seed("math", testDate, store.StatusPresent)
	m, _ := selectedMutator(t, st)

	written, err := m.Mark(context.Background(), "math", testDate, store.StatusPending, MarkOptions{SkipRefresh: true})
	require.NoError(t, err)
	assert.Nil(t, written)
	assert.Equal(t, store.StatusPending, m.Day()[0].Status)

	fresh, _ := st.FetchDayClasses(context.Background(), testDate, 1)
	assert.Equal(t, store.StatusPending, fresh[0].Status)
}

func TestMarkBatchRefreshesOnce(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math", "physics", "chem"}})
	refresher := &mockRefresher{}
	refresher.On("Invalidate", 1).Return().Once()

	m := NewMutator(st, Config{Semester: 1, Metrics: observability.NewMetrics(10), Refresher: refresher})
	_, err := m.SelectDate(context.Background(), testDate)
	require.NoError(t, err)

	written, err := m.MarkBatch(context.Background(), testDate, []BatchMark{
		{SubjectID: "math", Status: store.StatusPresent},
		{SubjectID: "physics", Status: store.StatusAbsent},
		{SubjectID: "chem", Status: store.StatusLate, Note: "bus"},
	})
	require.NoError(t, err)
	assert.Len(t, written, 3)
	m.Wait()

	refresher.AssertExpectations(t)
	refresher.AssertNumberOfCalls(t, "Invalidate", 1)

	day := m.Day()
	assert.Equal(t, store.StatusPresent, day[0].Status)
	assert.Equal(t, store.StatusAbsent, day[1].Status)
	assert.Equal(t, "bus", day[2].Note)
}

func TestMarkBatchValidatesEveryEntryFirst(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	m, _ := selectedMutator(t, st)

	_, err := m.MarkBatch(context.Background(), testDate, []BatchMark{
		{SubjectID: "math", Status: store.StatusPresent},
		{SubjectID: "physics", Status: "bunked"},
	})
	assert.True(t, ledgererr.IsValidation(err))
	writes, _, _ := st.counts()
	assert.Zero(t, writes)
}

func TestBackgroundRefreshOutlivesCallerCancellation(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	m, metrics := selectedMutator(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.Mark(ctx, "math", testDate, store.StatusPresent, MarkOptions{})
	require.NoError(t, err)
	cancel()
	m.Wait()

	_, _, dayFetches := st.counts()
	assert.Equal(t, 2, dayFetches)
	assert.EqualValues(t, 1, metrics.Snapshot().Refreshes)

	fresh, _ := st.FetchDayClasses(context.Background(), testDate, 1)
	assert.Equal(t, fresh, m.Day())
}

func TestBackgroundRefreshSkipsDeselectedDay(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}, "2024-03-16": {"physics"}})
	m, _ := selectedMutator(t, st)

	_, err := m.Mark(context.Background(), "math", "2024-03-16", store.StatusPresent, MarkOptions{})
	require.NoError(t, err)
	m.Wait()

	assert.Equal(t, testDate, m.SelectedDate())
	assert.Equal(t, "math", m.Day()[0].SubjectID())
	assert.Equal(t, store.StatusPending, m.Day()[0].Status)
}

func TestRefreshPicksUpRemoteChanges(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	m, _ := selectedMutator(t, st)

	st.seed("math", testDate, store.StatusMedicalApproved)
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, store.StatusMedicalApproved, m.Day()[0].Status)
	logs, _ := m.Buffer().Cache().LogsOn(testMonth, testDate)
	assert.Len(t, logs, 1)
}

func TestSetSemesterDropsState(t *testing.T) {
	st := newMockStore(map[string][]string{testDate: {"math"}})
	m, _ := selectedMutator(t, st)

	m.SetSemester(2)
	assert.Equal(t, 2, m.Semester())
	assert.Empty(t, m.SelectedDate())
	assert.Nil(t, m.Day())
	assert.Empty(t, m.Buffer().Cache().Keys())
}

func TestMonthBuffersOnDemand(t *testing.T) {
	st := newMockStore(nil)
	st.seed("math", "2024-05-02", store.StatusPresent)
	m, _ := newTestMutator(st)

	data, err := m.Month(context.Background(), "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 1, data.Count())
	assert.Equal(t, []string{"2024-05"}, m.Buffer().Cache().Keys())

	_, err = m.Month(context.Background(), "May 2024")
	assert.True(t, ledgererr.IsValidation(err))
}

func TestViewingAnotherMonthKeepsSelectedMonthBuffered(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(map[string][]string{testDate: {"math"}})
	m, _ := selectedMutator(t, st)

	_, err := m.Month(ctx, "2024-07")
	require.NoError(t, err)
	assert.Equal(t, testMonth, m.Buffer().ActiveMonth())

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, []string{"2024-02", "2024-03", "2024-04"}, m.Buffer().Cache().Keys())
}

func TestEarlierMonthRefreshDoesNotOverwriteLaterWrite(t *testing.T) {
	ctx := context.Background()
	st := newMockStore(map[string][]string{testDate: {"math", "physics"}})
	m, _ := selectedMutator(t, st)
	before, ok := m.Buffer().Cache().FetchedAt(testMonth)
	require.True(t, ok)

	// The refresh after the first mark reads the month and stalls.
	release, held := st.holdNextMonthFetch()
	_, err := m.Mark(ctx, "math", testDate, store.StatusPresent, MarkOptions{})
	require.NoError(t, err)
	<-held

	_, err = m.Mark(ctx, "physics", testDate, store.StatusAbsent, MarkOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		at, ok := m.Buffer().Cache().FetchedAt(testMonth)
		return ok && at.After(before)
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	m.Wait()

	logs, ok := m.Buffer().Cache().LogsOn(testMonth, testDate)
	require.True(t, ok)
	assert.Len(t, logs, 2)
	fresh, err := st.FetchDayClasses(ctx, testDate, 1)
	require.NoError(t, err)
	assert.Equal(t, fresh, m.Day())
}
