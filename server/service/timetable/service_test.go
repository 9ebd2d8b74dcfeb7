package timetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/store"
)

// MockStoreForTimetable is a mock implementation of the Store interface for testing.
type MockStoreForTimetable struct {
	periods  []*store.Period
	slots    []*store.SlotAssignment
	fetchErr error
	writeErr error
	nextID   int
}

func (m *MockStoreForTimetable) FetchTimetable(ctx context.Context, semester int) (*store.Timetable, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	tt := &store.Timetable{Semester: semester, Schedule: map[time.Weekday][]*store.SlotAssignment{}}
	for _, p := range m.periods {
		tt.Periods = append(tt.Periods, p.Clone())
	}
	for _, s := range m.slots {
		tt.Schedule[s.Weekday] = append(tt.Schedule[s.Weekday], s.Clone())
	}
	return tt, nil
}

func (m *MockStoreForTimetable) SaveTimetableStructure(ctx context.Context, periods []*store.Period, semester int) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.periods = nil
	for _, p := range periods {
		m.periods = append(m.periods, p.Clone())
	}
	return nil
}

func (m *MockStoreForTimetable) SaveSlotAssignment(ctx context.Context, semester int, slot *store.SlotAssignment) (*store.SlotAssignment, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	saved := slot.Clone()
	if saved.ID == "" {
		m.nextID++
		saved.ID = "slot-" + string(rune('0'+m.nextID))
	}
	saved.Semester = semester
	for i, s := range m.slots {
		if s.ID == saved.ID {
			m.slots[i] = saved.Clone()
			return saved, nil
		}
	}
	m.slots = append(m.slots, saved.Clone())
	return saved, nil
}

func (m *MockStoreForTimetable) DeleteSlotAssignment(ctx context.Context, id string) error {
	for i, s := range m.slots {
		if s.ID == id {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func TestServiceWeekHasSevenDays(t *testing.T) {
	mock := &MockStoreForTimetable{periods: bellSchedule(), slots: mondaySlots()}
	svc := NewService(mock)

	week, err := svc.Week(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, time.Monday, week[0].Weekday)
	assert.Equal(t, time.Sunday, week[6].Weekday)
	for _, day := range week {
		assert.Len(t, day.Slots, 4)
	}
	assert.Len(t, week[0].RealAssignments(), 2)
	assert.Empty(t, week[1].RealAssignments())
}

func TestServiceTimelineWrapsReadFailure(t *testing.T) {
	svc := NewService(&MockStoreForTimetable{fetchErr: errors.New("offline")})
	_, err := svc.Timeline(context.Background(), 1, time.Monday)
	require.Error(t, err)
	assert.Equal(t, ledgererr.ErrCodeRemoteRead, ledgererr.CodeOf(err, ""))
}

func TestServiceSaveStructureAssignsIDs(t *testing.T) {
	mock := &MockStoreForTimetable{}
	svc := NewService(mock)

	saved, conflicts, err := svc.SaveStructure(context.Background(), 1, []*store.Period{
		{StartTime: "10:00 AM", EndTime: "11:00 AM"},
		{StartTime: "09:00 AM", EndTime: "10:00 AM", Kind: store.KindClass},
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.Len(t, saved, 2)
	assert.NotEmpty(t, saved[0].ID)
	assert.Equal(t, "09:00 AM", saved[0].StartTime)
	assert.Equal(t, 1, saved[0].Semester)
	assert.Len(t, mock.periods, 2)
}

func TestServiceSaveStructureRejectsBeforeWriting(t *testing.T) {
	mock := &MockStoreForTimetable{periods: bellSchedule()}
	svc := NewService(mock)

	_, _, err := svc.SaveStructure(context.Background(), 1, []*store.Period{{StartTime: "nope", EndTime: "10:00 AM"}})
	require.Error(t, err)
	assert.True(t, ledgererr.IsValidation(err))
	assert.Len(t, mock.periods, 4)
}

func TestServiceAddAndDeletePeriodKeepAssignments(t *testing.T) {
	mock := &MockStoreForTimetable{periods: bellSchedule(), slots: mondaySlots()}
	svc := NewService(mock)
	ctx := context.Background()

	periods, conflicts, err := svc.AddPeriod(ctx, 1, &store.Period{StartTime: "01:00 PM", EndTime: "02:00 PM"})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Len(t, periods, 5)

	periods, err = svc.DeletePeriod(ctx, 1, "p1")
	require.NoError(t, err)
	assert.Len(t, periods, 4)
	assert.Len(t, mock.slots, 2)

	timeline, err := svc.Timeline(ctx, 1, time.Monday)
	require.NoError(t, err)
	require.Len(t, timeline.Unmatched, 1)
	assert.Equal(t, "s1", timeline.Unmatched[0].ID)

	_, err = svc.DeletePeriod(ctx, 1, "p1")
	assert.True(t, ledgererr.IsNotFound(err))
}

func TestServiceSaveSlot(t *testing.T) {
	mock := &MockStoreForTimetable{}
	svc := NewService(mock)
	ctx := context.Background()

	saved, err := svc.SaveSlot(ctx, 1, &store.SlotAssignment{
		ID: PlaceholderID(time.Monday, 1), Weekday: time.Monday, StartTime: "10:00am", SubjectID: "math",
	})
	require.NoError(t, err)
	assert.False(t, IsPlaceholderID(saved.ID))
	assert.Equal(t, "10:00 AM", saved.StartTime)
	assert.Equal(t, store.KindClass, saved.Kind)

	_, err = svc.SaveSlot(ctx, 1, &store.SlotAssignment{Weekday: time.Monday, StartTime: "10:00 AM", Kind: store.KindClass})
	assert.True(t, ledgererr.IsValidation(err))
	assert.Len(t, mock.slots, 1)

	mock.writeErr = errors.New("disk full")
	_, err = svc.SaveSlot(ctx, 1, &store.SlotAssignment{Weekday: time.Monday, StartTime: "11:00 AM", Kind: store.KindFree})
	assert.True(t, ledgererr.IsRemoteWrite(err))
}

func TestServiceDeleteSlot(t *testing.T) {
	mock := &MockStoreForTimetable{slots: mondaySlots()}
	svc := NewService(mock)
	ctx := context.Background()

	require.NoError(t, svc.DeleteSlot(ctx, "s1"))
	assert.True(t, ledgererr.IsNotFound(svc.DeleteSlot(ctx, "s1")))
	assert.True(t, ledgererr.IsValidation(svc.DeleteSlot(ctx, PlaceholderID(time.Monday, 0))))
}
