package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/classledger/store"
)

func TestSaveTimetableStructureReplacesPeriods(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	periods := []*store.Period{
		{StartTime: "10:00 AM", EndTime: "11:00 AM", Kind: store.KindClass},
		{StartTime: "09:00 AM", EndTime: "10:00 AM", Kind: store.KindClass},
	}
	require.NoError(t, ts.SaveTimetableStructure(ctx, periods, 1))
	require.NotEmpty(t, periods[0].ID)

	timetable, err := ts.FetchTimetable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, timetable.Periods, 2)
	// Periods come back in chronological order.
	require.Equal(t, "09:00 AM", timetable.Periods[0].StartTime)

	require.NoError(t, ts.SaveTimetableStructure(ctx, []*store.Period{
		{StartTime: "08:00 AM", EndTime: "09:00 AM", Kind: store.KindBreak},
	}, 1))
	timetable, err = ts.FetchTimetable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, timetable.Periods, 1)
	require.Equal(t, store.KindBreak, timetable.Periods[0].Kind)
}

func TestSlotAssignmentsSurvivePeriodDeletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	math := seedSubject(ctx, t, ts, "Mathematics")

	require.NoError(t, ts.SaveTimetableStructure(ctx, []*store.Period{
		{StartTime: "09:00 AM", EndTime: "10:00 AM", Kind: store.KindClass},
	}, 1))
	slot, err := ts.SaveSlotAssignment(ctx, 1, &store.SlotAssignment{
		Weekday: time.Monday, StartTime: "09:00 AM", EndTime: "10:00 AM",
		SubjectID: math.ID, Kind: store.KindClass, Classroom: "LT-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, slot.ID)

	require.NoError(t, ts.SaveTimetableStructure(ctx, nil, 1))

	timetable, err := ts.FetchTimetable(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, timetable.Periods)
	require.Len(t, timetable.Day(time.Monday), 1)
	require.Equal(t, "LT-1", timetable.Day(time.Monday)[0].Classroom)
}

func TestSaveAndDeleteSlotAssignment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	slot, err := ts.SaveSlotAssignment(ctx, 1, &store.SlotAssignment{
		Weekday: time.Tuesday, StartTime: "02:00 PM", EndTime: "03:00 PM", Kind: store.KindFree,
	})
	require.NoError(t, err)

	slot.Classroom = "Library"
	updated, err := ts.SaveSlotAssignment(ctx, 1, slot)
	require.NoError(t, err)
	require.Equal(t, slot.ID, updated.ID)

	timetable, err := ts.FetchTimetable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, timetable.Day(time.Tuesday), 1)
	require.Equal(t, "Library", timetable.Day(time.Tuesday)[0].Classroom)

	require.NoError(t, ts.DeleteSlotAssignment(ctx, slot.ID))
	require.ErrorIs(t, ts.DeleteSlotAssignment(ctx, slot.ID), store.ErrNotFound)
}
