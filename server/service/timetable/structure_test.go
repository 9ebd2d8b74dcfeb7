package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/store"
)

func TestValidateStructureNormalizesAndSorts(t *testing.T) {
	input := []*store.Period{
		{ID: "b", StartTime: "10:00", EndTime: "11:00"},
		{ID: "a", StartTime: "9:00 am", EndTime: "10:00 am", Kind: store.KindClass},
	}
	sorted, conflicts, err := ValidateStructure(input)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, "09:00 AM", sorted[0].StartTime)
	assert.Equal(t, store.KindClass, sorted[1].Kind)

	// The caller's periods are untouched.
	assert.Equal(t, "10:00", input[0].StartTime)
	assert.Equal(t, store.Kind(""), input[0].Kind)
}

func TestValidateStructureRejects(t *testing.T) {
	tests := []struct {
		name    string
		periods []*store.Period
	}{
		{"malformed start", []*store.Period{{StartTime: "nine", EndTime: "10:00 AM"}}},
		{"malformed end", []*store.Period{{StartTime: "09:00 AM", EndTime: "25:00"}}},
		{"end before start", []*store.Period{{StartTime: "10:00 AM", EndTime: "09:00 AM"}}},
		{"zero length", []*store.Period{{StartTime: "10:00 AM", EndTime: "10:00 AM"}}},
		{"invalid kind", []*store.Period{{StartTime: "09:00 AM", EndTime: "10:00 AM", Kind: store.KindFree}}},
		{"overlap", []*store.Period{
			{StartTime: "09:00 AM", EndTime: "10:00 AM"},
			{StartTime: "09:30 AM", EndTime: "10:30 AM"},
		}},
		{"nil period", []*store.Period{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ValidateStructure(tt.periods)
			require.Error(t, err)
			assert.True(t, ledgererr.IsValidation(err))
		})
	}
}

func TestValidateStructureReportsConflictsWithoutRejecting(t *testing.T) {
	sorted, conflicts, err := ValidateStructure([]*store.Period{
		{ID: "a", StartTime: "09:00 AM", EndTime: "09:04 AM"},
		{ID: "b", StartTime: "09:03 AM", EndTime: "10:00 AM"},
		{ID: "c", StartTime: "10:00 AM", EndTime: "11:00 AM"},
	})
	require.NoError(t, err)
	assert.Len(t, sorted, 3)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b", conflicts[0].PeriodID)

	err = ConflictsError(conflicts)
	require.Error(t, err)
	assert.True(t, ledgererr.IsStructureConflict(err))
	assert.NoError(t, ConflictsError(nil))
}

func TestValidateSlot(t *testing.T) {
	tests := []struct {
		name    string
		slot    *store.SlotAssignment
		wantErr bool
	}{
		{"class with subject", &store.SlotAssignment{Weekday: time.Monday, StartTime: "09:00 AM", EndTime: "10:00 AM", SubjectID: "math", Kind: store.KindClass}, false},
		{"break without subject", &store.SlotAssignment{Weekday: time.Monday, StartTime: "11:00 AM", Kind: store.KindBreak}, false},
		{"class without subject", &store.SlotAssignment{Weekday: time.Monday, StartTime: "09:00 AM", Kind: store.KindClass}, true},
		{"free with subject", &store.SlotAssignment{Weekday: time.Monday, StartTime: "09:00 AM", SubjectID: "math", Kind: store.KindFree}, true},
		{"malformed start", &store.SlotAssignment{Weekday: time.Monday, StartTime: "soon", SubjectID: "math", Kind: store.KindClass}, true},
		{"end before start", &store.SlotAssignment{Weekday: time.Monday, StartTime: "10:00 AM", EndTime: "09:00 AM", SubjectID: "math", Kind: store.KindClass}, true},
		{"unknown kind", &store.SlotAssignment{Weekday: time.Monday, StartTime: "09:00 AM", Kind: "lecture"}, true},
		{"bad weekday", &store.SlotAssignment{Weekday: 9, StartTime: "09:00 AM", Kind: store.KindFree}, true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlot(tt.slot)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ledgererr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
