package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
	"github.com/hrygo/classledger/store"
)

func TestGradeForBoundaries(t *testing.T) {
	tests := []struct {
		pct   float64
		grade string
		point int
	}{
		{100, "O", 10},
		{90, "O", 10},
		{89.999, "A+", 9},
		{75, "A+", 9},
		{74.99, "A", 8},
		{65, "A", 8},
		{55, "B+", 7},
		{50, "B", 6},
		{45, "C", 5},
		{40, "P", 4},
		{39.99, "F", 0},
		{0, "F", 0},
	}
	for _, tt := range tests {
		band := GradeFor(tt.pct)
		assert.Equal(t, tt.grade, band.Grade, "pct %v", tt.pct)
		assert.Equal(t, tt.point, band.Point, "pct %v", tt.pct)
	}
}

func TestEntryPercentage(t *testing.T) {
	tests := []struct {
		name    string
		entry   store.GradeEntry
		want    float64
		wantErr bool
	}{
		{"theory", store.GradeEntry{Component: store.ComponentTheory, InternalTheory: 20, ExternalTheory: 60}, 80, false},
		{"practical", store.GradeEntry{Component: store.ComponentPractical, InternalPractical: 35, ExternalPractical: 50}, 85, false},
		{"nues", store.GradeEntry{Component: store.ComponentNUES, InternalTheory: 72}, 72, false},
		{"internal over max", store.GradeEntry{Component: store.ComponentTheory, InternalTheory: 26}, 0, true},
		{"negative", store.GradeEntry{Component: store.ComponentPractical, ExternalPractical: -1}, 0, true},
		{"practical marks on theory", store.GradeEntry{Component: store.ComponentTheory, InternalPractical: 10}, 0, true},
		{"unknown component", store.GradeEntry{Component: "lab"}, 0, true},
		{"negative credits", store.GradeEntry{Component: store.ComponentNUES, Credits: -1}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EntryPercentage(tt.entry)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ledgererr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func semesterEntries() []store.GradeEntry {
	return []store.GradeEntry{
		{SubjectName: "Data Structures", Credits: 4, Component: store.ComponentTheory, InternalTheory: 23, ExternalTheory: 70}, // 93 -> O
		{SubjectName: "DS Lab", Credits: 1, Component: store.ComponentPractical, InternalPractical: 30, ExternalPractical: 40}, // 70 -> A
		{SubjectName: "Ethics", Credits: 0, Component: store.ComponentNUES, InternalTheory: 30},                                // F, no credits
	}
}

func TestGradeDoesNotMutateInput(t *testing.T) {
	entries := semesterEntries()
	graded, err := Grade(entries)
	require.NoError(t, err)

	assert.Equal(t, "O", graded[0].Grade)
	assert.Equal(t, "A", graded[1].Grade)
	assert.Equal(t, "F", graded[2].Grade)
	assert.Empty(t, entries[0].Grade)
}

func TestSGPA(t *testing.T) {
	sgpa, err := SGPA(semesterEntries())
	require.NoError(t, err)
	// (10*4 + 8*1) / 5
	assert.Equal(t, 9.6, sgpa)

	sgpa, err = SGPA(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sgpa)

	sgpa, err = SGPA([]store.GradeEntry{{Component: store.ComponentNUES, InternalTheory: 95}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sgpa)
}

func TestSGPARoundsToTwoDecimals(t *testing.T) {
	sgpa, err := SGPA([]store.GradeEntry{
		{Credits: 3, Component: store.ComponentNUES, InternalTheory: 95}, // 10
		{Credits: 3, Component: store.ComponentNUES, InternalTheory: 80}, // 9
		{Credits: 3, Component: store.ComponentNUES, InternalTheory: 70}, // 8
		{Credits: 0.5, Component: store.ComponentNUES, InternalTheory: 41},
	})
	require.NoError(t, err)
	// (30 + 27 + 24 + 2) / 9.5 = 8.7368...
	assert.Equal(t, 8.74, sgpa)
}

func TestComputeResult(t *testing.T) {
	in := &store.SemesterResult{Semester: 3, Subjects: semesterEntries()}
	out, err := ComputeResult(in)
	require.NoError(t, err)
	assert.Equal(t, 9.6, out.SGPA)
	assert.Equal(t, 5.0, out.TotalCredits)
	assert.Equal(t, 10, out.Subjects[0].GradePoint)
	assert.Zero(t, in.SGPA)

	_, err = ComputeResult(&store.SemesterResult{Semester: 0})
	assert.True(t, ledgererr.IsValidation(err))
}

func ptr(v float64) *float64 { return &v }

func TestCGPA(t *testing.T) {
	results := []*store.SemesterResult{
		{Semester: 2, SGPA: 8, TotalCredits: 20},
		{Semester: 1, SGPA: 9, TotalCredits: 10, CGPA: ptr(7.0)},
	}
	// (9*10 + 8*20) / 30
	assert.Equal(t, 8.33, LocalCGPA(results))
	// The most recent semester carries no server figure.
	assert.Equal(t, 8.33, CGPA(results))
	assert.True(t, CGPAAgrees(results, CGPATolerance))

	results[0].CGPA = ptr(8.33)
	assert.Equal(t, 8.33, CGPA(results))
	assert.True(t, CGPAAgrees(results, CGPATolerance))

	results[0].CGPA = ptr(8.5)
	assert.Equal(t, 8.5, CGPA(results))
	assert.False(t, CGPAAgrees(results, CGPATolerance))

	assert.Equal(t, 0.0, CGPA(nil))
}

func TestTotalCredits(t *testing.T) {
	assert.Equal(t, 5.0, TotalCredits(semesterEntries()))
}
