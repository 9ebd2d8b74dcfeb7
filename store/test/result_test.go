package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/classledger/store"
)

func TestSemesterResultRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	cgpa := 8.4
	require.NoError(t, ts.SaveSemesterResult(ctx, &store.SemesterResult{
		Semester: 2,
		Subjects: []store.GradeEntry{
			{SubjectName: "Compilers", Credits: 4, Component: store.ComponentTheory, InternalTheory: 22, ExternalTheory: 70, Grade: "O", GradePoint: 10},
		},
		SGPA:         10,
		TotalCredits: 4,
		CGPA:         &cgpa,
	}))
	require.NoError(t, ts.SaveSemesterResult(ctx, &store.SemesterResult{
		Semester:     1,
		SGPA:         7.5,
		TotalCredits: 20,
	}))

	results, err := ts.FetchSemesterResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Semester)
	require.Nil(t, results[0].CGPA)
	require.Equal(t, 2, results[1].Semester)
	require.NotNil(t, results[1].CGPA)
	require.InDelta(t, 8.4, *results[1].CGPA, 1e-9)
	require.Len(t, results[1].Subjects, 1)
	require.Equal(t, "Compilers", results[1].Subjects[0].SubjectName)

	require.NoError(t, ts.DeleteSemesterResult(ctx, 2))
	require.ErrorIs(t, ts.DeleteSemesterResult(ctx, 2), store.ErrNotFound)
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	require.NoError(t, ts.Migrate(ctx))
	version, err := ts.GetSchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, store.SchemaVersion, version)
}
