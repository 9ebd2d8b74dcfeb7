package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationContextLogsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	op := NewOperationContext(logger, OpMark, 3, "math", "2024-03-15")
	require.NotEmpty(t, op.OpID)

	op.Info("marked", slog.String(LogFieldStatus, "present"))
	op.Error("write failed", errors.New("offline"))

	out := buf.String()
	assert.Contains(t, out, "op_id="+op.OpID)
	assert.Contains(t, out, "operation=mark")
	assert.Contains(t, out, "semester=3")
	assert.Contains(t, out, "subject_id=math")
	assert.Contains(t, out, "date=2024-03-15")
	assert.Contains(t, out, "status=present")
	assert.Contains(t, out, "error=offline")
}

func TestOperationContextRoundTripsThroughContext(t *testing.T) {
	op := NewOperationContext(nil, OpClear, 1, "", "")
	ctx := WithOperationContext(context.Background(), op)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, op, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(2)
	m.RecordMutation(OpMark)
	m.RecordMutation(OpMark)
	m.RecordMutation(OpClear)
	m.RecordFailure(OpMark)
	m.RecordRollback()
	m.RecordRefresh()
	m.RecordDuration(OpMark, 10*time.Millisecond)
	m.RecordDuration(OpMark, 30*time.Millisecond)
	m.RecordDuration(OpClear, 5*time.Millisecond)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.MutationTotal)
	assert.EqualValues(t, 1, snap.MutationFailed)
	assert.EqualValues(t, 1, snap.Rollbacks)
	assert.EqualValues(t, 1, snap.Refreshes)
	assert.Equal(t, 2, snap.DurationCount)
	assert.EqualValues(t, 20, snap.Operations[OpMark].AverageDuration)
	assert.EqualValues(t, 1, snap.Operations[OpMark].ErrorCount)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)
	assert.Equal(t, []string{OpClear, OpMark, OpRefresh}, m.Operations())

	m.Reset()
	assert.EqualValues(t, 0, m.Snapshot().MutationTotal)
	assert.Equal(t, 100.0, m.Snapshot().SuccessRate())
}

func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordMutation(OpMark)
			m.RecordDuration(OpMark, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, m.Snapshot().Operations[OpMark].Count)
}
