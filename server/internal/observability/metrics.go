package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Operation kinds recorded by Metrics.
const (
	OpMark    = "mark"
	OpClear   = "clear"
	OpRefresh = "refresh"
)

// Metrics collects counters for attendance mutations.
type Metrics struct {
	mu sync.Mutex

	// Counters
	mutationTotal  atomic.Int64
	mutationFailed atomic.Int64
	rollbacks      atomic.Int64
	refreshes      atomic.Int64

	operations map[string]*OperationMetrics

	// Sliding window of recent durations.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for one operation kind.
type OperationMetrics struct {
	count         atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the process-wide metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordMutation records an attempted mark or clear.
func (m *Metrics) RecordMutation(op string) {
	m.mutationTotal.Add(1)
	m.operation(op).count.Add(1)
}

// RecordFailure records a mutation whose remote write failed.
func (m *Metrics) RecordFailure(op string) {
	m.mutationFailed.Add(1)
	m.operation(op).errorCount.Add(1)
}

// RecordRollback records a day list restored to its pre-mutation snapshot.
func (m *Metrics) RecordRollback() {
	m.rollbacks.Add(1)
}

// RecordRefresh records a background or corrective refresh.
func (m *Metrics) RecordRefresh() {
	m.refreshes.Add(1)
	m.operation(OpRefresh).count.Add(1)
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(op string, duration time.Duration) {
	om := m.operation(op)
	om.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// operation gets or creates the metrics of op.
func (m *Metrics) operation(op string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[op]
	if !ok {
		om = &OperationMetrics{}
		m.operations[op] = om
	}
	return om
}

// Operations returns the recorded operation kinds, sorted.
func (m *Metrics) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]string, 0, len(m.operations))
	for op := range m.operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.mutationTotal.Store(0)
	m.mutationFailed.Store(0)
	m.rollbacks.Store(0)
	m.refreshes.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.count.Load()
		snap := &OperationSnapshot{
			Count:         count,
			TotalDuration: om.totalDuration.Load(),
			ErrorCount:    om.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageDuration = snap.TotalDuration / count
		}
		ops[name] = snap
	}

	return &MetricsSnapshot{
		MutationTotal:  m.mutationTotal.Load(),
		MutationFailed: m.mutationFailed.Load(),
		Rollbacks:      m.rollbacks.Load(),
		Refreshes:      m.refreshes.Load(),
		Operations:     ops,
		DurationCount:  len(m.durations),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	MutationTotal  int64
	MutationFailed int64
	Rollbacks      int64
	Refreshes      int64
	Operations     map[string]*OperationSnapshot
	DurationCount  int
}

// OperationSnapshot represents metrics for one operation kind.
type OperationSnapshot struct {
	Count           int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the mutation success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.MutationTotal == 0 {
		return 100.0
	}
	return float64(s.MutationTotal-s.MutationFailed) / float64(s.MutationTotal) * 100.0
}
