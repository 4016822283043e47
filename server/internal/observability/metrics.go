package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates in-process counters for search and
// embedding operations. It is intentionally dependency-free; the snapshot
// is exposed over the API for debugging rather than scraped.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	// Per-operation counters, keyed by operation name (e.g. "search",
	// "embed", "ask").
	operationMetrics map[string]*OperationMetrics

	// Per-stage hit counters for the retrieval cascade.
	stageHits map[string]*atomic.Int64
}

// OperationMetrics represents counters for a single operation kind.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		operationMetrics: make(map[string]*OperationMetrics),
		stageHits:        make(map[string]*atomic.Int64),
	}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the process-wide metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a request for an operation.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.getOperationMetrics(operation).executionCount.Add(1)
}

// RecordFailure records a failed request for an operation.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.getOperationMetrics(operation).errorCount.Add(1)
}

// RecordDuration records a request duration for an operation.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	m.getOperationMetrics(operation).totalDuration.Add(duration.Milliseconds())
}

// RecordStageHit records which cascade stage produced a search result.
func (m *Metrics) RecordStageHit(stage string) {
	m.mu.Lock()
	counter, ok := m.stageHits[stage]
	if !ok {
		counter = &atomic.Int64{}
		m.stageHits[stage] = counter
	}
	m.mu.Unlock()
	counter.Add(1)
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operationMetrics[operation]
	if !ok {
		om = &OperationMetrics{}
		m.operationMetrics[operation] = om
	}
	return om
}

// GetAverageDuration returns the average duration in milliseconds for an operation.
func (m *Metrics) GetAverageDuration(operation string) int64 {
	om := m.getOperationMetrics(operation)
	count := om.executionCount.Load()
	if count == 0 {
		return 0
	}
	return om.totalDuration.Load() / count
}

// Reset resets all metrics. Useful for testing.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.operationMetrics = make(map[string]*OperationMetrics)
	m.stageHits = make(map[string]*atomic.Int64)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	operations := make(map[string]*OperationMetricsSnapshot, len(m.operationMetrics))
	for name, om := range m.operationMetrics {
		count := om.executionCount.Load()
		var avg int64
		if count > 0 {
			avg = om.totalDuration.Load() / count
		}
		operations[name] = &OperationMetricsSnapshot{
			ExecutionCount:  count,
			TotalDuration:   om.totalDuration.Load(),
			ErrorCount:      om.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	stages := make(map[string]int64, len(m.stageHits))
	for stage, counter := range m.stageHits {
		stages[stage] = counter.Load()
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Operations:    operations,
		StageHits:     stages,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                               `json:"requestTotal"`
	RequestFailed int64                               `json:"requestFailed"`
	Operations    map[string]*OperationMetricsSnapshot `json:"operations"`
	StageHits     map[string]int64                    `json:"stageHits"`
}

// OperationMetricsSnapshot represents counters for a single operation.
type OperationMetricsSnapshot struct {
	ExecutionCount  int64 `json:"executionCount"`
	TotalDuration   int64 `json:"totalDurationMs"`
	ErrorCount      int64 `json:"errorCount"`
	AverageDuration int64 `json:"averageDurationMs"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
