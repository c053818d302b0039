package memory

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time read of the writer's queue
// statistics, ported from mem0_metrics.py's snapshot() dict.
type MetricsSnapshot struct {
	CurrentQueueSize   int
	MaxQueueSize       int
	ProcessedJobsTotal int
	JobTypeCounts      map[JobType]int
	AverageLatency     time.Duration
	LastJobLatency     time.Duration
	LastUpdatedAt      time.Time
	LatencyBreachCount int
}

// MetricsRecorder is a thread-safe accumulator of background-writer
// queue statistics, with a configurable per-job latency warning
// threshold.
type MetricsRecorder struct {
	mu sync.Mutex

	latencyWarn time.Duration

	currentQueueSize   int
	maxQueueSize       int
	processedJobsTotal int
	jobTypeCounts      map[JobType]int
	totalLatency       time.Duration
	lastJobLatency     time.Duration
	lastUpdatedAt      time.Time
	latencyBreachCount int
}

// NewMetricsRecorder builds a recorder that flags any job slower than
// latencyWarn.
func NewMetricsRecorder(latencyWarn time.Duration) *MetricsRecorder {
	return &MetricsRecorder{
		latencyWarn:   latencyWarn,
		jobTypeCounts: make(map[JobType]int),
	}
}

// RecordEnqueue updates the queue-depth gauges after a job is enqueued.
func (m *MetricsRecorder) RecordEnqueue(queueSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentQueueSize = queueSize
	if queueSize > m.maxQueueSize {
		m.maxQueueSize = queueSize
	}
	m.lastUpdatedAt = time.Now()
}

// RecordJobComplete updates throughput and latency stats after a job
// finishes, incrementing the breach counter if it exceeded the warning
// threshold.
func (m *MetricsRecorder) RecordJobComplete(jobType JobType, queueSize int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentQueueSize = queueSize
	m.processedJobsTotal++
	m.jobTypeCounts[jobType]++
	m.totalLatency += latency
	m.lastJobLatency = latency
	m.lastUpdatedAt = time.Now()
	if queueSize > m.maxQueueSize {
		m.maxQueueSize = queueSize
	}
	if m.latencyWarn > 0 && latency > m.latencyWarn {
		m.latencyBreachCount++
	}
}

// Snapshot returns a copy of the current statistics.
func (m *MetricsRecorder) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if m.processedJobsTotal > 0 {
		avg = m.totalLatency / time.Duration(m.processedJobsTotal)
	}

	counts := make(map[JobType]int, len(m.jobTypeCounts))
	for k, v := range m.jobTypeCounts {
		counts[k] = v
	}

	return MetricsSnapshot{
		CurrentQueueSize:   m.currentQueueSize,
		MaxQueueSize:       m.maxQueueSize,
		ProcessedJobsTotal: m.processedJobsTotal,
		JobTypeCounts:      counts,
		AverageLatency:     avg,
		LastJobLatency:     m.lastJobLatency,
		LastUpdatedAt:      m.lastUpdatedAt,
		LatencyBreachCount: m.latencyBreachCount,
	}
}
