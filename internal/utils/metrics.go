package utils

import (
	"sort"
	"sync"
	"time"
)

// Tracks request and operation metrics for the API
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

// OperationStats summarizes the recorded latencies of one operation.
type OperationStats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avgNanos"`
	P95   time.Duration `json:"p95Nanos"`
	Max   time.Duration `json:"maxNanos"`
}

// MetricsSnapshot is the JSON view served on /metrics.
type MetricsSnapshot struct {
	Requests   uint64                    `json:"requests"`
	Errors     uint64                    `json:"errors"`
	Uptime     string                    `json:"uptime"`
	Operations map[string]OperationStats `json:"operations"`
}

const maxSamplesPerOperation = 1000

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.operationTimes[operationName], duration.Nanoseconds())
	// keep a bounded window of the most recent samples
	if len(samples) > maxSamplesPerOperation {
		samples = samples[len(samples)-maxSamplesPerOperation:]
	}
	mc.operationTimes[operationName] = samples
}

// Snapshot returns a copy of the current counters and latency summaries.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	ops := make(map[string]OperationStats, len(mc.operationTimes))
	for name, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		sorted := append([]int64(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total int64
		for _, s := range sorted {
			total += s
		}
		p95 := sorted[(len(sorted)*95)/100]
		ops[name] = OperationStats{
			Count: len(sorted),
			Avg:   time.Duration(total / int64(len(sorted))),
			P95:   time.Duration(p95),
			Max:   time.Duration(sorted[len(sorted)-1]),
		}
	}

	return MetricsSnapshot{
		Requests:   mc.requestCount,
		Errors:     mc.errorCount,
		Uptime:     time.Since(mc.systemStartTime).Round(time.Second).String(),
		Operations: ops,
	}
}
