package auditx

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector receives pipeline counters and timings. The pipeline
// reports entries logged/flushed, PHI detections, compliance violations,
// exports and crypto failures; implementations forward them to whatever
// metrics system the deployment runs.
type MetricsCollector interface {
	IncrementCounter(name string, tags map[string]string)
	IncrementCounterBy(name string, value int64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
	RecordTiming(name string, duration time.Duration, tags map[string]string)

	// Flush pushes any buffered metrics.
	Flush() error
}

// NoOpMetricsCollector discards all metrics. It is the default collector.
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) IncrementCounter(name string, tags map[string]string)   {}
func (n *NoOpMetricsCollector) IncrementCounterBy(string, int64, map[string]string)    {}
func (n *NoOpMetricsCollector) SetGauge(name string, v float64, tags map[string]string) {}
func (n *NoOpMetricsCollector) RecordTiming(string, time.Duration, map[string]string)  {}
func (n *NoOpMetricsCollector) Flush() error                                           { return nil }

// InMemoryMetricsCollector accumulates metrics in process memory. Meant for
// tests and development.
type InMemoryMetricsCollector struct {
	mu       sync.Mutex
	counters map[string]*int64
	gauges   map[string]float64
	timings  []TimingMetric
}

// TimingMetric is one recorded duration.
type TimingMetric struct {
	Name     string
	Duration time.Duration
	Tags     map[string]string
	Time     time.Time
}

// NewInMemoryMetricsCollector returns an empty collector.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		counters: make(map[string]*int64),
		gauges:   make(map[string]float64),
	}
}

func (m *InMemoryMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.IncrementCounterBy(name, 1, tags)
}

func (m *InMemoryMetricsCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	key := metricKey(name, tags)
	m.mu.Lock()
	counter, ok := m.counters[key]
	if !ok {
		counter = new(int64)
		m.counters[key] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, value)
}

func (m *InMemoryMetricsCollector) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(name, tags)] = value
}

func (m *InMemoryMetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = append(m.timings, TimingMetric{
		Name:     name,
		Duration: duration,
		Tags:     tags,
		Time:     time.Now(),
	})
}

func (m *InMemoryMetricsCollector) Flush() error { return nil }

// CounterValue returns the current value of a counter, 0 if never
// incremented.
func (m *InMemoryMetricsCollector) CounterValue(name string, tags map[string]string) int64 {
	m.mu.Lock()
	counter, ok := m.counters[metricKey(name, tags)]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// GaugeValue returns the current value of a gauge, 0 if never set.
func (m *InMemoryMetricsCollector) GaugeValue(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[metricKey(name, tags)]
}

// Timings returns all recorded timings.
func (m *InMemoryMetricsCollector) Timings() []TimingMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimingMetric(nil), m.timings...)
}

// metricKey builds a deterministic key from a name and sorted tags.
func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "," + k + ":" + tags[k]
	}
	return key
}
