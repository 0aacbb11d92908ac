package build

import (
	"sync"
	"time"
)

// Metrics tracks compilation counts and durations.
type Metrics struct {
	Total           int64
	Compiled        int64
	Failed          int64
	Fresh           int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	mutex           sync.RWMutex
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds a result to the metrics.
func (m *Metrics) Record(result Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.Total++
	m.TotalDuration += result.Duration

	switch {
	case result.Err != nil:
		m.Failed++
	case result.Fresh:
		m.Fresh++
	default:
		m.Compiled++
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.Total)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	// Copy without the mutex
	return Metrics{
		Total:           m.Total,
		Compiled:        m.Compiled,
		Failed:          m.Failed,
		Fresh:           m.Fresh,
		TotalDuration:   m.TotalDuration,
		AverageDuration: m.AverageDuration,
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.Total = 0
	m.Compiled = 0
	m.Failed = 0
	m.Fresh = 0
	m.TotalDuration = 0
	m.AverageDuration = 0
}

// FreshRate returns the share of templates that needed no compilation.
func (m *Metrics) FreshRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.Total == 0 {
		return 0
	}
	return float64(m.Fresh) / float64(m.Total)
}
