// Package measure collects per-step timing for a pipeline run: the time
// each step spent waiting on its dependencies and the time spent inside
// the step function.
package measure

import (
	"sync"
	"time"
)

// Measure aggregates the metrics of every step of a pipeline run.
type Measure struct {
	mu            sync.Mutex
	steps         map[string]*DefaultMetric
	totalDuration time.Duration
}

// New creates an empty measure collector.
func New() *Measure {
	return &Measure{
		steps: make(map[string]*DefaultMetric),
	}
}

func (m *Measure) addStep(name string) *DefaultMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt := &DefaultMetric{}
	m.steps[name] = mt

	return mt
}

// Step returns the metric collected for a step, or nil when the step is
// unknown.
func (m *Measure) Step(name string) *DefaultMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.steps[name]
}

// TotalDuration returns the wall-clock duration of the whole run.
func (m *Measure) TotalDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.totalDuration
}

func (m *Measure) setTotalDuration(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDuration = elapsed
	for _, mt := range m.steps {
		mt.SetTotalDuration(elapsed)
	}
}
