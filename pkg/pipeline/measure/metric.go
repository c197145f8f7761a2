package measure

import (
	"sync"
	"time"
)

// DefaultMetric records the timings of a single step.
type DefaultMetric struct {
	mu           sync.Mutex
	queueElapsed time.Duration
	runElapsed   time.Duration
	endDuration  time.Duration
}

func (mt *DefaultMetric) AddQueueDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.queueElapsed += elapsed
}

func (mt *DefaultMetric) AddRunDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.runElapsed += elapsed
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = endDuration
}

// QueueDuration returns the time the step spent waiting on its
// dependencies.
func (mt *DefaultMetric) QueueDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.queueElapsed
}

// RunDuration returns the time spent inside the step function.
func (mt *DefaultMetric) RunDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.runElapsed
}

// GetTotalDuration returns the total pipeline duration recorded when
// the run finished.
func (mt *DefaultMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.endDuration
}
