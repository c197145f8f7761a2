package model

import "time"

// Metric collects timing information for a single step.
type Metric interface {
	// AddQueueDuration records the time the step spent waiting for its
	// dependencies to finish.
	AddQueueDuration(elapsed time.Duration)
	// AddRunDuration records the time the step function took to execute.
	AddRunDuration(elapsed time.Duration)
	// SetTotalDuration records the total pipeline duration at the time
	// the run finished.
	SetTotalDuration(elapsed time.Duration)
}
