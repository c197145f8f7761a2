package model

import "time"

// PipelineOption defines the interface for pipeline options.
//
// Options observe the lifecycle of every step: they are prepared when a
// step is registered, notified when a step reaches a terminal status,
// and finished once after the whole run.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	// PrepareStep runs when the step is registered, before the pipeline starts.
	PrepareStep(step *StepInfo) error

	// OnStepDone runs when the step reaches a terminal status.
	// queueDuration is the time spent waiting on dependencies and
	// runDuration the time spent inside the step function; both are
	// zero for skipped steps.
	OnStepDone(step *StepInfo, queueDuration, runDuration time.Duration) error

	// Finish runs after the pipeline is finished.
	Finish(totalDuration time.Duration) error
}
