package model

// Status is the lifecycle state of a step within a single run.
type Status string

const (
	// StatusPending means the step has been registered but not started.
	StatusPending Status = "pending"
	// StatusRunning means the step function is currently executing.
	StatusRunning Status = "running"
	// StatusSucceeded means the step function returned without error.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the step function returned an error.
	StatusFailed Status = "failed"
	// StatusSkipped means the step did not run, either because its
	// condition declined or because an ancestor failed.
	StatusSkipped Status = "skipped"
)

// StepInfo describes a single step of the pipeline.
//
// A StepInfo is mutated only by the goroutine running its step; readers
// must wait for the step to finish before inspecting Status or SkipReason.
type StepInfo struct {
	Name       string
	Deps       []string
	Status     Status
	SkipReason string
	Metric     Metric
}

// StepHash is the hash function used for the step graph. Steps are
// keyed by name.
func StepHash(details *StepInfo) string {
	return details.Name
}
