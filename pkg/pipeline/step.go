package pipeline

import (
	"context"

	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// StepFunc is the unit of work executed by a step.
type StepFunc func(ctx context.Context) error

// ConditionFunc decides whether a step should run. When it returns
// false, the step is skipped with the given reason and its dependents
// still run.
type ConditionFunc func(ctx context.Context) (proceed bool, reason string, err error)

// Step is a registered pipeline step.
type Step struct {
	details      *model.StepInfo
	fn           StepFunc
	condition    ConditionFunc
	allowFailure bool

	// done is closed once the step reached a terminal status. blocked
	// records that the step was skipped because of a failed ancestor,
	// as opposed to a declined condition.
	done    chan struct{}
	blocked bool
}

// Details returns the step metadata. The status fields are only safe to
// read once the pipeline run returned.
func (s *Step) Details() *model.StepInfo {
	return s.details
}

func (s *Step) blocksDependents() bool {
	if s.allowFailure {
		return false
	}

	return s.details.Status == model.StatusFailed || s.blocked
}
