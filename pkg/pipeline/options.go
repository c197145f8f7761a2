package pipeline

// StepOption configures a single step.
type StepOption func(s *Step)

// StepAfter declares dependencies on previously registered steps.
func StepAfter(deps ...string) StepOption {
	return func(s *Step) {
		s.details.Deps = append(s.details.Deps, deps...)
	}
}

// StepCondition attaches a condition to the step. The condition is
// evaluated once, after the dependencies finished and before the step
// function runs.
func StepCondition(conditionFn ConditionFunc) StepOption {
	return func(s *Step) {
		s.condition = conditionFn
	}
}

// StepAllowFailure marks the step as non-blocking: an error from the
// step function is recorded but does not cancel the run nor skip the
// dependents.
func StepAllowFailure() StepOption {
	return func(s *Step) {
		s.allowFailure = true
	}
}
