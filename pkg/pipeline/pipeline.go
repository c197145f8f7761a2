package pipeline

import (
	"context"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-releaser/internal/store"
	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// Pipeline is a pipeline of steps with explicit dependencies.
type Pipeline struct {
	store     store.CustomStore[string, *model.StepInfo]
	graph     graph.Graph[string, *model.StepInfo]
	steps     map[string]*Step
	order     []string
	opts      []model.PipelineOption
	errcList  *errorChans
	startTime time.Time
	ran       bool
}

// New creates a new pipeline.
func New(opts ...model.PipelineOption) (*Pipeline, error) {
	memStore := store.NewMemoryStore[string, *model.StepInfo]()
	pipe := &Pipeline{
		store:    memStore,
		graph:    graph.NewWithStore(model.StepHash, memStore, graph.Directed()),
		steps:    make(map[string]*Step),
		errcList: &errorChans{},
		opts:     opts,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// AddStep registers a step. Dependencies declared with StepAfter must
// already be registered.
func (p *Pipeline) AddStep(name string, stepFn StepFunc, opts ...StepOption) (*Step, error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if name == "" {
		return nil, ErrNameMustBeSet
	}
	if stepFn == nil {
		return nil, errors.Wrap(ErrStepFnMustBeSet, name)
	}

	step := &Step{
		details: &model.StepInfo{
			Name:   name,
			Status: model.StatusPending,
		},
		fn:   stepFn,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(step)
	}

	err := p.graph.AddVertex(step.details)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to add step %s", name)
	}

	for _, dep := range step.details.Deps {
		if _, ok := p.steps[dep]; !ok {
			return nil, errors.Wrapf(ErrUnknownDependency, "step %s depends on %s", name, dep)
		}

		cycle, err := p.store.CreatesCycle(dep, name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to check cycle from %s to %s", dep, name)
		}
		if cycle {
			return nil, errors.Wrapf(ErrStepCreatesCycle, "from %s to %s", dep, name)
		}

		err = p.graph.AddEdge(dep, name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add link from %s to %s", dep, name)
		}
	}

	for _, opt := range p.opts {
		err := opt.PrepareStep(step.details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to prepare step")
		}
	}

	p.steps[name] = step
	p.order = append(p.order, name)

	return step, nil
}

// Run starts the pipeline and waits for every step to reach a terminal
// status. It returns the first step error, wrapped with the step name.
// Run can only be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil {
		return ErrPipelineMustBeSet
	}
	if p.ran {
		return ErrPipelineAlreadyRan
	}
	p.ran = true
	p.startTime = time.Now()

	errGrp, dCtx := errgroup.WithContext(ctx)

	for _, name := range p.order {
		step := p.steps[name]
		errC := make(chan error, 1)
		p.errcList.add(newErrorChan(name, errC))

		errGrp.Go(func() error {
			defer close(errC)

			err := p.runStep(dCtx, step)
			if err != nil && !step.allowFailure {
				errC <- err

				return err
			}

			return nil
		})
	}

	// The group error is redundant with the merged channels; it only
	// drives the context cancellation on the first failure.
	grpErr := errGrp.Wait()

	var runErr error
	for err := range mergeErrors(p.errcList.list...) {
		if err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr == nil {
		runErr = grpErr
	}

	finishErr := p.finishRun()
	if runErr != nil {
		return runErr
	}

	return finishErr
}

// StepStatuses returns the status of every registered step. It must
// only be called after Run returned.
func (p *Pipeline) StepStatuses() map[string]model.Status {
	statuses := make(map[string]model.Status, len(p.order))
	for _, name := range p.order {
		statuses[name] = p.steps[name].details.Status
	}

	return statuses
}

// StepDetails returns the details of a registered step, or nil when the
// step does not exist.
func (p *Pipeline) StepDetails(name string) *model.StepInfo {
	step, ok := p.steps[name]
	if !ok {
		return nil
	}

	return step.details
}

func (p *Pipeline) runStep(ctx context.Context, step *Step) error {
	defer close(step.done)

	queueStart := time.Now()

	for _, dep := range step.details.Deps {
		depStep := p.steps[dep]
		select {
		case <-ctx.Done():
			return p.markSkipped(step, "pipeline cancelled: "+ctx.Err().Error(), true, time.Since(queueStart))
		case <-depStep.done:
		}

		if depStep.blocksDependents() {
			return p.markSkipped(step, "dependency "+dep+" did not succeed", true, time.Since(queueStart))
		}
	}

	queueDuration := time.Since(queueStart)

	if step.condition != nil {
		proceed, reason, err := step.condition(ctx)
		if err != nil {
			p.setStatus(step, model.StatusFailed)
			_ = p.notifyDone(step, queueDuration, 0)

			return errors.Wrap(err, "unable to evaluate step condition")
		}
		if !proceed {
			return p.markSkipped(step, reason, false, queueDuration)
		}
	}

	p.setStatus(step, model.StatusRunning)

	runStart := time.Now()
	err := step.fn(ctx)
	runDuration := time.Since(runStart)

	if err != nil {
		p.setStatus(step, model.StatusFailed)
		_ = p.notifyDone(step, queueDuration, runDuration)

		return err
	}

	p.setStatus(step, model.StatusSucceeded)

	return p.notifyDone(step, queueDuration, runDuration)
}

func (p *Pipeline) markSkipped(step *Step, reason string, blocked bool, queueDuration time.Duration) error {
	step.blocked = blocked
	step.details.SkipReason = reason
	p.setStatus(step, model.StatusSkipped)
	p.store.UpdateVertex(step.details.Name, store.WithAttribute("skip_reason", reason))

	return p.notifyDone(step, queueDuration, 0)
}

func (p *Pipeline) setStatus(step *Step, status model.Status) {
	step.details.Status = status
	p.store.UpdateVertex(step.details.Name, store.WithAttribute("status", string(status)))
}

func (p *Pipeline) notifyDone(step *Step, queueDuration, runDuration time.Duration) error {
	for _, opt := range p.opts {
		err := opt.OnStepDone(step.details, queueDuration, runDuration)
		if err != nil {
			return errors.Wrap(err, "unable to run step option")
		}
	}

	return nil
}

func (p *Pipeline) finishRun() error {
	for _, opt := range p.opts {
		err := opt.Finish(time.Since(p.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
