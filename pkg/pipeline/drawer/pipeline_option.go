package drawer

import (
	"time"

	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// PipelineDrawer returns a pipeline option that renders the executed
// pipeline graph to dotFileName once the run finished.
func PipelineDrawer(dotFileName string) model.PipelineOption {
	return &pipelineOption{drawer: New(dotFileName)}
}

type pipelineOption struct {
	drawer *Drawer
}

func (o *pipelineOption) New() error {
	return nil
}

func (o *pipelineOption) PrepareStep(step *model.StepInfo) error {
	err := o.drawer.AddStep(step.Name)
	if err != nil {
		return err
	}

	for _, dep := range step.Deps {
		err := o.drawer.AddLink(dep, step.Name)
		if err != nil {
			return err
		}
	}

	return nil
}

func (o *pipelineOption) OnStepDone(step *model.StepInfo, _, _ time.Duration) error {
	o.drawer.SetStatus(step.Name, step.Status, step.SkipReason)

	return nil
}

func (o *pipelineOption) Finish(_ time.Duration) error {
	return o.drawer.Draw()
}
