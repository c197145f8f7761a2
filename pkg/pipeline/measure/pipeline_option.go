package measure

import (
	"time"

	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// PipelineMeasure returns a pipeline option that records per-step
// timings into m.
func PipelineMeasure(m *Measure) model.PipelineOption {
	return &pipelineOption{measure: m}
}

type pipelineOption struct {
	measure *Measure
}

func (o *pipelineOption) New() error {
	return nil
}

func (o *pipelineOption) PrepareStep(step *model.StepInfo) error {
	step.Metric = o.measure.addStep(step.Name)

	return nil
}

func (o *pipelineOption) OnStepDone(step *model.StepInfo, queueDuration, runDuration time.Duration) error {
	if step.Metric == nil {
		return nil
	}

	step.Metric.AddQueueDuration(queueDuration)
	step.Metric.AddRunDuration(runDuration)

	return nil
}

func (o *pipelineOption) Finish(totalDuration time.Duration) error {
	o.measure.setTotalDuration(totalDuration)

	return nil
}
