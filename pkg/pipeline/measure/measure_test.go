package measure_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-releaser/pkg/pipeline"
	"github.com/askiada/go-releaser/pkg/pipeline/measure"
)

func TestMeasureRecordsStepTimings(t *testing.T) {
	t.Parallel()

	collector := measure.New()
	pipe, err := pipeline.New(measure.PipelineMeasure(collector))
	require.NoError(t, err)

	_, err = pipe.AddStep("sleep", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)

		return nil
	})
	require.NoError(t, err)
	_, err = pipe.AddStep("after", func(context.Context) error { return nil },
		pipeline.StepAfter("sleep"))
	require.NoError(t, err)

	require.NoError(t, pipe.Run(context.Background()))

	sleep := collector.Step("sleep")
	require.NotNil(t, sleep)
	assert.GreaterOrEqual(t, sleep.RunDuration(), 10*time.Millisecond)

	// The dependent step queued behind the sleeping one.
	after := collector.Step("after")
	require.NotNil(t, after)
	assert.GreaterOrEqual(t, after.QueueDuration(), 10*time.Millisecond)

	assert.GreaterOrEqual(t, collector.TotalDuration(), sleep.RunDuration())
	assert.Equal(t, collector.TotalDuration(), sleep.GetTotalDuration())
	assert.Nil(t, collector.Step("unknown"))
}

func TestMeasureSkippedStepHasNoRunDuration(t *testing.T) {
	t.Parallel()

	collector := measure.New()
	pipe, err := pipeline.New(measure.PipelineMeasure(collector))
	require.NoError(t, err)

	_, err = pipe.AddStep("gated", func(context.Context) error { return nil },
		pipeline.StepCondition(func(context.Context) (bool, string, error) {
			return false, "declined", nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, pipe.Run(context.Background()))

	gated := collector.Step("gated")
	require.NotNil(t, gated)
	assert.Zero(t, gated.RunDuration())
}
