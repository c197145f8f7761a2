package drawer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-releaser/pkg/pipeline"
	"github.com/askiada/go-releaser/pkg/pipeline/drawer"
	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

func TestDrawerRendersStatuses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.dot")

	d := drawer.New(path)
	require.NoError(t, d.AddStep("build"))
	require.NoError(t, d.AddStep("publish"))
	require.NoError(t, d.AddLink("build", "publish"))

	d.SetStatus("build", model.StatusSucceeded, "")
	d.SetStatus("publish", model.StatusSkipped, "no trigger tag (branch build)")

	require.NoError(t, d.Draw())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	dot := string(content)

	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"build"`)
	assert.Contains(t, dot, `"publish"`)
	assert.Contains(t, dot, `"build" -> "publish"`)
	assert.Contains(t, dot, "#90ee90")
	assert.Contains(t, dot, "#d3d3d3")
	assert.Contains(t, dot, "no trigger tag (branch build)")
}

func TestDrawerDuplicateStep(t *testing.T) {
	t.Parallel()

	d := drawer.New(filepath.Join(t.TempDir(), "graph.dot"))
	require.NoError(t, d.AddStep("build"))
	assert.Error(t, d.AddStep("build"))
}

func TestDrawerUnknownLink(t *testing.T) {
	t.Parallel()

	d := drawer.New(filepath.Join(t.TempDir(), "graph.dot"))
	require.NoError(t, d.AddStep("build"))
	assert.Error(t, d.AddLink("build", "missing"))
}

func TestPipelineDrawerOption(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.dot")

	pipe, err := pipeline.New(drawer.PipelineDrawer(path))
	require.NoError(t, err)

	_, err = pipe.AddStep("build", func(context.Context) error { return nil })
	require.NoError(t, err)
	_, err = pipe.AddStep("test", func(context.Context) error { return errors.New("boom") },
		pipeline.StepAfter("build"))
	require.NoError(t, err)
	_, err = pipe.AddStep("publish", func(context.Context) error { return nil },
		pipeline.StepAfter("test"))
	require.NoError(t, err)

	require.Error(t, pipe.Run(context.Background()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	dot := string(content)

	assert.Contains(t, dot, `"build" -> "test"`)
	assert.Contains(t, dot, `"test" -> "publish"`)
	assert.Contains(t, dot, "#f08080")
	assert.Contains(t, dot, "#d3d3d3")
}
