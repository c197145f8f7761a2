// Package release assembles and runs the standard release pipeline:
//
//	restore-cache -> build -> test -> save-cache -> publish
//
// The cache steps only exist when the project definition configures the
// dependency cache, and the test step only when it declares a test
// command. The publish step carries the version gate as a condition: a
// run whose trigger tag does not match the declared version skips
// publication and stays green. A build or test failure aborts the run
// before the gate is ever evaluated.
package release

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/go-releaser/internal/depcache"
	"github.com/askiada/go-releaser/internal/gate"
	"github.com/askiada/go-releaser/internal/index"
	"github.com/askiada/go-releaser/internal/projectdef"
	"github.com/askiada/go-releaser/internal/wheel"
	"github.com/askiada/go-releaser/pkg/pipeline"
	"github.com/askiada/go-releaser/pkg/pipeline/drawer"
	"github.com/askiada/go-releaser/pkg/pipeline/measure"
	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// Step names of the standard release pipeline.
const (
	StepRestoreCache = "restore-cache"
	StepBuild        = "build"
	StepTest         = "test"
	StepSaveCache    = "save-cache"
	StepPublish      = "publish"
)

var (
	ErrProjectMustBeSet  = errors.New("project must be set")
	ErrIndexURLMustBeSet = errors.New("index URL must be set to publish")
	ErrArtifactNotBuilt  = errors.New("artifact was not built")
)

// Uploader publishes a built artifact. It is implemented by
// index.Client; tests inject fakes.
type Uploader interface {
	Upload(ctx context.Context, artifact *wheel.Artifact) error
}

// Options configures a release run.
type Options struct {
	Project *projectdef.Project

	// RootDir is the workspace root; OutDir receives the built wheel
	// and defaults to <RootDir>/dist.
	RootDir string
	OutDir  string

	// CacheDir stores the dependency cache archives.
	CacheDir string

	// Tag is the trigger tag of this run; empty for branch builds.
	Tag string

	// IndexURL is the upload endpoint, only required when the gate
	// passes and no Uploader is injected.
	IndexURL string

	// Uploader overrides the index client; when nil, a client is built
	// from IndexURL and the environment credentials inside the publish
	// step, so a declined gate never touches credentials.
	Uploader Uploader

	Logger *slog.Logger

	// DrawPath, when set, renders the executed pipeline graph as DOT.
	DrawPath string

	// Measure, when set, collects per-step timings.
	Measure *measure.Measure
}

// Summary is the outcome of a release run.
type Summary struct {
	Artifact *wheel.Artifact
	Decision gate.Decision
	Statuses map[string]model.Status
}

type runner struct {
	opts     Options
	cache    *depcache.Cache
	logger   *slog.Logger
	artifact *wheel.Artifact
}

// Run assembles the release pipeline for the given options and runs it
// to completion. The returned summary carries the terminal status of
// every step even when the run failed.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Project == nil {
		return nil, ErrProjectMustBeSet
	}

	err := opts.Project.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid project definition")
	}

	if opts.RootDir == "" {
		opts.RootDir = "."
	}
	if opts.OutDir == "" {
		opts.OutDir = filepath.Join(opts.RootDir, "dist")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	decision := gate.Decide(opts.Project.Version, opts.Tag)

	r := &runner{
		opts:   opts,
		logger: opts.Logger.With("project", opts.Project.Name, "version", opts.Project.Version),
	}
	if opts.Project.CacheEnabled() {
		r.cache = depcache.New(opts.RootDir, opts.CacheDir, opts.Project.Cache.KeyFiles, opts.Project.Cache.Paths)
	}

	pipe, err := r.assemble(decision)
	if err != nil {
		return nil, err
	}

	runErr := pipe.Run(ctx)

	summary := &Summary{
		Artifact: r.artifact,
		Decision: decision,
		Statuses: pipe.StepStatuses(),
	}

	return summary, runErr
}

func (r *runner) assemble(decision gate.Decision) (*pipeline.Pipeline, error) {
	var pipeOpts []model.PipelineOption
	if r.opts.DrawPath != "" {
		pipeOpts = append(pipeOpts, drawer.PipelineDrawer(r.opts.DrawPath))
	}
	if r.opts.Measure != nil {
		pipeOpts = append(pipeOpts, measure.PipelineMeasure(r.opts.Measure))
	}

	pipe, err := pipeline.New(pipeOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	var prev []string

	if r.cache != nil {
		_, err = pipe.AddStep(StepRestoreCache, r.restoreCache)
		if err != nil {
			return nil, err
		}
		prev = []string{StepRestoreCache}
	}

	_, err = pipe.AddStep(StepBuild, r.build, pipeline.StepAfter(prev...))
	if err != nil {
		return nil, err
	}
	prev = []string{StepBuild}

	if len(r.opts.Project.Test.Command) > 0 {
		_, err = pipe.AddStep(StepTest, r.test, pipeline.StepAfter(prev...))
		if err != nil {
			return nil, err
		}
		prev = []string{StepTest}
	}

	if r.cache != nil {
		_, err = pipe.AddStep(StepSaveCache, r.saveCache, pipeline.StepAfter(prev...))
		if err != nil {
			return nil, err
		}
		prev = []string{StepSaveCache}
	}

	_, err = pipe.AddStep(StepPublish, r.publish,
		pipeline.StepAfter(prev...),
		pipeline.StepCondition(func(context.Context) (bool, string, error) {
			if !decision.Publish {
				r.logger.Info("publication skipped", "reason", decision.Reason)
			}

			return decision.Publish, decision.Reason, nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return pipe, nil
}

func (r *runner) restoreCache(ctx context.Context) error {
	hit, err := r.cache.Restore(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("dependency cache restored", "hit", hit)

	return nil
}

func (r *runner) build(context.Context) error {
	artifact, err := wheel.Build(r.opts.Project, r.opts.RootDir, r.opts.OutDir)
	if err != nil {
		return err
	}

	r.artifact = artifact
	r.logger.Info("artifact built", "path", artifact.Path, "size", artifact.Size)

	return nil
}

func (r *runner) test(ctx context.Context) error {
	command := r.opts.Project.Test.Command
	r.logger.Info("running tests", "command", command)

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = r.opts.RootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		return errors.Wrap(err, "tests failed")
	}

	return nil
}

func (r *runner) saveCache(ctx context.Context) error {
	err := r.cache.Save(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("dependency cache saved")

	return nil
}

func (r *runner) publish(ctx context.Context) error {
	if r.artifact == nil {
		return ErrArtifactNotBuilt
	}

	uploader := r.opts.Uploader
	if uploader == nil {
		if r.opts.IndexURL == "" {
			return ErrIndexURLMustBeSet
		}

		creds, err := index.CredentialsFromEnv()
		if err != nil {
			return err
		}

		client, err := index.NewClient(r.opts.IndexURL, creds)
		if err != nil {
			return err
		}
		uploader = client
	}

	err := uploader.Upload(ctx, r.artifact)
	if err != nil {
		return errors.Wrap(err, "unable to publish artifact")
	}

	r.logger.Info("artifact published", "file", filepath.Base(r.artifact.Path))

	return nil
}
