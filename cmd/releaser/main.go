// Command releaser runs the release pipeline for a project: restore the
// dependency cache, build the wheel artifact, run the tests, save the
// cache, and publish to the package index when the trigger tag matches
// the declared version.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/askiada/go-releaser/internal/config"
	"github.com/askiada/go-releaser/internal/gate"
	"github.com/askiada/go-releaser/internal/projectdef"
	"github.com/askiada/go-releaser/internal/version"
	"github.com/askiada/go-releaser/internal/wheel"
	"github.com/askiada/go-releaser/pkg/pipeline/measure"
	"github.com/askiada/go-releaser/pkg/release"
)

const usage = `Usage: releaser <command> [flags]

Commands:
  run      run the release pipeline (build, test, cache, publish)
  gate     print the publish decision for a version and tag
  build    build the wheel artifact without running the pipeline
  version  print build information
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)

		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	switch args[0] {
	case "run":
		return runPipeline(args[1:], stdout, stderr, logger)
	case "gate":
		return runGate(args[1:], stdout, stderr)
	case "build":
		return runBuild(args[1:], stdout, stderr, logger)
	case "version":
		fmt.Fprintln(stdout, version.Info())

		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)

		return 2
	}
}

func runPipeline(args []string, stdout, stderr io.Writer, logger *slog.Logger) int {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	projectPath := flags.String("project", projectdef.DefaultFileName, "project definition file")
	configPath := flags.String("config", "", "runner configuration file")
	rootDir := flags.String("root", ".", "workspace root directory")
	outDir := flags.String("out", "", "artifact output directory (default <root>/dist)")
	cacheDir := flags.String("cache-dir", "", "dependency cache directory")
	indexURL := flags.String("index-url", "", "package index upload endpoint")
	tag := flags.String("tag", "", "trigger tag of this run (empty for branch builds)")
	drawPath := flags.String("draw", "", "write the executed pipeline graph to this DOT file")
	measureSteps := flags.Bool("measure", false, "print per-step durations after the run")

	err := flags.Parse(args)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("unable to load configuration", "error", err)

		return 2
	}
	applyFlagOverrides(cfg, *tag, *cacheDir, *indexURL)

	project, err := projectdef.ReadFile(*projectPath)
	if err != nil {
		logger.Error("unable to load project definition", "error", err)

		return 2
	}

	var collector *measure.Measure
	if *measureSteps {
		collector = measure.New()
	}

	summary, err := release.Run(context.Background(), release.Options{
		Project:  project,
		RootDir:  *rootDir,
		OutDir:   *outDir,
		CacheDir: cfg.CacheDir,
		Tag:      cfg.Tag,
		IndexURL: cfg.IndexURL,
		Logger:   logger,
		DrawPath: *drawPath,
		Measure:  collector,
	})
	if summary != nil {
		printSummary(stdout, summary, collector)
	}
	if err != nil {
		logger.Error("pipeline failed", "error", err)

		return 1
	}

	return 0
}

func applyFlagOverrides(cfg *config.Config, tag, cacheDir, indexURL string) {
	if tag != "" {
		cfg.Tag = tag
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if indexURL != "" {
		cfg.IndexURL = indexURL
	}
}

func printSummary(stdout io.Writer, summary *release.Summary, collector *measure.Measure) {
	for _, name := range []string{
		release.StepRestoreCache,
		release.StepBuild,
		release.StepTest,
		release.StepSaveCache,
		release.StepPublish,
	} {
		status, ok := summary.Statuses[name]
		if !ok {
			continue
		}

		if collector != nil && collector.Step(name) != nil {
			fmt.Fprintf(stdout, "%-14s %-10s %s\n", name, status, collector.Step(name).RunDuration())
		} else {
			fmt.Fprintf(stdout, "%-14s %s\n", name, status)
		}
	}

	if collector != nil {
		fmt.Fprintf(stdout, "total %s\n", collector.TotalDuration())
	}
}

func runGate(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("gate", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	projectPath := flags.String("project", projectdef.DefaultFileName, "project definition file")
	declared := flags.String("version", "", "declared version (default: read from the project definition)")
	tag := flags.String("tag", os.Getenv(config.TagEnv), "trigger tag of this run")

	err := flags.Parse(args)
	if err != nil {
		return 2
	}

	declaredVersion := *declared
	if declaredVersion == "" {
		project, err := projectdef.ReadFile(*projectPath)
		if err != nil {
			fmt.Fprintln(stderr, err)

			return 2
		}
		declaredVersion = project.Version
	}

	// A declined gate is a no-op, not an error: the exit code stays 0
	// either way so branch builds do not fail on the decision itself.
	decision := gate.Decide(declaredVersion, *tag)
	if decision.Publish {
		fmt.Fprintf(stdout, "publish: %s\n", decision.Reason)
	} else {
		fmt.Fprintf(stdout, "skip: %s\n", decision.Reason)
	}

	return 0
}

func runBuild(args []string, stdout, stderr io.Writer, logger *slog.Logger) int {
	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	projectPath := flags.String("project", projectdef.DefaultFileName, "project definition file")
	rootDir := flags.String("root", ".", "workspace root directory")
	outDir := flags.String("out", "dist", "artifact output directory")

	err := flags.Parse(args)
	if err != nil {
		return 2
	}

	project, err := projectdef.ReadFile(*projectPath)
	if err != nil {
		logger.Error("unable to load project definition", "error", err)

		return 2
	}
	err = project.Validate()
	if err != nil {
		logger.Error("invalid project definition", "error", err)

		return 2
	}

	artifact, err := wheel.Build(project, *rootDir, *outDir)
	if err != nil {
		logger.Error("unable to build artifact", "error", err)

		return 1
	}

	fmt.Fprintln(stdout, artifact.Path)

	return 0
}
