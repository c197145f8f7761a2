// Package projectdef provides parsing and validation for project
// definition files. A project definition declares the package name and
// version, the files shipped in the artifact, the test command, and the
// dependency-cache inputs.
//
// The typical flow:
//
//  1. ReadFile or Parse: YAML bytes -> Project
//  2. Validate: structural checks (required fields, distinct cache keys)
//  3. The release assembly turns the definition into pipeline steps.
package projectdef

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project definition file looked up when no
// explicit path is given.
const DefaultFileName = "releaser.yaml"

var (
	ErrMissingName      = errors.New("project name is required")
	ErrInvalidName      = errors.New("project name must contain only letters, digits, '.', '-' and '_'")
	ErrMissingVersion   = errors.New("project version is required")
	ErrNoArtifactFiles  = errors.New("artifact.include must list at least one pattern")
	ErrDuplicateKeyFile = errors.New("cache.key_files entries must be distinct")
)

// Project is a parsed project definition.
type Project struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Summary string `yaml:"summary"`

	Test     TestSpec     `yaml:"test"`
	Artifact ArtifactSpec `yaml:"artifact"`
	Cache    CacheSpec    `yaml:"cache"`
}

// TestSpec declares the test command run between the build and the
// publication. An empty command means the project has no test step.
type TestSpec struct {
	Command []string `yaml:"command"`
}

// ArtifactSpec declares the files shipped in the artifact, as
// root-relative glob patterns.
type ArtifactSpec struct {
	Include []string `yaml:"include"`
}

// CacheSpec declares the dependency cache: the files whose contents key
// the cache, and the directories restored and saved around the test
// step.
type CacheSpec struct {
	KeyFiles []string `yaml:"key_files"`
	Paths    []string `yaml:"paths"`
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Parse unmarshals a YAML project definition. Unknown fields are
// rejected so a typo in the definition fails the run instead of being
// silently ignored.
func Parse(data []byte) (*Project, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var project Project
	err := decoder.Decode(&project)
	if err != nil {
		return nil, errors.Wrap(err, "parsing project definition")
	}

	return &project, nil
}

// ReadFile reads a YAML project definition from disk and parses it.
func ReadFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	project, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return project, nil
}

// Validate performs structural checks on the definition.
func (p *Project) Validate() error {
	if p.Name == "" {
		return ErrMissingName
	}
	if !nameRe.MatchString(p.Name) {
		return errors.Wrap(ErrInvalidName, p.Name)
	}
	if p.Version == "" {
		return ErrMissingVersion
	}
	if len(p.Artifact.Include) == 0 {
		return ErrNoArtifactFiles
	}

	seen := make(map[string]struct{}, len(p.Cache.KeyFiles))
	for _, keyFile := range p.Cache.KeyFiles {
		if _, ok := seen[keyFile]; ok {
			return errors.Wrap(ErrDuplicateKeyFile, keyFile)
		}
		seen[keyFile] = struct{}{}
	}

	return nil
}

// NormalizedName returns the package name lowercased with runs of '.',
// '-' and '_' collapsed to a single '-'. This is the canonical form
// used by package indexes.
func (p *Project) NormalizedName() string {
	return normalizeRe.ReplaceAllString(strings.ToLower(p.Name), "-")
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// CacheEnabled reports whether the definition carries enough
// information for the dependency cache to be useful.
func (p *Project) CacheEnabled() bool {
	return len(p.Cache.KeyFiles) > 0 && len(p.Cache.Paths) > 0
}
