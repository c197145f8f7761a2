package projectdef_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-releaser/internal/projectdef"
)

const validDefinition = `
name: xpmir
version: 1.2.0
summary: Information retrieval experiment utilities
test:
  command: ["sh", "-c", "exit 0"]
artifact:
  include:
    - "xpmir/**"
cache:
  key_files:
    - poetry.lock
    - requirements.txt
  paths:
    - .venv
`

func TestParse(t *testing.T) {
	t.Parallel()

	project, err := projectdef.Parse([]byte(validDefinition))
	require.NoError(t, err)

	assert.Equal(t, "xpmir", project.Name)
	assert.Equal(t, "1.2.0", project.Version)
	assert.Equal(t, []string{"sh", "-c", "exit 0"}, project.Test.Command)
	assert.Equal(t, []string{"poetry.lock", "requirements.txt"}, project.Cache.KeyFiles)
	assert.True(t, project.CacheEnabled())
	require.NoError(t, project.Validate())
}

func TestParseUnknownField(t *testing.T) {
	t.Parallel()

	_, err := projectdef.Parse([]byte("name: a\nversion: 1.0.0\nunknown: true\n"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "releaser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDefinition), 0o600))

	project, err := projectdef.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xpmir", project.Name)

	_, err = projectdef.ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(p *projectdef.Project)
		expected error
	}{
		{
			name:     "missing name",
			mutate:   func(p *projectdef.Project) { p.Name = "" },
			expected: projectdef.ErrMissingName,
		},
		{
			name:     "invalid name",
			mutate:   func(p *projectdef.Project) { p.Name = "my package!" },
			expected: projectdef.ErrInvalidName,
		},
		{
			name:     "missing version",
			mutate:   func(p *projectdef.Project) { p.Version = "" },
			expected: projectdef.ErrMissingVersion,
		},
		{
			name:     "no artifact files",
			mutate:   func(p *projectdef.Project) { p.Artifact.Include = nil },
			expected: projectdef.ErrNoArtifactFiles,
		},
		{
			name:     "duplicate key file",
			mutate:   func(p *projectdef.Project) { p.Cache.KeyFiles = []string{"a.txt", "a.txt"} },
			expected: projectdef.ErrDuplicateKeyFile,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			project, err := projectdef.Parse([]byte(validDefinition))
			require.NoError(t, err)

			tc.mutate(project)
			assert.ErrorIs(t, project.Validate(), tc.expected)
		})
	}
}

func TestNormalizedName(t *testing.T) {
	t.Parallel()

	project := &projectdef.Project{Name: "My_Package..Name"}
	assert.Equal(t, "my-package-name", project.NormalizedName())
}
