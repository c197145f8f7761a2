package wheel_test

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-releaser/internal/projectdef"
	"github.com/askiada/go-releaser/internal/wheel"
)

func testProject() *projectdef.Project {
	return &projectdef.Project{
		Name:    "xpmir",
		Version: "1.2.0",
		Summary: "Information retrieval experiment utilities",
		Artifact: projectdef.ArtifactSpec{
			Include: []string{"xpmir/**", "README.md"},
		},
	}
}

func writeTree(t *testing.T, rootDir string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "xpmir", "neural"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "xpmir", "__init__.py"), []byte("__version__ = \"1.2.0\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "xpmir", "neural", "__init__.py"), []byte(""), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "README.md"), []byte("# xpmir\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "ignored.txt"), []byte("not packaged\n"), 0o600))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "xpmir-1.2.0-py3-none-any.whl", wheel.Filename("xpmir", "1.2.0"))
	assert.Equal(t, "my_package-0.1.0-py3-none-any.whl", wheel.Filename("My-Package", "0.1.0"))
}

func TestBuild(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	outDir := filepath.Join(rootDir, "dist")
	writeTree(t, rootDir)

	artifact, err := wheel.Build(testProject(), rootDir, outDir)
	require.NoError(t, err)

	assert.Equal(t, "xpmir", artifact.Name)
	assert.Equal(t, "1.2.0", artifact.Version)
	assert.Equal(t, filepath.Join(outDir, "xpmir-1.2.0-py3-none-any.whl"), artifact.Path)
	assert.True(t, strings.HasSuffix(artifact.Path, "-none-any.whl"))
	assert.NotEmpty(t, artifact.SHA256)
	assert.Positive(t, artifact.Size)

	reader, err := zip.OpenReader(artifact.Path)
	require.NoError(t, err)
	defer reader.Close()

	members := make(map[string]*zip.File, len(reader.File))
	for _, member := range reader.File {
		members[member.Name] = member
	}

	assert.Contains(t, members, "xpmir/__init__.py")
	assert.Contains(t, members, "xpmir/neural/__init__.py")
	assert.Contains(t, members, "README.md")
	assert.Contains(t, members, "xpmir-1.2.0.dist-info/METADATA")
	assert.Contains(t, members, "xpmir-1.2.0.dist-info/WHEEL")
	assert.Contains(t, members, "xpmir-1.2.0.dist-info/RECORD")
	assert.NotContains(t, members, "ignored.txt")

	metadata := readMember(t, members["xpmir-1.2.0.dist-info/METADATA"])
	assert.Contains(t, metadata, "Name: xpmir\n")
	assert.Contains(t, metadata, "Version: 1.2.0\n")
	assert.Contains(t, metadata, "Summary: Information retrieval experiment utilities\n")

	wheelMember := readMember(t, members["xpmir-1.2.0.dist-info/WHEEL"])
	assert.Contains(t, wheelMember, "Tag: py3-none-any\n")

	recordMember := readMember(t, members["xpmir-1.2.0.dist-info/RECORD"])
	expected := sha256.Sum256([]byte("# xpmir\n"))
	expectedDigest := base64.RawURLEncoding.EncodeToString(expected[:])
	assert.Contains(t, recordMember, "README.md,sha256="+expectedDigest+",8\n")
	assert.Contains(t, recordMember, "xpmir-1.2.0.dist-info/RECORD,,\n")
}

func TestBuildNoMatches(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()

	_, err := wheel.Build(testProject(), rootDir, filepath.Join(rootDir, "dist"))
	assert.ErrorIs(t, err, wheel.ErrNoFilesMatched)
}

func readMember(t *testing.T, member *zip.File) string {
	t.Helper()

	reader, err := member.Open()
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)

	return string(content)
}
