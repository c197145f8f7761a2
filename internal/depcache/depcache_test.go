package depcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-releaser/internal/depcache"
)

func writeKeyFiles(t *testing.T, rootDir, lockContent, reqContent string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "poetry.lock"), []byte(lockContent), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "requirements.txt"), []byte(reqContent), 0o600))
}

func newCache(rootDir, cacheDir string) *depcache.Cache {
	return depcache.New(rootDir, cacheDir, []string{"poetry.lock", "requirements.txt"}, []string{".venv"})
}

func TestKeyDeterministic(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	cache := newCache(rootDir, t.TempDir())

	first, err := cache.Key()
	require.NoError(t, err)
	second, err := cache.Key()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestKeyChangesWithContent(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	cacheDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	cache := newCache(rootDir, cacheDir)
	before, err := cache.Key()
	require.NoError(t, err)

	writeKeyFiles(t, rootDir, "lock-v2", "req-v1")
	afterLock, err := cache.Key()
	require.NoError(t, err)
	assert.NotEqual(t, before, afterLock)

	writeKeyFiles(t, rootDir, "lock-v2", "req-v2")
	afterReq, err := cache.Key()
	require.NoError(t, err)
	assert.NotEqual(t, afterLock, afterReq)
}

func TestKeyOrderIndependent(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	forward := depcache.New(rootDir, t.TempDir(), []string{"poetry.lock", "requirements.txt"}, nil)
	backward := depcache.New(rootDir, t.TempDir(), []string{"requirements.txt", "poetry.lock"}, nil)

	forwardKey, err := forward.Key()
	require.NoError(t, err)
	backwardKey, err := backward.Key()
	require.NoError(t, err)

	assert.Equal(t, forwardKey, backwardKey)
}

func TestKeyErrors(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()

	empty := depcache.New(rootDir, t.TempDir(), nil, nil)
	_, err := empty.Key()
	assert.ErrorIs(t, err, depcache.ErrNoKeyFiles)

	missing := newCache(rootDir, t.TempDir())
	_, err = missing.Key()
	assert.ErrorIs(t, err, depcache.ErrMissingKeyFile)
}

func TestRestoreMiss(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	cache := newCache(rootDir, t.TempDir())
	hit, err := cache.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()

	// First workspace: populate the cached directory and save.
	sourceDir := t.TempDir()
	writeKeyFiles(t, sourceDir, "lock-v1", "req-v1")
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, ".venv", "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, ".venv", "lib", "dep.py"), []byte("resolved = True\n"), 0o644))

	source := newCache(sourceDir, cacheDir)
	require.NoError(t, source.Save(context.Background()))

	// Second workspace with the same key files: restore hits and
	// recreates the tree.
	targetDir := t.TempDir()
	writeKeyFiles(t, targetDir, "lock-v1", "req-v1")

	target := newCache(targetDir, cacheDir)
	hit, err := target.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)

	content, err := os.ReadFile(filepath.Join(targetDir, ".venv", "lib", "dep.py"))
	require.NoError(t, err)
	assert.Equal(t, "resolved = True\n", string(content))

	// A third workspace with different lock content misses.
	staleDir := t.TempDir()
	writeKeyFiles(t, staleDir, "lock-v2", "req-v1")

	stale := newCache(staleDir, cacheDir)
	hit, err = stale.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSaveSkipsMissingPaths(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	cache := newCache(rootDir, t.TempDir())
	require.NoError(t, cache.Save(context.Background()))
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	writeKeyFiles(t, rootDir, "lock-v1", "req-v1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cache := newCache(rootDir, t.TempDir())
	_, err := cache.Restore(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, cache.Save(ctx), context.Canceled)
}
