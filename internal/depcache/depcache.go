// Package depcache implements the dependency cache: a best-effort,
// hash-keyed snapshot of resolved third-party dependencies restored
// before the test step and saved after it.
//
// The key is a keyed BLAKE3 digest over the configured key files
// (typically a lock file and a requirements file): any content change
// produces a new key. Archives are tar streams compressed with zstd,
// stored as <cache-dir>/<key>.tar.zst. A restore miss is silent; the
// cache is a speedup, never a correctness dependency.
package depcache

import (
	"archive/tar"
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

var (
	ErrNoKeyFiles     = errors.New("no cache key files configured")
	ErrUnsafeEntry    = errors.New("cache archive entry escapes the workspace")
	ErrMissingKeyFile = errors.New("cache key file does not exist")
)

// keyDomain is the 32-byte BLAKE3 key for cache digests. The value is
// the ASCII domain name zero-padded to 32 bytes, so the key is
// inspectable in hex dumps while keeping domain separation from any
// other keyed hash.
var keyDomain = [32]byte{
	'g', 'o', '-', 'r', 'e', 'l', 'e', 'a', 's', 'e', 'r', '.',
	'd', 'e', 'p', 'c', 'a', 'c', 'h', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Cache manages one project's dependency cache.
type Cache struct {
	rootDir  string
	cacheDir string
	keyFiles []string
	paths    []string
}

// New creates a cache for the workspace at rootDir, storing archives
// under cacheDir. keyFiles are root-relative files whose contents key
// the cache; paths are the root-relative directories archived.
func New(rootDir, cacheDir string, keyFiles, paths []string) *Cache {
	return &Cache{
		rootDir:  rootDir,
		cacheDir: cacheDir,
		keyFiles: keyFiles,
		paths:    paths,
	}
}

// Key computes the cache key: a keyed BLAKE3 digest over the sorted key
// files, each contributed as length-prefixed path and content. A
// missing key file is an error: the key inputs define the cache
// identity, so their absence is a configuration problem, not a miss.
func (c *Cache) Key() (string, error) {
	if len(c.keyFiles) == 0 {
		return "", ErrNoKeyFiles
	}

	hasher, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		return "", errors.Wrap(err, "unable to create hasher")
	}

	sorted := make([]string, len(c.keyFiles))
	copy(sorted, c.keyFiles)
	sort.Strings(sorted)

	for _, keyFile := range sorted {
		content, err := os.ReadFile(filepath.Join(c.rootDir, keyFile))
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.Wrap(ErrMissingKeyFile, keyFile)
			}

			return "", errors.Wrapf(err, "unable to read %s", keyFile)
		}

		writeField(hasher, []byte(keyFile))
		writeField(hasher, content)
	}

	sum := hasher.Sum(nil)

	return hex.EncodeToString(sum), nil
}

// writeField writes a length-prefixed field so adjacent fields can
// never be confused for one another.
func writeField(hasher *blake3.Hasher, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	_, _ = hasher.Write(length[:])
	_, _ = hasher.Write(data)
}

// Restore extracts the archive for the current key into the workspace.
// It returns false when no archive exists for the key.
func (c *Cache) Restore(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key, err := c.Key()
	if err != nil {
		return false, err
	}

	archivePath := c.archivePath(key)
	file, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, errors.Wrapf(err, "unable to open %s", archivePath)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return false, errors.Wrapf(err, "unable to decompress %s", archivePath)
	}
	defer decoder.Close()

	err = c.extract(tar.NewReader(decoder))
	if err != nil {
		return false, errors.Wrapf(err, "unable to extract %s", archivePath)
	}

	return true, nil
}

// Save archives the cache paths under the current key. Cache paths that
// do not exist are skipped: a test run that never created them is not
// an error. The archive is written to a temporary file and renamed into
// place so a concurrent reader never sees a partial archive.
func (c *Cache) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := c.Key()
	if err != nil {
		return err
	}

	err = os.MkdirAll(c.cacheDir, 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", c.cacheDir)
	}

	archivePath := c.archivePath(key)
	tmp, err := os.CreateTemp(c.cacheDir, "save-*.tmp")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary archive")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		return errors.Wrap(err, "unable to create compressor")
	}

	archive := tar.NewWriter(encoder)
	for _, path := range c.paths {
		err := c.archiveTree(archive, path)
		if err != nil {
			return err
		}
	}

	err = archive.Close()
	if err != nil {
		return errors.Wrap(err, "unable to finalize archive")
	}
	err = encoder.Close()
	if err != nil {
		return errors.Wrap(err, "unable to finalize compression")
	}
	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "unable to close temporary archive")
	}

	err = os.Rename(tmp.Name(), archivePath)
	if err != nil {
		return errors.Wrapf(err, "unable to move archive to %s", archivePath)
	}

	return nil
}

func (c *Cache) archivePath(key string) string {
	return filepath.Join(c.cacheDir, key+".tar.zst")
}

func (c *Cache) archiveTree(archive *tar.Writer, path string) error {
	absPath := filepath.Join(c.rootDir, path)
	_, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "unable to stat %s", path)
	}

	return filepath.WalkDir(absPath, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(c.rootDir, current)
		if err != nil {
			return errors.Wrapf(err, "unable to relativize %s", current)
		}
		relPath = filepath.ToSlash(relPath)

		info, err := entry.Info()
		if err != nil {
			return errors.Wrapf(err, "unable to stat %s", current)
		}

		switch {
		case entry.IsDir():
			return archive.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     relPath + "/",
				Mode:     int64(info.Mode().Perm()),
			})
		case info.Mode().IsRegular():
			err := archive.WriteHeader(&tar.Header{
				Typeflag: tar.TypeReg,
				Name:     relPath,
				Mode:     int64(info.Mode().Perm()),
				Size:     info.Size(),
			})
			if err != nil {
				return errors.Wrapf(err, "unable to add %s", relPath)
			}

			file, err := os.Open(current)
			if err != nil {
				return errors.Wrapf(err, "unable to open %s", current)
			}
			defer file.Close()

			_, err = io.Copy(archive, file)

			return errors.Wrapf(err, "unable to archive %s", relPath)
		default:
			// Sockets, devices and symlinks are not cacheable content.
			return nil
		}
	})
}

func (c *Cache) extract(archive *tar.Reader) error {
	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		relPath := filepath.FromSlash(header.Name)
		if filepath.IsAbs(relPath) || strings.Contains(relPath, "..") {
			return errors.Wrap(ErrUnsafeEntry, header.Name)
		}
		target := filepath.Join(c.rootDir, relPath)

		switch header.Typeflag {
		case tar.TypeDir:
			err := os.MkdirAll(target, os.FileMode(header.Mode).Perm())
			if err != nil {
				return errors.Wrapf(err, "unable to create %s", target)
			}
		case tar.TypeReg:
			err := extractFile(archive, target, os.FileMode(header.Mode).Perm())
			if err != nil {
				return err
			}
		default:
			// Entries the archiver never writes; ignore them instead of
			// failing a restore from an older cache format.
		}
	}
}

func extractFile(archive *tar.Reader, target string, mode os.FileMode) error {
	err := os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create parent of %s", target)
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", target)
	}
	defer file.Close()

	_, err = io.Copy(file, archive)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", target)
	}

	return file.Close()
}
