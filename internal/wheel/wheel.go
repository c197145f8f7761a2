// Package wheel builds the distributable artifact: a platform-agnostic,
// wheel-style zip archive named <name>-<version>-py3-none-any.whl.
//
// The archive contains the project files selected by the definition's
// include patterns plus a <name>-<version>.dist-info/ directory with
// METADATA, WHEEL and RECORD members. RECORD lists every member with
// its sha256 digest (urlsafe base64, unpadded) and size; the digests
// are sha256 because that is what index tooling verifies.
package wheel

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-releaser/internal/projectdef"
)

var ErrNoFilesMatched = errors.New("no files matched the artifact include patterns")

// Artifact describes a built wheel on disk.
type Artifact struct {
	// Path is the absolute path of the wheel file.
	Path string
	// Name and Version are the normalized project name and the declared
	// version the wheel was built from.
	Name    string
	Version string
	// SHA256 is the hex digest of the wheel file, sent alongside the
	// upload so the index can verify the transfer.
	SHA256 string
	Size   int64
}

// Filename returns the wheel file name for a project name and version.
func Filename(name, version string) string {
	return fmt.Sprintf("%s-%s-py3-none-any.whl", escapeName(name), version)
}

// escapeName turns a normalized project name into the form used inside
// wheel file names, where runs of separators become a single underscore.
func escapeName(name string) string {
	return escapeRe.ReplaceAllString(strings.ToLower(name), "_")
}

var escapeRe = regexp.MustCompile(`[-_.]+`)

// Build creates the wheel for project under outDir, collecting files
// relative to rootDir. Include patterns are matched with filepath.Glob;
// a pattern may end with "/**" to select a directory tree, and matched
// directories are walked recursively.
func Build(project *projectdef.Project, rootDir, outDir string) (*Artifact, error) {
	files, err := collectFiles(project.Artifact.Include, rootDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFilesMatched
	}

	err = os.MkdirAll(outDir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", outDir)
	}

	wheelPath := filepath.Join(outDir, Filename(project.Name, project.Version))
	out, err := os.Create(wheelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", wheelPath)
	}
	defer out.Close()

	archive := zip.NewWriter(out)

	records := make([]record, 0, len(files)+3)
	for _, relPath := range files {
		rec, err := addFile(archive, rootDir, relPath)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	distInfo := fmt.Sprintf("%s-%s.dist-info", escapeName(project.Name), project.Version)

	rec, err := addMember(archive, distInfo+"/METADATA", metadata(project))
	if err != nil {
		return nil, err
	}
	records = append(records, rec)

	rec, err = addMember(archive, distInfo+"/WHEEL", wheelMember())
	if err != nil {
		return nil, err
	}
	records = append(records, rec)

	err = writeRecord(archive, distInfo+"/RECORD", records)
	if err != nil {
		return nil, err
	}

	err = archive.Close()
	if err != nil {
		return nil, errors.Wrap(err, "unable to finalize wheel archive")
	}
	err = out.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to close %s", wheelPath)
	}

	return describe(wheelPath, project)
}

type record struct {
	path   string
	digest string
	size   int64
}

func collectFiles(patterns []string, rootDir string) ([]string, error) {
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/**")

		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid include pattern %s", pattern)
		}

		for _, match := range matches {
			err := collectMatch(rootDir, match, seen)
			if err != nil {
				return nil, err
			}
		}
	}

	files := make([]string, 0, len(seen))
	for relPath := range seen {
		files = append(files, relPath)
	}
	sort.Strings(files)

	return files, nil
}

func collectMatch(rootDir, match string, seen map[string]struct{}) error {
	info, err := os.Stat(match)
	if err != nil {
		return errors.Wrapf(err, "unable to stat %s", match)
	}

	if !info.IsDir() {
		relPath, err := filepath.Rel(rootDir, match)
		if err != nil {
			return errors.Wrapf(err, "unable to relativize %s", match)
		}
		seen[filepath.ToSlash(relPath)] = struct{}{}

		return nil
	}

	return filepath.WalkDir(match, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return errors.Wrapf(err, "unable to relativize %s", path)
		}
		seen[filepath.ToSlash(relPath)] = struct{}{}

		return nil
	})
}

func addFile(archive *zip.Writer, rootDir, relPath string) (record, error) {
	file, err := os.Open(filepath.Join(rootDir, relPath))
	if err != nil {
		return record{}, errors.Wrapf(err, "unable to open %s", relPath)
	}
	defer file.Close()

	writer, err := archive.Create(relPath)
	if err != nil {
		return record{}, errors.Wrapf(err, "unable to add %s to the archive", relPath)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(writer, hasher), file)
	if err != nil {
		return record{}, errors.Wrapf(err, "unable to copy %s into the archive", relPath)
	}

	return record{
		path:   relPath,
		digest: recordDigest(hasher.Sum(nil)),
		size:   size,
	}, nil
}

func addMember(archive *zip.Writer, name, content string) (record, error) {
	writer, err := archive.Create(name)
	if err != nil {
		return record{}, errors.Wrapf(err, "unable to add %s to the archive", name)
	}

	_, err = writer.Write([]byte(content))
	if err != nil {
		return record{}, errors.Wrapf(err, "unable to write %s", name)
	}

	sum := sha256.Sum256([]byte(content))

	return record{
		path:   name,
		digest: recordDigest(sum[:]),
		size:   int64(len(content)),
	}, nil
}

func writeRecord(archive *zip.Writer, name string, records []record) error {
	var builder strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&builder, "%s,sha256=%s,%d\n", rec.path, rec.digest, rec.size)
	}
	// RECORD lists itself without digest or size.
	fmt.Fprintf(&builder, "%s,,\n", name)

	writer, err := archive.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to add %s to the archive", name)
	}

	_, err = writer.Write([]byte(builder.String()))
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", name)
	}

	return nil
}

func recordDigest(sum []byte) string {
	return base64.RawURLEncoding.EncodeToString(sum)
}

func metadata(project *projectdef.Project) string {
	var builder strings.Builder
	builder.WriteString("Metadata-Version: 2.1\n")
	fmt.Fprintf(&builder, "Name: %s\n", project.Name)
	fmt.Fprintf(&builder, "Version: %s\n", project.Version)
	if project.Summary != "" {
		fmt.Fprintf(&builder, "Summary: %s\n", project.Summary)
	}

	return builder.String()
}

func wheelMember() string {
	return "Wheel-Version: 1.0\n" +
		"Generator: go-releaser\n" +
		"Root-Is-Purelib: true\n" +
		"Tag: py3-none-any\n"
}

func describe(wheelPath string, project *projectdef.Project) (*Artifact, error) {
	file, err := os.Open(wheelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to reopen %s", wheelPath)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to hash %s", wheelPath)
	}

	absPath, err := filepath.Abs(wheelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve %s", wheelPath)
	}

	return &Artifact{
		Path:    absPath,
		Name:    project.NormalizedName(),
		Version: project.Version,
		SHA256:  hex.EncodeToString(hasher.Sum(nil)),
		Size:    size,
	}, nil
}
