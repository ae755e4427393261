// Package scratch manages per-job temporary directories. Every job gets
// its own directory so concurrent jobs never collide, and the directory
// is removed on every exit path so failed or cancelled jobs leave nothing
// behind.
package scratch

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	replicaerrors "github.com/input-output-hk/catalyst-forge-libs/replica/errors"
)

// prefix namespaces scratch directories under the root.
const prefix = "replica-"

// Dir is one job's scratch directory.
type Dir struct {
	path string
	fsys fs.Filesystem
}

// New creates a scratch directory for jobID under root. An empty root
// falls back to the OS temp directory.
func New(fsys fs.Filesystem, root, jobID string) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}
	path := filepath.Join(root, prefix+jobID)
	if err := fsys.MkdirAll(path, 0o700); err != nil {
		return nil, replicaerrors.NewError("scratch", err).
			WithMessage("failed to create scratch directory")
	}
	return &Dir{path: path, fsys: fsys}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Join returns the path of name inside the directory.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// Remove deletes the directory and everything in it. Removing an already
// removed directory is a no-op. The filesystem abstraction has no
// recursive remove, so entries are walked and deleted deepest first.
func (d *Dir) Remove() error {
	if ok, err := d.fsys.Exists(d.path); err == nil && !ok {
		return nil
	}

	var paths []string
	err := d.fsys.Walk(d.path, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return replicaerrors.NewError("scratch", err).
			WithMessage("failed to walk scratch directory")
	}

	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })
	for _, p := range paths {
		if err := d.fsys.Remove(p); err != nil {
			return replicaerrors.NewError("scratch", err).
				WithMessage("failed to remove scratch entry")
		}
	}
	return nil
}
