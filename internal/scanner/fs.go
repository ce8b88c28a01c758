package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the metadata and listing provider the engine walks.
type FileSystem interface {
	// Stat follows symlinks; used for root validation and modification time.
	Stat(name string) (fs.FileInfo, error)
	// Lstat does not follow symlinks.
	Lstat(name string) (fs.FileInfo, error)
	// ReadDir lists a directory. Entry.Info must not follow symlinks.
	ReadDir(name string) ([]fs.DirEntry, error)
	// Join builds a child path using the provider's separator rules.
	Join(elem ...string) string
	// Canonical returns an absolute, symlink-resolved form of name.
	Canonical(name string) (string, error)
}

// UsageEstimator is implemented by providers that cannot report allocated
// blocks but can estimate them, such as SFTP servers.
type UsageEstimator interface {
	EstimateUsage(info fs.FileInfo) uint64
}

// OSFileSystem is the local operating system filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFileSystem) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OSFileSystem) Join(elem ...string) string                 { return filepath.Join(elem...) }

// Canonical resolves name to an absolute path and evaluates symlinks so
// that a root like /tmp -> /private/tmp is walked as a directory.
func (OSFileSystem) Canonical(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
