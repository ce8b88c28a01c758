// Package remote scans hosts over SFTP by providing a scanner.FileSystem
// backed by an SSH connection.
package remote

import (
	"io"
	"io/fs"
	"os"
	pathpkg "path"
	"strings"

	"github.com/pkg/sftp"
)

const defaultRemotePath = "."

const defaultBlockSize uint64 = 4096

// client is the subset of *sftp.Client the filesystem needs.
type client interface {
	Stat(string) (os.FileInfo, error)
	Lstat(string) (os.FileInfo, error)
	ReadDir(string) ([]os.FileInfo, error)
	RealPath(string) (string, error)
}

// SFTPFileSystem implements scanner.FileSystem over SFTP. Remote stat data
// carries no device or inode numbers, so every file counts as first
// observed, and disk usage is estimated from the server's block size.
type SFTPFileSystem struct {
	client    client
	closer    io.Closer
	blockSize uint64
}

func newFileSystem(c client, closer io.Closer, blockSize uint64) *SFTPFileSystem {
	if blockSize == 0 {
		blockSize = defaultBlockSize
	}
	return &SFTPFileSystem{client: c, closer: closer, blockSize: blockSize}
}

// Stat follows symlinks.
func (f *SFTPFileSystem) Stat(name string) (fs.FileInfo, error) {
	return f.client.Stat(cleanRemotePath(name))
}

// Lstat does not follow symlinks.
func (f *SFTPFileSystem) Lstat(name string) (fs.FileInfo, error) {
	return f.client.Lstat(cleanRemotePath(name))
}

// ReadDir lists a directory. SFTP listings carry lstat attributes, so the
// entries' Info never follows symlinks.
func (f *SFTPFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := f.client.ReadDir(cleanRemotePath(name))
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

// Join uses POSIX separators regardless of the local OS.
func (f *SFTPFileSystem) Join(elem ...string) string {
	return pathpkg.Join(elem...)
}

// Canonical asks the server to resolve name.
func (f *SFTPFileSystem) Canonical(name string) (string, error) {
	resolved, err := f.client.RealPath(cleanRemotePath(name))
	if err != nil {
		return "", err
	}
	return cleanRemotePath(resolved), nil
}

// EstimateUsage rounds the apparent size up to whole server blocks.
func (f *SFTPFileSystem) EstimateUsage(info fs.FileInfo) uint64 {
	size := info.Size()
	if size <= 0 {
		return 0
	}
	blocks := (uint64(size) + f.blockSize - 1) / f.blockSize
	return blocks * f.blockSize
}

// BlockSize returns the block size used for usage estimates.
func (f *SFTPFileSystem) BlockSize() uint64 {
	return f.blockSize
}

// Close ends the SFTP session and the SSH connection.
func (f *SFTPFileSystem) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func cleanRemotePath(p string) string {
	if strings.TrimSpace(p) == "" {
		return defaultRemotePath
	}
	return pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// probeBlockSize reads the fragment size of the filesystem holding p,
// falling back to the default when the server lacks statvfs.
func probeBlockSize(c client, p string) uint64 {
	vfs, ok := c.(interface {
		StatVFS(path string) (*sftp.StatVFS, error)
	})
	if !ok {
		return defaultBlockSize
	}
	stat, err := vfs.StatVFS(p)
	if err != nil || stat == nil {
		return defaultBlockSize
	}
	if stat.Frsize > 0 {
		return stat.Frsize
	}
	if stat.Bsize > 0 {
		return stat.Bsize
	}
	return defaultBlockSize
}
