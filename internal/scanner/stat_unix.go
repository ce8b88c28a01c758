//go:build !windows

package scanner

import (
	"io/fs"
	"syscall"
)

// IdentityOf extracts the (device, inode) identity and link count from
// platform stat data. ok is false when the info carries no stat data, for
// example when it comes from a remote provider.
func IdentityOf(info fs.FileInfo) (id Identity, nlink uint64, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, 0, false
	}
	return Identity{Dev: uint64(stat.Dev), Ino: stat.Ino}, uint64(stat.Nlink), true
}

// diskUsage returns allocated bytes (blocks are 512-byte units).
func diskUsage(info fs.FileInfo) (uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat.Blocks < 0 {
		return 0, false
	}
	return uint64(stat.Blocks) * 512, true
}

// identityByPath is not needed where stat data carries the identity.
func identityByPath(string, fs.FileInfo) (Identity, uint64, bool) {
	return Identity{}, 0, false
}
