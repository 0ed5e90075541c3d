package migration

import (
	"os"

	"reshelve/internal/fileutil"
)

// FS is the set of mutating filesystem calls the executor issues. Tests
// substitute it to inject failures.
type FS interface {
	Rename(src, dst string) error
	Mkdir(path string, perm os.FileMode) error
	Remove(path string) error
	Lstat(path string) (os.FileInfo, error)
}

// OSFS is the real filesystem.
type OSFS struct{}

// Rename moves a folder. Cross-device moves fail instead of copying.
func (OSFS) Rename(src, dst string) error { return fileutil.Rename(src, dst) }

func (OSFS) Mkdir(path string, perm os.FileMode) error { return os.Mkdir(path, perm) }

func (OSFS) Remove(path string) error { return os.Remove(path) }

func (OSFS) Lstat(path string) (os.FileInfo, error) { return os.Lstat(path) }
