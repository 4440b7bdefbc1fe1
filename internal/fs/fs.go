package fs

import (
	"io"
	"os"
)

// File is an open output or staged file.
type File interface {
	io.ReadWriteCloser
	Sync() error
}

// FileSystem is the set of operations needed to stage and publish outputs.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
}

// OS is the local file system.
type OS struct{}

func (OS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }
func (OS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OS) Remove(name string) error                     { return os.Remove(name) }
func (OS) RemoveAll(path string) error                  { return os.RemoveAll(path) }

// Default is used when a nil FileSystem is passed.
var Default FileSystem = OS{}

// Open opens name for reading on fsys.
func Open(fsys FileSystem, name string) (File, error) {
	if fsys == nil {
		fsys = Default
	}
	return fsys.OpenFile(name, os.O_RDONLY, 0)
}
