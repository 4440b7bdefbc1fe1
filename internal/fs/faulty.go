package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by a Fault without its own Err.
var ErrInjected = errors.New("fs: injected fault")

// Fault selects which operations on a matching path fail.
type Fault struct {
	FailOnWrite bool
	// FailAfterBytes fails the write that would grow the file past this
	// size. Zero disables it.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	// FailOnRename matches against the rename destination.
	FailOnRename bool
	// Limit caps how often the fault fires. Zero means every time.
	Limit int
	Err   error
}

type rule struct {
	substr string
	fault  Fault
	fired  int
}

// FaultyFS wraps a FileSystem and fails operations on paths containing a
// registered substring. The first matching rule wins.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules []*rule
	hits  int
}

// NewFaultyFS wraps inner, or Default when inner is nil.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}
	return &FaultyFS{FS: inner}
}

// AddRule registers fault for every path containing substr.
func (f *FaultyFS) AddRule(substr string, fault Fault) {
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{substr: substr, fault: fault})
}

// Hits returns how many faults have been injected.
func (f *FaultyFS) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func (f *FaultyFS) lookup(name string) *rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if strings.Contains(name, r.substr) {
			return r
		}
	}
	return nil
}

// fire reports the rule's error, or nil once its limit is used up.
func (f *FaultyFS) fire(r *rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.fault.Limit > 0 && r.fired >= r.fault.Limit {
		return nil
	}
	r.fired++
	f.hits++
	return r.fault.Err
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if r := f.lookup(name); r != nil {
		return &faultyFile{File: file, fs: f, rule: r}, nil
	}
	return file, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if r := f.lookup(newpath); r != nil && r.fault.FailOnRename {
		if err := f.fire(r); err != nil {
			return err
		}
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error)   { return f.FS.ReadDir(name) }
func (f *FaultyFS) Remove(name string) error                     { return f.FS.Remove(name) }
func (f *FaultyFS) RemoveAll(path string) error                  { return f.FS.RemoveAll(path) }

type faultyFile struct {
	File
	fs      *FaultyFS
	rule    *rule
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	fault := ff.rule.fault
	if fault.FailOnWrite ||
		(fault.FailAfterBytes > 0 && ff.written+int64(len(p)) > fault.FailAfterBytes) {
		if err := ff.fs.fire(ff.rule); err != nil {
			return 0, err
		}
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.rule.fault.FailOnSync {
		if err := ff.fs.fire(ff.rule); err != nil {
			return err
		}
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if ff.rule.fault.FailOnClose {
		if ferr := ff.fs.fire(ff.rule); ferr != nil {
			return ferr
		}
	}
	return err
}
