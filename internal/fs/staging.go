package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Staging collects the files of one run in a hidden directory next to the
// destination and moves them into place only on Commit.
//
// Each file is published with a rename. A file already at the destination
// is first moved aside into the staging directory. If any rename fails, the
// files published so far are removed and the displaced ones are put back, so
// the destination keeps the previous outputs unchanged.
type Staging struct {
	fsys    FileSystem
	dest    string
	dir     string
	retired []string
	done    bool
}

// NewStaging creates the staging directory for dest.
func NewStaging(fsys FileSystem, dest string) (*Staging, error) {
	if fsys == nil {
		fsys = Default
	}
	dest = filepath.Clean(dest)
	parent := filepath.Dir(dest)
	if err := fsys.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	dir := filepath.Join(parent, "."+filepath.Base(dest)+".staging-"+uuid.NewString())
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Staging{fsys: fsys, dest: dest, dir: dir}, nil
}

// Dir returns the staging root.
func (s *Staging) Dir() string { return s.dir }

// Dest returns the final destination root.
func (s *Staging) Dest() string { return s.dest }

// FS returns the file system the staging area lives on.
func (s *Staging) FS() FileSystem { return s.fsys }

// Path returns the staging path for a destination-relative name and creates
// its parent directories.
func (s *Staging) Path(rel string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := s.fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	return p, nil
}

// Retire marks a destination-relative file or directory for removal by
// Commit. It is moved aside before any staged file is published and
// restored if Commit fails.
func (s *Staging) Retire(rel string) {
	s.retired = append(s.retired, rel)
}

// Files lists the staged files as destination-relative slash paths, sorted.
func (s *Staging) Files() ([]string, error) {
	var out []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := s.fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if rel == "" && name == prevDir {
				continue
			}
			r := name
			if rel != "" {
				r = rel + "/" + name
			}
			if e.IsDir() {
				if err := walk(filepath.Join(dir, name), r); err != nil {
					return err
				}
				continue
			}
			out = append(out, r)
		}
		return nil
	}
	if err := walk(s.dir, ""); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Commit publishes all staged files and removes the staging directory.
// It returns the published destination-relative paths.
func (s *Staging) Commit() ([]string, error) {
	if s.done {
		return nil, errors.New("fs: staging already finished")
	}
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var moves []move
	for _, rel := range s.retired {
		dst := filepath.Join(s.dest, filepath.FromSlash(rel))
		prev := filepath.Join(s.dir, prevDir, filepath.FromSlash(rel))
		if err := s.fsys.MkdirAll(filepath.Dir(prev), 0o755); err != nil {
			s.rollback(moves)
			return nil, err
		}
		switch err := s.fsys.Rename(dst, prev); {
		case err == nil:
			moves = append(moves, move{dst: dst, prev: prev, retired: true})
		case !errors.Is(err, os.ErrNotExist):
			s.rollback(moves)
			return nil, fmt.Errorf("fs: retire %s: %w", rel, err)
		}
	}

	for _, rel := range files {
		src := filepath.Join(s.dir, filepath.FromSlash(rel))
		dst := filepath.Join(s.dest, filepath.FromSlash(rel))
		if err := s.fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			s.rollback(moves)
			return nil, err
		}

		m := move{dst: dst}
		prev := filepath.Join(s.dir, prevDir, filepath.FromSlash(rel))
		if err := s.fsys.MkdirAll(filepath.Dir(prev), 0o755); err != nil {
			s.rollback(moves)
			return nil, err
		}
		switch err := s.fsys.Rename(dst, prev); {
		case err == nil:
			m.prev = prev
		case !errors.Is(err, os.ErrNotExist):
			s.rollback(moves)
			return nil, fmt.Errorf("fs: back up %s: %w", rel, err)
		}
		moves = append(moves, m)

		if err := s.fsys.Rename(src, dst); err != nil {
			moves[len(moves)-1].failed = true
			s.rollback(moves)
			return nil, fmt.Errorf("fs: publish %s: %w", rel, err)
		}
	}

	s.done = true
	syncDir(s.dest)
	_ = s.fsys.RemoveAll(s.dir)
	return files, nil
}

// Abort discards everything staged. Safe to call after Commit.
func (s *Staging) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.fsys.RemoveAll(s.dir)
}

// prevDir holds destination files displaced by Commit until it succeeds.
const prevDir = ".prev"

type move struct {
	dst     string
	prev    string // empty when dst did not exist
	failed  bool   // the new file never reached dst
	retired bool
}

// rollback undoes moves in reverse: new files are removed and displaced
// files are renamed back. If a restore fails the staging directory is kept,
// since it still holds the displaced file.
func (s *Staging) rollback(moves []move) {
	kept := false
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		switch {
		case m.retired:
			// Only directories left empty by undone publishes remain.
			_ = s.fsys.RemoveAll(m.dst)
		case !m.failed:
			_ = s.fsys.Remove(m.dst)
		}
		if m.prev == "" {
			continue
		}
		if err := s.fsys.Rename(m.prev, m.dst); err != nil {
			kept = true
		}
	}
	if kept {
		s.done = true
		return
	}
	_ = s.Abort()
}
