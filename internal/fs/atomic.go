package fs

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteFile writes filename through a temp file in the same directory and
// renames it into place, so readers never observe a partially written file.
func WriteFile(fsys FileSystem, filename string, writeFunc func(io.Writer) error) (err error) {
	if fsys == nil {
		fsys = Default
	}
	dir := filepath.Dir(filename)
	tmpName := filepath.Join(dir, "."+filepath.Base(filename)+".tmp-"+uuid.NewString()[:8])

	tmp, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err = writeFunc(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fsys.Rename(tmpName, filename); err != nil {
		return err
	}

	syncDir(dir)
	return nil
}

// syncDir fsyncs a directory so renames inside it are durable on POSIX.
// Best effort: not every platform supports it.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
