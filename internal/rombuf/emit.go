package rombuf

import (
	"fmt"
	"os"
	"path/filepath"
)

// Emit writes buf's live prefix to path: a temporary file is written in
// the destination directory, flushed and fsynced (see sync_unix.go /
// sync_other.go), then renamed into place, so a crash or power loss
// mid-write never leaves a truncated file at path. path must not already
// exist; the caller is responsible for removing a stale output first (the
// CLI wrapper does this via its -force flag).
func Emit(buf *Buffer, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("rombuf: emit: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("rombuf: emit: stat %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gbapatch-*.tmp")
	if err != nil {
		return fmt.Errorf("rombuf: emit: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Live()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("rombuf: emit: write: %w", err)
	}

	if err := fsync(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("rombuf: emit: fsync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rombuf: emit: close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rombuf: emit: rename into place: %w", err)
	}

	return nil
}
