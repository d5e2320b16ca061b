//go:build !unix

package rombuf

import "os"

// fsync falls back to (*os.File).Sync on non-Unix platforms, where
// golang.org/x/sys/unix is unavailable.
func fsync(f *os.File) error {
	return f.Sync()
}
