//go:build unix

package rombuf

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync forces f's contents to stable storage via the raw fsync(2) call,
// rather than relying on (*os.File).Sync alone, which on some platforms
// only flushes to the OS page cache's durability guarantees as seen by
// the Go runtime's wrapper. golang.org/x/sys/unix gives direct access to
// the syscall.
func fsync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
