// Package rombuf implements the fixed-capacity ROM Buffer the patcher
// operates on: loading a ROM image (optionally unwrapping a surrounding
// archive), scanning it for a stride-aligned byte pattern, and emitting
// the patched result durably to disk.
package rombuf

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Capacity is the largest ROM this buffer can hold: 32 MiB, the GBA's
// full cartridge address space.
const Capacity = 0x02000000

// SectorSize is the alignment boundary used throughout the patcher for
// save-data sectors and payload-search steps.
const SectorSize = 0x40000

// Buffer is a fixed-capacity byte array mapped to GBA address space
// starting at 0x08000000. Size tracks the meaningful prefix; bytes past
// Size remain 0xFF (their initialized value) and are never emitted.
type Buffer struct {
	data []byte
	size int
}

// New returns an empty Buffer, fully initialized to 0xFF.
func New() *Buffer {
	data := make([]byte, Capacity)
	for i := range data {
		data[i] = 0xFF
	}
	return &Buffer{data: data}
}

// Bytes returns the full backing array (length Capacity). Callers should
// generally prefer Live, which is scoped to Size.
func (b *Buffer) Bytes() []byte { return b.data }

// Live returns the meaningful prefix of the buffer, data[0:Size()].
func (b *Buffer) Live() []byte { return b.data[:b.size] }

// Size returns the logical length of the loaded/patched ROM.
func (b *Buffer) Size() int { return b.size }

// Grow extends Size by n bytes. The newly included bytes are already
// 0xFF from New's initialization. Grow panics if the new size would
// exceed Capacity; callers must check CanGrow first.
func (b *Buffer) Grow(n int) {
	if b.size+n > Capacity {
		panic("rombuf: grow exceeds capacity")
	}
	b.size += n
}

// CanGrow reports whether Grow(n) would succeed.
func (b *Buffer) CanGrow(n int) bool {
	return b.size+n <= Capacity
}

// AlignmentPadding reports, for a file of the given size, how many bytes
// Load will pad Size() up to if size isn't already a SectorSize
// multiple. It returns 0 when no padding is needed.
func AlignmentPadding(size int) int {
	if size&(SectorSize-1) == 0 {
		return 0
	}
	aligned := (size | (SectorSize - 1)) + 1
	return aligned - size
}

// Load reads path into a fresh Buffer, transparently unwrapping a
// surrounding .zip, .7z, or .gz archive first (the first entry of a
// .zip/.7z archive is used). It reports whether the resulting ROM size
// required alignment padding, via padded.
func Load(path string) (buf *Buffer, padded bool, err error) {
	raw, err := readSource(path)
	if err != nil {
		return nil, false, fmt.Errorf("rombuf: load %s: %w", path, err)
	}

	if len(raw) > Capacity {
		return nil, false, ErrRomTooLarge
	}

	buf = New()
	copy(buf.data, raw)
	buf.size = len(raw)

	if pad := AlignmentPadding(buf.size); pad > 0 {
		buf.size += pad
		padded = true
	}

	return buf, padded, nil
}

// ErrRomTooLarge is returned by Load when the input exceeds Capacity.
var ErrRomTooLarge = fmt.Errorf("rombuf: input exceeds %d bytes (not a GBA ROM?)", Capacity)

// readSource reads path and, based on its extension, transparently
// decompresses a single-file archive wrapped around the ROM image.
func readSource(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)

	case ".zip":
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(f, fi.Size())
		if err != nil {
			return nil, fmt.Errorf("zip: %w", err)
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("zip: archive is empty")
		}
		return readZipEntry(zr.File[0])

	case ".7z":
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		sr, err := sevenzip.NewReader(f, fi.Size())
		if err != nil {
			return nil, fmt.Errorf("7z: %w", err)
		}
		if len(sr.File) == 0 {
			return nil, fmt.Errorf("7z: archive is empty")
		}
		rc, err := sr.File[0].Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)

	default:
		return io.ReadAll(f)
	}
}

func readZipEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FindSentinelAligned scans data at a 4-byte stride for pattern and
// returns the first matching offset, or -1 if absent. Using a 1-byte
// stride here would find coincidental matches misaligned with the
// payload's actual layout; callers must use this, not bytes.Index.
func FindSentinelAligned(data, pattern []byte) int {
	return findStrideAligned(data, pattern, 4)
}

// findStrideAligned scans data for pattern at the given byte stride,
// returning the first matching offset or -1.
func findStrideAligned(data, pattern []byte, stride int) int {
	if len(pattern) == 0 || len(data) < len(pattern) {
		return -1
	}
	last := len(data) - len(pattern)
	for i := 0; i <= last; i += stride {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

// IsUniform reports whether every byte in data equals value.
func IsUniform(data []byte, value byte) bool {
	for _, b := range data {
		if b != value {
			return false
		}
	}
	return true
}

// FindAllStrideAligned returns every offset in data where pattern
// matches at the given stride.
func FindAllStrideAligned(data, pattern []byte, stride int) []int {
	var hits []int
	if len(pattern) == 0 || len(data) < len(pattern) {
		return hits
	}
	last := len(data) - len(pattern)
	for i := 0; i <= last; i += stride {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			hits = append(hits, i)
		}
	}
	return hits
}
