// Package payload describes the structured header contract between the
// patcher and the embedded ARM/Thumb payload blob. The payload itself is
// produced by an external build step (an assembler plus a byte-array
// generator) and is never interpreted here beyond its eight-word header.
package payload

import "encoding/binary"

// Field indexes one of the eight little-endian 32-bit words that make up
// the payload header (the first 32 bytes of Blob).
type Field int

const (
	// OriginalEntrypointAddr is written by the patcher: the absolute
	// address of the ROM's original entrypoint, so the payload can
	// jump back to it once save state is ready.
	OriginalEntrypointAddr Field = iota
	// FlushMode is written by the patcher. Currently always 0.
	FlushMode
	// SaveSize is written by the patcher, in bytes.
	SaveSize
	// PatchedEntrypoint is read by the patcher: offset of the
	// payload's entry routine.
	PatchedEntrypoint
	// WriteSramPatched is read by the patcher: offset of the SRAM
	// write replacement.
	WriteSramPatched
	// WriteEepromPatched is read by the patcher: offset of the
	// EEPROM write replacement.
	WriteEepromPatched
	// WriteFlashPatched is read by the patcher: offset of the Flash
	// write replacement.
	WriteFlashPatched
	// WriteEepromV111Posthook is read by the patcher: offset of the
	// EEPROM v1.1.1 posthook.
	WriteEepromV111Posthook

	// HeaderWords is the number of 32-bit words in the header.
	HeaderWords = 8
	// HeaderSize is the size in bytes of the payload header.
	HeaderSize = HeaderWords * 4
)

// Offset returns the byte offset of f within the payload header.
func (f Field) Offset() int {
	return int(f) * 4
}

// Read returns the little-endian 32-bit value stored at f within blob.
// blob must be at least HeaderSize bytes long.
func Read(blob []byte, f Field) uint32 {
	off := f.Offset()
	return binary.LittleEndian.Uint32(blob[off : off+4])
}

// Write stores v as a little-endian 32-bit value at f within blob.
// blob must be at least HeaderSize bytes long.
func Write(blob []byte, f Field, v uint32) {
	off := f.Offset()
	binary.LittleEndian.PutUint32(blob[off:off+4], v)
}

// Sentinel is the byte string that marks an already-patched ROM. It is
// expected to appear somewhere inside Blob at a 4-byte-aligned offset.
var Sentinel = []byte("<3 from Maniac")
