// Package gbaheader deals with the first four bytes of a GBA ROM: the ARM
// branch instruction the CPU executes on reset. Everything else in the
// 0xC0-byte GBA header (title, maker code, complement checksum) is outside
// this module's scope; the complement checksum in particular is never
// recomputed, since the hardware doesn't enforce it for loaders in practice.
package gbaheader

import "fmt"

// BranchOpcode is the high byte of an ARM unconditional branch (B)
// instruction. A valid GBA ROM's reset vector is a B instruction, so
// rom[3] must equal this value.
const BranchOpcode = 0xEA

// EntrypointBase is the address the CPU is at when it evaluates the
// reset vector's PC-relative branch offset (0x08000000 + 8, the usual
// ARM two-stage-pipeline fetch/decode offset).
const EntrypointBase = 0x08000008

// RomBase is the address at which a GBA ROM is mapped into CPU address
// space.
const RomBase = 0x08000000

// ErrBadEntrypoint is returned when rom[3] is not BranchOpcode.
var ErrBadEntrypoint = fmt.Errorf("gbaheader: byte 3 is not an ARM branch opcode (0x%02X)", BranchOpcode)

// EntrypointAddress decodes the 24-bit branch offset packed into the
// first three bytes of rom and returns the absolute address it targets.
// rom must be at least 4 bytes long and rom[3] must equal BranchOpcode.
func EntrypointAddress(rom []byte) (uint32, error) {
	if rom[3] != BranchOpcode {
		return 0, ErrBadEntrypoint
	}
	offset := uint32(rom[0]) | uint32(rom[1])<<8 | uint32(rom[2])<<16
	return RomBase + 8 + (offset << 2), nil
}

// EncodeBranch packs target into a B instruction reachable from
// EntrypointBase and writes it into rom[0:4]. target must be word-aligned
// and within the 24-bit signed range reachable from EntrypointBase; both
// hold by construction when target lands inside an installed payload
// (payloads are well under the 32 MiB addressable span).
func EncodeBranch(rom []byte, target uint32) {
	fieldOffset := (target - EntrypointBase) >> 2
	instruction := uint32(BranchOpcode)<<24 | (fieldOffset & 0x00FFFFFF)
	rom[0] = byte(instruction)
	rom[1] = byte(instruction >> 8)
	rom[2] = byte(instruction >> 16)
	rom[3] = byte(instruction >> 24)
}
