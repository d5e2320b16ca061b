// Package sigtable is the static registry of byte-exact save-routine
// signatures the patcher knows how to trampoline into the payload, plus
// the two branch-thunk templates used to do so. It is pure data: all
// dispatch logic lives in the patcher package, keyed off the Style field.
package sigtable

import "github.com/brinkforge/gba-batteryless/internal/payload"

// Style selects how a Signature's match is rewritten.
type Style int

const (
	// ThumbHead overwrites the first 4 bytes of the match with the
	// Thumb branch thunk and writes the target address immediately
	// after it (write_loc+4).
	ThumbHead Style = iota
	// ArmHead overwrites the first 8 bytes of the match with the ARM
	// branch thunk and writes the target address immediately after
	// it (write_loc+8).
	ArmHead
	// EepromV111 is the one irregular entry: it leaves the head of
	// the match untouched and instead patches a 4-byte epilogue at
	// +12 and writes the target address at +44.
	EepromV111
)

// ThumbBranchThunk is "ldr r3, [pc, #0]; bx r3" — loads the literal that
// immediately follows it into r3 and jumps there, switching to whatever
// mode bit 0 of that literal encodes.
var ThumbBranchThunk = []byte{0x00, 0x4B, 0x18, 0x47}

// ArmBranchThunk is the ARM-encoded equivalent of ThumbBranchThunk:
// "ldr r3, [pc, #0]; bx r3".
var ArmBranchThunk = []byte{0x00, 0x30, 0x9F, 0xE5, 0x13, 0xFF, 0x2F, 0xE1}

// eepromV111EpiloguePatch replaces 4 bytes at offset +12 of a matched
// WriteEepromV111 routine with a short branch into the posthook.
var eepromV111EpiloguePatch = []byte{0x07, 0x49, 0x08, 0x47}

// EepromV111EpiloguePatch returns eepromV111EpiloguePatch. Exposed as a
// function, rather than the variable directly, so the patcher cannot
// accidentally mutate the shared slice in place.
func EepromV111EpiloguePatch() []byte {
	out := make([]byte, len(eepromV111EpiloguePatch))
	copy(out, eepromV111EpiloguePatch)
	return out
}

// Signature is one entry in the catalog: a byte-exact pattern, the save
// size (in bytes) it implies, which payload header field supplies the
// trampoline target, and the edit shape to apply on a match.
type Signature struct {
	Name       string
	Pattern    []byte
	SaveSize   uint32
	TargetField payload.Field
	Style      Style
}

// Save sizes implied by each signature's matched routine.
const (
	SizeEEPROM    = 0x2000
	SizeSRAM      = 0x8000
	SizeFlash64K  = 0x10000
	SizeFlash128K = 0x20000
)

// Catalog is the ordered list of known save-routine signatures. Order
// matters only in that it is the order signatures are *tried* at each
// scan position in the patcher's linear sweep; since every pattern here
// is unambiguous (no one pattern is a prefix of another), match order
// does not affect which routine is ultimately chosen at a given offset.
var Catalog = []Signature{
	{
		Name:     "WriteSram",
		Pattern:  []byte{0x30, 0xB5, 0x05, 0x1C, 0x0C, 0x1C, 0x13, 0x1C, 0x0B, 0x4A, 0x10, 0x88, 0x0B, 0x49, 0x08, 0x40},
		SaveSize: SizeSRAM,
		TargetField: payload.WriteSramPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteSram2",
		Pattern:  []byte{0x80, 0xB5, 0x83, 0xB0, 0x6F, 0x46, 0x38, 0x60, 0x79, 0x60, 0xBA, 0x60, 0x09, 0x48, 0x09, 0x49},
		SaveSize: SizeSRAM,
		TargetField: payload.WriteSramPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteSramFast",
		Pattern:  []byte{0x04, 0xC0, 0x90, 0xE4, 0x01, 0xC0, 0xC1, 0xE4, 0x2C, 0xC4, 0xA0, 0xE1, 0x01, 0xC0, 0xC1, 0xE4},
		SaveSize: SizeSRAM,
		TargetField: payload.WriteSramPatched,
		Style:       ArmHead,
	},
	{
		Name:     "WriteEeprom",
		Pattern:  []byte{0x70, 0xB5, 0x00, 0x04, 0x0A, 0x1C, 0x40, 0x0B, 0xE0, 0x21, 0x09, 0x05, 0x41, 0x18, 0x07, 0x31, 0x00, 0x23, 0x10, 0x78},
		SaveSize: SizeEEPROM,
		TargetField: payload.WriteEepromPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteFlash",
		Pattern:  []byte{0x70, 0xB5, 0x00, 0x03, 0x0A, 0x1C, 0xE0, 0x21, 0x09, 0x05, 0x41, 0x18, 0x01, 0x23, 0x1B, 0x03},
		SaveSize: SizeFlash64K,
		TargetField: payload.WriteFlashPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteFlash2",
		Pattern:  []byte{0x7C, 0xB5, 0x90, 0xB0, 0x00, 0x03, 0x0A, 0x1C, 0xE0, 0x21, 0x09, 0x05, 0x09, 0x18, 0x01, 0x23},
		SaveSize: SizeFlash64K,
		TargetField: payload.WriteFlashPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteFlash3",
		Pattern:  []byte{0xF0, 0xB5, 0x90, 0xB0, 0x0F, 0x1C, 0x00, 0x04, 0x04, 0x0C, 0x03, 0x48, 0x00, 0x68, 0x40, 0x89},
		SaveSize: SizeFlash128K,
		TargetField: payload.WriteFlashPatched,
		Style:       ThumbHead,
	},
	{
		Name:     "WriteEepromV111",
		Pattern:  []byte{0x0A, 0x88, 0x80, 0x21, 0x09, 0x06, 0x0A, 0x43, 0x02, 0x60, 0x07, 0x48, 0x00, 0x47, 0x00, 0x00},
		SaveSize: SizeEEPROM,
		TargetField: payload.WriteEepromV111Posthook,
		Style:       EepromV111,
	},
}
