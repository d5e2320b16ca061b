package patcher_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/brinkforge/gba-batteryless/internal/patcher"
	"github.com/brinkforge/gba-batteryless/internal/payload"
	"github.com/brinkforge/gba-batteryless/internal/sigtable"
	"github.com/brinkforge/gba-batteryless/pkg/log"
)

const (
	romSize   = 0x80000 // two sectors
	irqOffset = 0x100
	sigOffset = 0x200
)

var oldIrqLiteral = []byte{0xFC, 0x7F, 0x00, 0x03}

// baseRom returns a two-sector ROM, entirely 0xFF except for a valid
// reset-vector branch opcode at byte 3 and the old IRQ literal at
// irqOffset. The second sector, and most of the first, are left
// virgin so installPayload has somewhere to land.
func baseRom() []byte {
	rom := make([]byte, romSize)
	for i := range rom {
		rom[i] = 0xFF
	}
	rom[0], rom[1], rom[2], rom[3] = 0x00, 0x00, 0x00, 0xEA
	copy(rom[irqOffset:irqOffset+4], oldIrqLiteral)
	return rom
}

func withSignature(rom []byte) []byte {
	copy(rom[sigOffset:sigOffset+len(sigtable.Catalog[0].Pattern)], sigtable.Catalog[0].Pattern)
	return rom
}

func writeRom(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture rom: %v", err)
	}
	return path
}

func newTestPatcher(opts ...patcher.Option) *patcher.Patcher {
	all := append([]patcher.Option{patcher.WithLogger(log.NewNull())}, opts...)
	return patcher.New(all...)
}

func TestPatchHappyPath(t *testing.T) {
	dir := t.TempDir()
	in := writeRom(t, dir, "game.gba", withSignature(baseRom()))
	out := filepath.Join(dir, "game.patched.gba")

	if err := newTestPatcher().Patch(in, out); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	patched, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(patched) != romSize {
		t.Fatalf("output size = %d, want %d", len(patched), romSize)
	}

	sentinelFound := false
	for i := 0; i+len(payload.Sentinel) <= len(patched); i += 4 {
		if string(patched[i:i+len(payload.Sentinel)]) == string(payload.Sentinel) {
			sentinelFound = true
			break
		}
	}
	if !sentinelFound {
		t.Error("output ROM does not contain the payload sentinel")
	}

	if string(patched[irqOffset:irqOffset+4]) == string(oldIrqLiteral) {
		t.Error("IRQ literal was not rewritten")
	}

	if patched[sigOffset] == sigtable.Catalog[0].Pattern[0] &&
		patched[sigOffset+1] == sigtable.Catalog[0].Pattern[1] {
		t.Error("signature match was not overwritten with a branch thunk")
	}
}

func TestPatchAlreadyPatched(t *testing.T) {
	dir := t.TempDir()
	rom := baseRom()
	copy(rom[0x1000:], payload.Sentinel)
	in := writeRom(t, dir, "game.gba", rom)
	out := filepath.Join(dir, "out.gba")

	err := newTestPatcher().Patch(in, out)
	if !errors.Is(err, patcher.ErrAlreadyPatched) {
		t.Fatalf("Patch err = %v, want ErrAlreadyPatched", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output should not be written on failure")
	}
}

func TestPatchNoIrqReference(t *testing.T) {
	dir := t.TempDir()
	rom := baseRom()
	zeroOut(rom[irqOffset : irqOffset+4])
	in := writeRom(t, dir, "game.gba", rom)
	out := filepath.Join(dir, "out.gba")

	err := newTestPatcher().Patch(in, out)
	if !errors.Is(err, patcher.ErrNoIrqReference) {
		t.Fatalf("Patch err = %v, want ErrNoIrqReference", err)
	}
}

func TestPatchNoWriteRoutineFailsWithoutAutoMode(t *testing.T) {
	dir := t.TempDir()
	in := writeRom(t, dir, "game.gba", baseRom())
	out := filepath.Join(dir, "out.gba")

	err := newTestPatcher().Patch(in, out)
	if !errors.Is(err, patcher.ErrNoWriteRoutine) {
		t.Fatalf("Patch err = %v, want ErrNoWriteRoutine", err)
	}
}

func TestPatchNoWriteRoutineDefaultsInAutoMode(t *testing.T) {
	dir := t.TempDir()
	in := writeRom(t, dir, "game.gba", baseRom())
	out := filepath.Join(dir, "out.gba")

	if err := newTestPatcher(patcher.WithAutoMode()).Patch(in, out); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file, got %v", err)
	}
}

func TestPatchBadEntrypoint(t *testing.T) {
	dir := t.TempDir()
	rom := baseRom()
	rom[3] = 0x00 // not the ARM branch opcode
	in := writeRom(t, dir, "game.gba", rom)
	out := filepath.Join(dir, "out.gba")

	err := newTestPatcher().Patch(in, out)
	if !errors.Is(err, patcher.ErrBadEntrypoint) {
		t.Fatalf("Patch err = %v, want ErrBadEntrypoint", err)
	}
}

func TestPatchCannotInstallPayloadWhenRomIsFullAndNonVirgin(t *testing.T) {
	dir := t.TempDir()
	rom := baseRom()
	// Fill the entire ROM with a non-uniform, non-virgin pattern so no
	// candidate region exists, and there's no room left to grow into.
	for i := range rom {
		rom[i] = byte(i%251 + 1)
	}
	rom[0], rom[1], rom[2], rom[3] = 0x00, 0x00, 0x00, 0xEA
	copy(rom[irqOffset:irqOffset+4], oldIrqLiteral)

	full := make([]byte, rombufCapacityMinusOneSector())
	copy(full, rom)
	for i := len(rom); i < len(full); i++ {
		full[i] = byte(i%251 + 1)
	}

	in := writeRom(t, dir, "game.gba", full)
	out := filepath.Join(dir, "out.gba")

	err := newTestPatcher().Patch(in, out)
	if !errors.Is(err, patcher.ErrCannotInstallPayload) {
		t.Fatalf("Patch err = %v, want ErrCannotInstallPayload", err)
	}
}

// rombufCapacityMinusOneSector mirrors rombuf.Capacity-rombuf.SectorSize;
// kept as a literal so this test doesn't need to import rombuf just for
// two constants.
func rombufCapacityMinusOneSector() int {
	return 0x02000000 - 0x40000
}

func zeroOut(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
