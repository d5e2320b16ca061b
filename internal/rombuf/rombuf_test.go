package rombuf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brinkforge/gba-batteryless/internal/rombuf"
)

func TestLoadPadsMisalignedRom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.gba")
	if err := os.WriteFile(path, make([]byte, 1000), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	buf, padded, err := rombuf.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !padded {
		t.Error("expected Load to report padding for a misaligned rom")
	}
	if buf.Size()%rombuf.SectorSize != 0 {
		t.Errorf("Size() = %#x, want a multiple of SectorSize", buf.Size())
	}
}

func TestLoadRejectsOversizedInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.gba")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(rombuf.Capacity + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	_, _, err = rombuf.Load(path)
	if err == nil {
		t.Fatal("expected Load to reject an oversized input")
	}
}

func TestIsUniform(t *testing.T) {
	if !rombuf.IsUniform([]byte{0xFF, 0xFF, 0xFF}, 0xFF) {
		t.Error("IsUniform should report true for a uniform slice")
	}
	if rombuf.IsUniform([]byte{0xFF, 0x00, 0xFF}, 0xFF) {
		t.Error("IsUniform should report false when a byte differs")
	}
	if !rombuf.IsUniform(nil, 0xFF) {
		t.Error("IsUniform should report true for an empty slice")
	}
}

func TestFindAllStrideAligned(t *testing.T) {
	data := make([]byte, 64)
	pattern := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	copy(data[8:], pattern)
	copy(data[40:], pattern)

	hits := rombuf.FindAllStrideAligned(data, pattern, 4)
	if len(hits) != 2 || hits[0] != 8 || hits[1] != 40 {
		t.Errorf("FindAllStrideAligned = %v, want [8 40]", hits)
	}
}

func TestFindSentinelAlignedIgnoresMisalignedMatch(t *testing.T) {
	data := make([]byte, 32)
	pattern := []byte{0x01, 0x02}
	// Place the pattern at an offset not reachable by a 4-byte stride.
	copy(data[2:], pattern)

	if got := rombuf.FindSentinelAligned(data, pattern); got != -1 {
		t.Errorf("FindSentinelAligned = %d, want -1 for a misaligned-only match", got)
	}
}
