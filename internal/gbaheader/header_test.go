package gbaheader_test

import (
	"errors"
	"testing"

	"github.com/brinkforge/gba-batteryless/internal/gbaheader"
)

func TestEntrypointAddressRoundTrip(t *testing.T) {
	rom := make([]byte, 16)
	gbaheader.EncodeBranch(rom, 0x08001000)

	got, err := gbaheader.EntrypointAddress(rom)
	if err != nil {
		t.Fatalf("EntrypointAddress: %v", err)
	}
	if got != 0x08001000 {
		t.Errorf("EntrypointAddress = %#x, want %#x", got, 0x08001000)
	}
}

func TestEntrypointAddressRejectsNonBranch(t *testing.T) {
	rom := make([]byte, 16)
	rom[3] = 0x00

	_, err := gbaheader.EntrypointAddress(rom)
	if !errors.Is(err, gbaheader.ErrBadEntrypoint) {
		t.Fatalf("EntrypointAddress err = %v, want ErrBadEntrypoint", err)
	}
}
