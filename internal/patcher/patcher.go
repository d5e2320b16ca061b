// Package patcher implements the batteryless-save ROM transformation:
// it loads a GBA ROM, verifies it hasn't already been patched, relocates
// the game's IRQ vector, installs the
// embedded payload into a virgin region of the ROM (expanding it if
// necessary), redirects the boot entrypoint into the payload, and
// trampolines every recognized save routine into the payload's
// replacements.
//
// The seven phases below run in a fixed order — Load, SentinelCheck,
// IrqRewrite, PayloadInstall, EntrypointRedirect, SignatureScan, Emit —
// because later phases depend on state earlier ones establish (the
// payload's installed base address, its populated header fields).
package patcher

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/brinkforge/gba-batteryless/internal/fingerprint"
	"github.com/brinkforge/gba-batteryless/internal/gbaheader"
	"github.com/brinkforge/gba-batteryless/internal/payload"
	"github.com/brinkforge/gba-batteryless/internal/rombuf"
	"github.com/brinkforge/gba-batteryless/internal/sigtable"
	"github.com/brinkforge/gba-batteryless/pkg/log"
)

// DefaultAutoSaveSize is the save size assumed in auto-mode when no
// signature matches anywhere in the ROM.
const DefaultAutoSaveSize = 0x20000

var (
	oldIrqLiteral = []byte{0xFC, 0x7F, 0x00, 0x03}
	newIrqLiteral = []byte{0xF4, 0x7F, 0x00, 0x03}
)

// Patcher holds per-invocation configuration. It carries no mutable
// state between calls to Patch; every invocation allocates its own ROM
// buffer, so two Patchers (or repeated calls to the same one) never
// interfere with each other.
type Patcher struct {
	log         log.Logger
	autoMode    bool
	fingerprint bool
	payload     []byte
}

// New returns a Patcher configured by opts, using the payload compiled
// into this binary unless overridden with WithPayload.
func New(opts ...Option) *Patcher {
	p := &Patcher{
		log:     log.New("info"),
		payload: payload.Blob,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Patch loads romPath, applies the batteryless-save transformation, and
// writes the result to outPath. outPath must not already exist.
func (p *Patcher) Patch(romPath, outPath string) error {
	buf, padded, err := rombuf.Load(romPath)
	if err != nil {
		if errors.Is(err, rombuf.ErrRomTooLarge) {
			return newErr(RomTooLarge, romPath, err)
		}
		return newErr(IoFailure, "loading "+romPath, err)
	}
	if padded {
		p.log.Infof("ROM has been trimmed and is misaligned. Padding to 256KB alignment")
	}

	if p.fingerprint {
		p.log.Infof("input fingerprint %s", fingerprint.Of(buf.Live()))
	}

	if err := p.sentinelCheck(buf); err != nil {
		return err
	}

	if err := p.rewriteIrq(buf); err != nil {
		return err
	}

	base, err := p.installPayload(buf)
	if err != nil {
		return err
	}

	if err := p.redirectEntrypoint(buf, base); err != nil {
		return err
	}

	if err := p.scanSignatures(buf, base); err != nil {
		return err
	}

	if err := rombuf.Emit(buf, outPath); err != nil {
		return newErr(IoFailure, "writing "+outPath, err)
	}

	if p.fingerprint {
		p.log.Infof("output fingerprint %s", fingerprint.Of(buf.Live()))
	}

	p.log.Infof("Patched successfully. Changes written to %s", outPath)
	return nil
}

// sentinelCheck fails with AlreadyPatched if the payload's sentinel
// string is already present at a 4-aligned offset in the ROM.
func (p *Patcher) sentinelCheck(buf *rombuf.Buffer) error {
	if rombuf.FindSentinelAligned(buf.Live(), payload.Sentinel) >= 0 {
		return newErr(AlreadyPatched, "sentinel already present", nil)
	}
	return nil
}

// rewriteIrq relocates every occurrence of the game's IRQ handler
// address literal so the payload can interpose on interrupts.
func (p *Patcher) rewriteIrq(buf *rombuf.Buffer) error {
	live := buf.Live()
	hits := rombuf.FindAllStrideAligned(live, oldIrqLiteral, 4)
	if len(hits) == 0 {
		return newErr(NoIrqReference, "no reference to the IRQ handler address; is this ROM already patched?", nil)
	}
	for _, off := range hits {
		p.log.Infof("Found a reference to the IRQ handler address at %#x, patching", off)
		copy(live[off:off+4], newIrqLiteral)
	}
	return nil
}

// installPayload finds (or makes) room for the payload immediately
// before a sector boundary and copies it in, returning its base offset.
func (p *Patcher) installPayload(buf *rombuf.Buffer) (int, error) {
	payloadLen := len(p.payload)

	base, found := findVirginRegion(buf, payloadLen)
	if !found {
		if !buf.CanGrow(0x80000) {
			return 0, newErr(CannotInstallPayload, "no virgin region and ROM is already at capacity", nil)
		}
		p.log.Infof("Expanding ROM")
		buf.Grow(0x80000)
		base = buf.Size() - rombuf.SectorSize - payloadLen
	}

	p.log.Infof("Installing payload at offset %#x, save file stored at %#x", base, base+payloadLen)

	live := buf.Live()
	copy(live[base:base+payloadLen], p.payload)
	payload.Write(live[base:], payload.FlushMode, 0)

	return base, nil
}

// findVirginRegion searches backward in SectorSize steps for a region
// of payloadLen+SectorSize bytes that is uniformly 0x00 or uniformly
// 0xFF, immediately preceding a sector boundary.
func findVirginRegion(buf *rombuf.Buffer, payloadLen int) (base int, found bool) {
	live := buf.Live()
	regionLen := rombuf.SectorSize + payloadLen

	for base = buf.Size() - regionLen; base >= 0; base -= rombuf.SectorSize {
		region := live[base : base+regionLen]
		if rombuf.IsUniform(region, 0x00) || rombuf.IsUniform(region, 0xFF) {
			return base, true
		}
	}
	return 0, false
}

// redirectEntrypoint records the ROM's original entrypoint in the
// installed payload's header and rewrites the ROM's reset vector to
// branch into the payload's declared entry routine.
func (p *Patcher) redirectEntrypoint(buf *rombuf.Buffer, base int) error {
	live := buf.Live()

	origAddr, err := gbaheader.EntrypointAddress(live)
	if err != nil {
		return newErr(BadEntrypoint, "rom[3] is not an ARM branch opcode", err)
	}
	payload.Write(live[base:], payload.OriginalEntrypointAddr, origAddr)

	entryOffset := payload.Read(live[base:], payload.PatchedEntrypoint)
	newAddr := gbaheader.RomBase + uint32(base) + entryOffset
	gbaheader.EncodeBranch(live, newAddr)

	return nil
}

// scanSignatures walks the ROM looking for known save-routine byte
// patterns and trampolines each match into the payload. If more than
// one routine is found, the payload's SaveSize header slot ends up
// holding whichever one was matched last in the scan — this mirrors
// the reference implementation's behavior and is not corrected, since
// over-declaring a save size is harmless to the payload.
func (p *Patcher) scanSignatures(buf *rombuf.Buffer, base int) error {
	live := buf.Live()
	found := false

	limit := len(live) - 64
	for writeLoc := 0; writeLoc < limit; {
		sig, ok := matchAt(live, writeLoc)
		if !ok {
			writeLoc += 2
			continue
		}

		found = true
		p.log.Infof("%s identified at offset %#x, patching", sig.Name, writeLoc)
		p.applySignature(live, base, writeLoc, sig)
		writeLoc += len(sig.Pattern)
	}

	if !found {
		if !p.autoMode {
			return newErr(NoWriteRoutine, "no known save routine found in this ROM", nil)
		}
		p.log.Warnf("Unsure what save type this is. Defaulting to 128KB save")
		payload.Write(live[base:], payload.SaveSize, DefaultAutoSaveSize)
	}

	return nil
}

func matchAt(live []byte, writeLoc int) (sigtable.Signature, bool) {
	for _, sig := range sigtable.Catalog {
		end := writeLoc + len(sig.Pattern)
		if end > len(live) {
			continue
		}
		if bytes.Equal(live[writeLoc:end], sig.Pattern) {
			return sig, true
		}
	}
	return sigtable.Signature{}, false
}

// applySignature rewrites the matched routine into a thunk that jumps
// into the payload's replacement, per the signature's Style, and
// records the declared save size.
func (p *Patcher) applySignature(live []byte, base, writeLoc int, sig sigtable.Signature) {
	targetOffset := payload.Read(live[base:], sig.TargetField)
	targetAddr := gbaheader.RomBase + uint32(base) + targetOffset

	switch sig.Style {
	case sigtable.ThumbHead:
		copy(live[writeLoc:writeLoc+4], sigtable.ThumbBranchThunk)
		binary.LittleEndian.PutUint32(live[writeLoc+4:writeLoc+8], targetAddr)
	case sigtable.ArmHead:
		copy(live[writeLoc:writeLoc+8], sigtable.ArmBranchThunk)
		binary.LittleEndian.PutUint32(live[writeLoc+8:writeLoc+12], targetAddr)
	case sigtable.EepromV111:
		copy(live[writeLoc+12:writeLoc+16], sigtable.EepromV111EpiloguePatch())
		binary.LittleEndian.PutUint32(live[writeLoc+44:writeLoc+48], targetAddr)
	}

	payload.Write(live[base:], payload.SaveSize, sig.SaveSize)
}
