package patcher

import "github.com/brinkforge/gba-batteryless/pkg/log"

// Option configures a Patcher. The pattern mirrors the functional-options
// style used for GameBoy construction in this module's emulator lineage.
type Option func(p *Patcher)

// WithLogger overrides the default logrus-backed logger.
func WithLogger(l log.Logger) Option {
	return func(p *Patcher) {
		p.log = l
	}
}

// WithAutoMode makes Patch tolerate finding no save-routine signature:
// instead of returning ErrNoWriteRoutine it logs a warning and proceeds
// with a default 128 KiB save size.
func WithAutoMode() Option {
	return func(p *Patcher) {
		p.autoMode = true
	}
}

// WithFingerprint enables xxhash content-fingerprint logging of the
// input and output ROM buffers, purely as a diagnostic aid (never
// consulted for control flow).
func WithFingerprint() Option {
	return func(p *Patcher) {
		p.fingerprint = true
	}
}

// WithPayload overrides the embedded payload blob. Exposed for testing:
// production callers should rely on the default, which is the payload
// compiled into this binary.
func WithPayload(blob []byte) Option {
	return func(p *Patcher) {
		p.payload = blob
	}
}
