// Package fingerprint provides a fast, diagnostic-only content digest for
// ROM buffers. It is never consulted for control flow — the patcher does
// not identify games by checksum — it exists purely so a build pipeline
// can log a short, stable identifier per invocation and confirm that
// patching the same input twice produces the same output.
package fingerprint

import "github.com/cespare/xxhash/v2"

// Of returns a short hex digest of data.
func Of(data []byte) string {
	sum := xxhash.Sum64(data)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexDigits[sum&0xF]
		sum >>= 4
	}
	return string(out)
}
