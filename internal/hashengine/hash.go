// Package hashengine implements the opaque per-scoop hash primitive and the
// interchangeable verifier backends (scalar and SIMD-width) built on it. No
// GPU backend is built; Select falls back to scalar for CUDA/OPENCL.
package hashengine

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// ScoopSize is the size in bytes of one nonce's scoop slice.
const ScoopSize = 64

// H is the opaque hash primitive: H(gensig, scoop_bytes) -> 8 bytes. The
// source currency's primitive is Shabal-based and treated as opaque by
// design; this repo substitutes blake3 as the concrete instantiation,
// keyed by the generation signature so that distinct challenges are
// independent. A single blake3 call is enough here — this is not the
// currency's own memory-hard proof-of-work construction, just a per-nonce
// scoop digest that must run cheaply, many millions of times per round.
func H(gensig [32]byte, scoopBytes []byte) [8]byte {
	h := blake3.New()
	h.Write(gensig[:])
	h.Write(scoopBytes)
	sum := h.Sum(nil)

	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// DeadlineFromHash converts an 8-byte hash output into a deadline in
// seconds: u64_bigendian / baseTarget. A zero baseTarget has no meaningful
// deadline; callers must not pass one.
func DeadlineFromHash(h [8]byte, baseTarget uint64) uint64 {
	v := binary.BigEndian.Uint64(h[:])
	if baseTarget == 0 {
		return v
	}
	return v / baseTarget
}

// Deadline computes the deadline for a single nonce's scoop slice.
func Deadline(gensig [32]byte, scoopBytes []byte, baseTarget uint64) uint64 {
	return DeadlineFromHash(H(gensig, scoopBytes), baseTarget)
}
