package hashengine

// Result is a verifier backend's output for one chunk: the minimum
// deadline found and the nonce that produced it.
type Result struct {
	MinDeadline uint64
	MinNonce    uint64
	AccountID   uint64
	Height      uint64
}

// Backend is the uniform contract every verifier implementation satisfies.
// All backends must be bit-identical in their minimum selection for
// identical inputs; only throughput differs between them.
type Backend interface {
	// Name identifies the backend for logging (e.g. "scalar", "avx2", "neon").
	Name() string
	// Verify computes, for each of count nonces starting at startingNonce,
	// the deadline derived from scoopBytes[i*ScoopSize:(i+1)*ScoopSize], and
	// returns the minimum.
	Verify(gensig [32]byte, scoopBytes []byte, startingNonce, count, baseTarget, accountID, height uint64) Result
}

// verify is the shared scan shared by every backend variant: it differs
// only in how many nonces are processed per logical iteration (batchWidth),
// which is cosmetic here since the underlying hash call is scalar; real
// SIMD kernels would replace this loop body with vector instructions
// per-architecture, which is out of reach without an assembly backend in
// the dependency set this repo draws from.
func verify(name string, batchWidth int, gensig [32]byte, scoopBytes []byte, startingNonce, count, baseTarget, accountID, height uint64) Result {
	var minDeadline uint64
	var minNonce uint64
	first := true

	for i := uint64(0); i < count; i += uint64(batchWidth) {
		end := i + uint64(batchWidth)
		if end > count {
			end = count
		}
		for j := i; j < end; j++ {
			off := j * ScoopSize
			slice := scoopBytes[off : off+ScoopSize]
			d := Deadline(gensig, slice, baseTarget)
			if first || d < minDeadline {
				minDeadline = d
				minNonce = startingNonce + j
				first = false
			}
		}
	}

	return Result{
		MinDeadline: minDeadline,
		MinNonce:    minNonce,
		AccountID:   accountID,
		Height:      height,
	}
}
