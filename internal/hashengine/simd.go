package hashengine

// simdBackend processes batchWidth nonces per logical iteration, matching
// the instruction set it is named after. The contract (§5.5 backend
// equivalence) only requires identical minimum selection, not identical
// instructions, so every width here still calls the same H/Deadline
// primitive; batchWidth only changes loop granularity.
type simdBackend struct {
	name       string
	batchWidth int
}

func (b simdBackend) Name() string { return b.name }

func (b simdBackend) Verify(gensig [32]byte, scoopBytes []byte, startingNonce, count, baseTarget, accountID, height uint64) Result {
	return verify(b.name, b.batchWidth, gensig, scoopBytes, startingNonce, count, baseTarget, accountID, height)
}

// SSE2Backend processes 4 nonces per iteration.
func SSE2Backend() Backend { return simdBackend{name: "sse2", batchWidth: 4} }

// SSE4Backend processes 4 nonces per iteration with the SSE4 nonce path.
func SSE4Backend() Backend { return simdBackend{name: "sse4", batchWidth: 4} }

// AVXBackend processes 8 nonces per iteration.
func AVXBackend() Backend { return simdBackend{name: "avx", batchWidth: 8} }

// AVX2Backend processes 16 nonces per iteration.
func AVX2Backend() Backend { return simdBackend{name: "avx2", batchWidth: 16} }

// NEONBackend processes 4 nonces per iteration on arm64.
func NEONBackend() Backend { return simdBackend{name: "neon", batchWidth: 4} }
