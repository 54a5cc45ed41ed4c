package hashengine

// ScalarBackend is the always-available fallback: one nonce per iteration.
type ScalarBackend struct{}

func (ScalarBackend) Name() string { return "scalar" }

func (ScalarBackend) Verify(gensig [32]byte, scoopBytes []byte, startingNonce, count, baseTarget, accountID, height uint64) Result {
	return verify("scalar", 1, gensig, scoopBytes, startingNonce, count, baseTarget, accountID, height)
}
