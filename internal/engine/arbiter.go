package engine

import (
	"sync/atomic"
)

// Arbiter admits or rejects candidate deadlines against the current block.
// It is the single source of truth for "is this the best deadline seen so
// far for this account and block". Admission is single-writer per
// (account, block) via BlockData's internal mutex and must linearize across
// concurrently-calling verifiers; the arbiter itself holds no lock beyond
// the atomic load of the current block pointer.
type Arbiter struct {
	current atomic.Pointer[BlockData]
}

// NewArbiter creates an arbiter with no current block.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// SetCurrent publishes a new current BlockData. Only the round scheduler
// calls this.
func (a *Arbiter) SetCurrent(bd *BlockData) {
	a.current.Store(bd)
}

// Current returns the current BlockData, or nil if none has been published.
func (a *Arbiter) Current() *BlockData {
	return a.current.Load()
}

// AddDeadline applies the admission rules from the round scheduler's
// perspective: height filter, no-current-block error, compare-and-install,
// target-deadline filter. A nil SubmissionHandle with a nil
// NonceConfirmation means "not strictly better than the recorded best" —
// a silent drop with no confirmation kind, per design.
func (a *Arbiter) AddDeadline(d Deadline) (*SubmissionHandle, *NonceConfirmation) {
	bd := a.current.Load()
	if bd == nil {
		return nil, &NonceConfirmation{
			Kind:    KindError,
			Height:  d.Height,
			Message: "no current block data",
		}
	}

	currentHeight := bd.Challenge.Height
	if d.Height != currentHeight {
		return nil, &NonceConfirmation{
			Kind:          KindWrongBlock,
			Height:        d.Height,
			CurrentHeight: currentHeight,
		}
	}

	if !bd.installIfBetter(d) {
		// Not strictly better: silent drop, no confirmation fabricated.
		return nil, nil
	}

	target := bd.EffectiveTarget
	if target > 0 && d.Value > target {
		bd.markTooHigh(d.AccountID)
		return nil, &NonceConfirmation{
			Kind:     KindTooHigh,
			Height:   d.Height,
			Deadline: d.Value,
			Target:   target,
		}
	}

	found := d
	found.Status = StatusFound
	return &SubmissionHandle{Deadline: found, Block: bd}, &NonceConfirmation{
		Kind:     KindAccepted,
		Height:   d.Height,
		Deadline: d.Value,
		Target:   target,
	}
}
