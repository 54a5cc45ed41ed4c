package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// accountBest is the per-account best-deadline ladder: best-found <=
// best-sent is not actually an ordering the zero values satisfy directly,
// so each field is independently nil until first set.
type accountBest struct {
	found     *Deadline
	sent      *Deadline
	confirmed *Deadline
}

// BlockData is the round's mutable state. Exactly one BlockData is "current"
// at a time; round completion does not clear it, only subsequent rounds swap
// the current pointer.
type BlockData struct {
	Challenge       Challenge
	EffectiveTarget uint64
	RoundStart      time.Time
	RoundDuration   time.Duration

	mu       sync.Mutex
	accounts map[uint64]*accountBest

	isProcessing int32 // atomic bool

	readBytesTotal   int64
	readBytesDone    int64
	verifyBytesTotal int64
	verifyBytesDone  int64

	bestRoundDeadline uint64 // atomic: best-found across all accounts this round, 0 = none

	completionLogged int32 // atomic: set once the progress observer has logged round completion
}

// NewBlockData constructs a fresh, current BlockData for a challenge.
func NewBlockData(ch Challenge, effectiveTarget uint64, totalBytes int64) *BlockData {
	bd := &BlockData{
		Challenge:       ch,
		EffectiveTarget: effectiveTarget,
		RoundStart:      time.Now(),
		accounts:        make(map[uint64]*accountBest),
	}
	atomic.StoreInt32(&bd.isProcessing, 1)
	atomic.StoreInt64(&bd.readBytesTotal, totalBytes)
	atomic.StoreInt64(&bd.verifyBytesTotal, totalBytes)
	return bd
}

// IsProcessing reports whether the round is still in flight.
func (bd *BlockData) IsProcessing() bool {
	return atomic.LoadInt32(&bd.isProcessing) == 1
}

func (bd *BlockData) setProcessing(v bool) {
	val := int32(0)
	if v {
		val = 1
	}
	atomic.StoreInt32(&bd.isProcessing, val)
}

// Finish marks the round as no longer in flight. Called by the scheduler
// when it is superseded by a new round, and by the progress sink when both
// progress fractions reach 100%.
func (bd *BlockData) Finish() {
	bd.setProcessing(false)
}

// bestFound returns the current best-found deadline for an account, or nil.
func (bd *BlockData) bestFound(account uint64) *Deadline {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	acc, ok := bd.accounts[account]
	if !ok {
		return nil
	}
	return acc.found
}

// installIfBetter atomically compares candidate to the account's recorded
// best-found deadline and installs it only if strictly better (or first).
// Returns true if installed.
func (bd *BlockData) installIfBetter(d Deadline) bool {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	acc, ok := bd.accounts[d.AccountID]
	if !ok {
		acc = &accountBest{}
		bd.accounts[d.AccountID] = acc
	}

	if acc.found != nil && d.Value >= acc.found.Value {
		return false
	}

	found := d
	found.Status = StatusFound
	acc.found = &found

	for {
		cur := atomic.LoadUint64(&bd.bestRoundDeadline)
		if cur != 0 && cur <= d.Value {
			break
		}
		if atomic.CompareAndSwapUint64(&bd.bestRoundDeadline, cur, d.Value) {
			break
		}
	}
	return true
}

// markTooHigh records that the installed best-found deadline for an account
// is suppressed from submission this round.
func (bd *BlockData) markTooHigh(account uint64) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	if acc, ok := bd.accounts[account]; ok && acc.found != nil {
		acc.found.Status = StatusTooHigh
	}
}

// recordSent updates best-sent for an account after a submission is fired.
func (bd *BlockData) recordSent(d Deadline) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	acc, ok := bd.accounts[d.AccountID]
	if !ok {
		acc = &accountBest{}
		bd.accounts[d.AccountID] = acc
	}
	if acc.sent == nil || d.Value < acc.sent.Value {
		sent := d
		sent.Status = StatusSent
		acc.sent = &sent
	}
}

// recordConfirmed updates best-confirmed for an account after the pool
// acknowledges a submission.
func (bd *BlockData) recordConfirmed(d Deadline) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	acc, ok := bd.accounts[d.AccountID]
	if !ok {
		acc = &accountBest{}
		bd.accounts[d.AccountID] = acc
	}
	if acc.confirmed == nil || d.Value < acc.confirmed.Value {
		confirmed := d
		confirmed.Status = StatusConfirmed
		acc.confirmed = &confirmed
	}
}

// BestRoundDeadline returns the best deadline found this round across all
// accounts, or 0 if none has been found yet.
func (bd *BlockData) BestRoundDeadline() uint64 {
	return atomic.LoadUint64(&bd.bestRoundDeadline)
}

// AddReadBytes advances the read-progress counter by n bytes.
func (bd *BlockData) AddReadBytes(n int64) {
	atomic.AddInt64(&bd.readBytesDone, n)
}

// AddVerifyBytes advances the verify-progress counter by n bytes.
func (bd *BlockData) AddVerifyBytes(n int64) {
	atomic.AddInt64(&bd.verifyBytesDone, n)
}

// Progress returns (readFraction, verifyFraction) in [0, 1]. A zero
// denominator (no plot bytes registered) reports complete progress.
func (bd *BlockData) Progress() (float64, float64) {
	total := atomic.LoadInt64(&bd.readBytesTotal)
	if total == 0 {
		return 1, 1
	}
	readFrac := float64(atomic.LoadInt64(&bd.readBytesDone)) / float64(total)
	verifyFrac := float64(atomic.LoadInt64(&bd.verifyBytesDone)) / float64(total)
	if readFrac > 1 {
		readFrac = 1
	}
	if verifyFrac > 1 {
		verifyFrac = 1
	}
	return readFrac, verifyFrac
}

// Complete reports whether both progress fractions have reached 100%.
func (bd *BlockData) Complete() bool {
	r, v := bd.Progress()
	return r >= 1 && v >= 1
}

// claimCompletionLog reports true exactly once per BlockData, the first
// time it is called after the round has completed. Used by the progress
// observer so round-completion is logged a single time.
func (bd *BlockData) claimCompletionLog() bool {
	return atomic.CompareAndSwapInt32(&bd.completionLogged, 0, 1)
}
