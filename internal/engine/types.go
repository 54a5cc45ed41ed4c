// Package engine implements the mining round engine: block state, the
// deadline arbiter, the work queues and memory budget, the verifier pool,
// the progress observer, and the submitter. The round scheduler lives in
// package scheduler.
package engine

import "time"

// Challenge is the per-block work description handed to readers and verifiers.
type Challenge struct {
	Height              uint64
	BaseTarget          uint64
	GenerationSignature [32]byte
	Scoop               uint32
	TargetDeadline      uint64 // pool-advertised ceiling, 0 = none advertised
}

// PoCVersion is the plot-layout version in effect for a given challenge.
type PoCVersion int

const (
	PoC1 PoCVersion = iota
	PoC2
)

// DeadlineStatus tracks a deadline through its lifecycle.
type DeadlineStatus int

const (
	StatusFound DeadlineStatus = iota
	StatusTooHigh
	StatusSent
	StatusConfirmed
)

func (s DeadlineStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusTooHigh:
		return "tooHigh"
	case StatusSent:
		return "sent"
	case StatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Deadline is a single candidate found by a verifier backend.
type Deadline struct {
	Nonce     uint64
	Value     uint64 // seconds; lower is better
	AccountID uint64
	Height    uint64
	PlotPath  string
	Worker    string
	Status    DeadlineStatus
}

// ConfirmationKind is the discriminant of a NonceConfirmation.
type ConfirmationKind int

const (
	// KindWrongBlock: candidate.Height != current height.
	KindWrongBlock ConfirmationKind = iota
	// KindError: no current BlockData (or another arbitration error).
	KindError
	// KindTooHigh: admitted as best-found but above the effective target.
	KindTooHigh
	// KindAccepted: admitted and returned as a submission handle.
	KindAccepted
)

// NonceConfirmation describes the outcome of an addDeadline call. Rejections
// are values, not errors: WrongBlock/TooHigh/Error are ordinary results, and
// "not strictly better than the current best" is a silent drop that never
// produces a NonceConfirmation at all.
type NonceConfirmation struct {
	Kind          ConfirmationKind
	Height        uint64
	CurrentHeight uint64
	Deadline      uint64
	Target        uint64
	Message       string
}

// SubmissionHandle is returned by the arbiter when a deadline is admitted
// and should be sent to the pool.
type SubmissionHandle struct {
	Deadline  Deadline
	Block     *BlockData
	FoundAt   time.Time
}
