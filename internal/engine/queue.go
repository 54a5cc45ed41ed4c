package engine

import (
	"context"
	"sync"
)

// ReadNotification carries one unit of plot-read work: either a single
// plot file (Parallel directories) or an ordered file list plus related
// directories (Sequential directories), tagged with the challenge snapshot
// in effect when it was enqueued.
type ReadNotification struct {
	Challenge   Challenge
	PoCVersion  PoCVersion
	Block       *BlockData
	Files       []PlotFileRef
	RelatedDirs []string
}

// PlotFileRef is the minimal description a reader needs to open a file.
type PlotFileRef struct {
	Path       string
	AccountID  uint64
	StartNonce uint64
	Nonces     uint64
	Size       int64
}

// VerifyNotification carries one scoop chunk ready for hashing.
type VerifyNotification struct {
	Challenge     Challenge
	PoCVersion    PoCVersion
	Block         *BlockData
	PlotPath      string
	AccountID     uint64
	StartingNonce uint64
	Count         uint64
	Bytes         []byte
}

// ReadQueue is the bounded, multi-producer/multi-consumer channel of plot
// read notifications. Close wakes every blocked consumer.
type ReadQueue struct {
	ch chan ReadNotification

	closeOnce sync.Once
}

// NewReadQueue creates a bounded read queue.
func NewReadQueue(capacity int) *ReadQueue {
	return &ReadQueue{ch: make(chan ReadNotification, capacity)}
}

// Push enqueues a notification, or returns false if the queue is closed.
func (q *ReadQueue) Push(n ReadNotification) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	q.ch <- n
	return true
}

// Pop blocks for the next notification; ok is false once the queue is
// closed and drained.
func (q *ReadQueue) Pop() (ReadNotification, bool) {
	n, ok := <-q.ch
	return n, ok
}

// PopCtx blocks for the next notification like Pop, but also returns
// ok=false if ctx is done first. Used by individually-cancelable pool
// workers (see plot.ReaderPool.Resize) so a single worker can be torn down
// without closing the queue for the rest of the pool.
func (q *ReadQueue) PopCtx(ctx context.Context) (ReadNotification, bool) {
	select {
	case n, ok := <-q.ch:
		return n, ok
	case <-ctx.Done():
		var zero ReadNotification
		return zero, false
	}
}

// Drain removes and discards any notifications currently buffered, without
// closing the queue. Used by the scheduler to abandon not-yet-started reads
// for the outgoing block.
func (q *ReadQueue) Drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// Close wakes every blocked Pop with ok=false once the queue drains.
func (q *ReadQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// VerifyQueue is the bounded, multi-producer/multi-consumer channel of
// verification notifications.
type VerifyQueue struct {
	ch chan VerifyNotification

	closeOnce sync.Once
}

// NewVerifyQueue creates a bounded verify queue.
func NewVerifyQueue(capacity int) *VerifyQueue {
	return &VerifyQueue{ch: make(chan VerifyNotification, capacity)}
}

// Push enqueues a notification, or returns false if the queue is closed.
func (q *VerifyQueue) Push(n VerifyNotification) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	q.ch <- n
	return true
}

// Pop blocks for the next notification; ok is false once the queue is
// closed and drained.
func (q *VerifyQueue) Pop() (VerifyNotification, bool) {
	n, ok := <-q.ch
	return n, ok
}

// PopCtx blocks for the next notification like Pop, but also returns
// ok=false if ctx is done first. Used by individually-cancelable pool
// workers (see engine.VerifierPool.Resize) so a single worker can be torn
// down without closing the queue for the rest of the pool.
func (q *VerifyQueue) PopCtx(ctx context.Context) (VerifyNotification, bool) {
	select {
	case n, ok := <-q.ch:
		return n, ok
	case <-ctx.Done():
		var zero VerifyNotification
		return zero, false
	}
}

// Close wakes every blocked Pop with ok=false once the queue drains.
func (q *VerifyQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}
