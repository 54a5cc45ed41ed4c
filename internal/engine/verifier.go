package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tos-network/tos-miner/internal/hashengine"
	"github.com/tos-network/tos-miner/internal/util"
)

// VerifierPool is a pool of V workers consuming verify notifications,
// computing the minimum deadline per chunk with the configured backend,
// and feeding admitted deadlines to the arbiter and submitter.
type VerifierPool struct {
	queue     *VerifyQueue
	budget    *MemoryBudget
	arbiter   *Arbiter
	submitter *Submitter
	backend   hashengine.Backend

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers []context.CancelFunc
}

// NewVerifierPool creates a verifier pool. submitter may be nil in tests
// that only care about arbiter admission.
func NewVerifierPool(queue *VerifyQueue, budget *MemoryBudget, arbiter *Arbiter, submitter *Submitter, backend hashengine.Backend) *VerifierPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &VerifierPool{
		queue:     queue,
		budget:    budget,
		arbiter:   arbiter,
		submitter: submitter,
		backend:   backend,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches `workers` additional verifier workers, each individually
// cancelable via Resize.
func (p *VerifierPool) Start(workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < workers; i++ {
		wctx, wcancel := context.WithCancel(p.ctx)
		p.workers = append(p.workers, wcancel)
		p.wg.Add(1)
		go p.loop(wctx)
	}
}

// Resize grows or shrinks the pool to exactly n workers. Growing starts new
// workers; shrinking cancels the most recently started workers, each of
// which finishes verifying its current chunk before exiting. Unlike a blind
// Start(n-current), this never silently no-ops on a negative delta.
func (p *VerifierPool) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("mining intensity must be > 0")
	}

	p.mu.Lock()
	current := len(p.workers)
	switch {
	case n == current:
		p.mu.Unlock()
		return nil
	case n > current:
		p.mu.Unlock()
		p.Start(n - current)
		return nil
	default:
		toStop := current - n
		stopping := append([]context.CancelFunc(nil), p.workers[current-toStop:]...)
		p.workers = p.workers[:current-toStop]
		p.mu.Unlock()
		for _, cancel := range stopping {
			cancel()
		}
		return nil
	}
}

// Count returns the number of currently running workers.
func (p *VerifierPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Stop cancels every worker and waits for all of them to exit.
func (p *VerifierPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Wait blocks until every worker has exited (the queue was closed and
// drained, or every worker was individually canceled).
func (p *VerifierPool) Wait() {
	p.wg.Wait()
}

func (p *VerifierPool) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		n, ok := p.queue.PopCtx(ctx)
		if !ok {
			return
		}
		p.verify(n)
	}
}

func (p *VerifierPool) verify(n VerifyNotification) {
	result := p.backend.Verify(
		n.Challenge.GenerationSignature,
		n.Bytes,
		n.StartingNonce,
		n.Count,
		n.Challenge.BaseTarget,
		n.AccountID,
		n.Challenge.Height,
	)

	bytesLen := int64(len(n.Bytes))
	p.budget.Release(bytesLen)
	n.Block.AddVerifyBytes(bytesLen)

	d := Deadline{
		Nonce:     result.MinNonce,
		Value:     result.MinDeadline,
		AccountID: result.AccountID,
		Height:    result.Height,
		PlotPath:  n.PlotPath,
	}

	handle, conf := p.arbiter.AddDeadline(d)
	if handle != nil && p.submitter != nil {
		p.submitter.Submit(handle)
		return
	}
	if conf != nil && conf.Kind == KindTooHigh {
		util.Debugf("deadline %d for account %d at height %d exceeds target %d, not submitting",
			conf.Deadline, d.AccountID, conf.Height, conf.Target)
	}
}
