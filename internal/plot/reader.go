package plot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tos-network/tos-miner/internal/engine"
	"github.com/tos-network/tos-miner/internal/util"
)

// chunkNonces is the number of nonces read per chunk, before clamping to
// what fits within the memory budget's maximum and to the nonces left in
// the file.
const chunkNonces = 1024

// ReaderPool is a pool of R workers consuming plot-read notifications. Each
// worker opens the requested file(s), streams the scoop region in
// budget-gated chunks, and emits verification notifications.
type ReaderPool struct {
	queue    *engine.ReadQueue
	verify   *engine.VerifyQueue
	budget   *engine.MemoryBudget
	arbiter  *engine.Arbiter
	poc2From uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers []context.CancelFunc
}

// NewReaderPool creates a reader pool backed by the given queues, budget,
// and arbiter (used only to observe the current block height for
// mid-file cancellation).
func NewReaderPool(queue *engine.ReadQueue, verify *engine.VerifyQueue, budget *engine.MemoryBudget, arbiter *engine.Arbiter, poc2StartBlock uint64) *ReaderPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReaderPool{
		queue:    queue,
		verify:   verify,
		budget:   budget,
		arbiter:  arbiter,
		poc2From: poc2StartBlock,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches `workers` additional reader workers, each individually
// cancelable via Resize.
func (p *ReaderPool) Start(workers int) {
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
// which finishes its current chunk (never mid-read) before exiting. Unlike
// a blind Start(n-current), this never silently no-ops on a negative delta.
func (p *ReaderPool) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("max plot readers must be > 0")
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
func (p *ReaderPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Stop cancels every worker and waits for all of them to exit.
func (p *ReaderPool) Stop() {
	p.cancel()
	p.queue.Close()
	p.wg.Wait()
}

func (p *ReaderPool) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		n, ok := p.queue.PopCtx(ctx)
		if !ok {
			return
		}
		for _, f := range n.Files {
			if ctx.Err() != nil {
				return
			}
			p.readFile(ctx, n, f)
		}
	}
}

// readFile streams one file's scoop region in budget-gated chunks. Errors
// are logged and the file is skipped; they never terminate the worker.
func (p *ReaderPool) readFile(ctx context.Context, n engine.ReadNotification, f engine.PlotFileRef) {
	file, err := os.Open(f.Path)
	if err != nil {
		util.Warnf("plot reader: open %q: %v", f.Path, err)
		return
	}
	defer file.Close()

	version := VersionForHeight(n.Challenge.Height, p.poc2From)

	var nonce uint64
	for nonce < f.Nonces {
		if ctx.Err() != nil {
			return
		}
		if p.heightChanged(n.Challenge.Height) {
			util.Debugf("plot reader: height changed mid-file, abandoning %q at nonce %d/%d", f.Path, nonce, f.Nonces)
			return
		}

		count := uint64(chunkNonces)
		if maxNonces := uint64(p.budget.Max() / ScoopSize); maxNonces > 0 && count > maxNonces {
			count = maxNonces
		}
		if remaining := f.Nonces - nonce; count > remaining {
			count = remaining
		}

		buf, err := p.readChunk(ctx, file, version, n.Challenge.Scoop, nonce, count, f.Nonces)
		if err != nil {
			if err == io.EOF {
				return
			}
			util.Warnf("plot reader: read %q at nonce %d: %v", f.Path, nonce, err)
			return
		}

		n.Block.AddReadBytes(int64(len(buf)))

		p.verify.Push(engine.VerifyNotification{
			Challenge:     n.Challenge,
			PoCVersion:    version,
			Block:         n.Block,
			PlotPath:      f.Path,
			AccountID:     f.AccountID,
			StartingNonce: f.StartNonce + nonce,
			Count:         count,
			Bytes:         buf,
		})

		nonce += count
	}
}

// readChunk acquires budget headroom, reads `count` nonces' scoop slices
// at the round's scoop index (contiguous for PoC2, one seek per nonce for
// PoC1), and returns the packed buffer on success.
func (p *ReaderPool) readChunk(ctx context.Context, file *os.File, version engine.PoCVersion, scoop uint32, nonce, count, totalNonces uint64) ([]byte, error) {
	size := int64(count) * ScoopSize
	if err := p.budget.Acquire(ctx, size); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	scoopIdx := uint64(scoop)

	if version == engine.PoC1 {
		// PoC1: one contiguous region per nonce; read each nonce's scoop
		// slice with its own seek.
		for i := uint64(0); i < count; i++ {
			off := ScoopOffset(version, nonce+i, scoopIdx, totalNonces)
			if _, err := file.ReadAt(buf[i*ScoopSize:(i+1)*ScoopSize], off); err != nil {
				p.budget.Release(size)
				return nil, err
			}
		}
		return buf, nil
	}

	// PoC2: scoop-major layout means a contiguous nonce range at a fixed
	// scoop is itself contiguous on disk; single positional read.
	off := ScoopOffset(version, nonce, scoopIdx, totalNonces)
	if _, err := file.ReadAt(buf, off); err != nil {
		p.budget.Release(size)
		return nil, err
	}
	return buf, nil
}

func (p *ReaderPool) heightChanged(enqueuedHeight uint64) bool {
	cur := p.arbiter.Current()
	return cur != nil && cur.Challenge.Height != enqueuedHeight
}
