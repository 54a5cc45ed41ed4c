package plot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tos-network/tos-miner/internal/engine"
)

func TestReaderPoolStreamsFileIntoVerifyQueue(t *testing.T) {
	dir := t.TempDir()
	const nonces = 5
	path := filepath.Join(dir, "7_0_5")
	// PoC1 layout: nonce-major, one scoop slice per nonce at a fixed scoop.
	buf := make([]byte, nonces*ScoopsPerNonce*ScoopSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	readQueue := engine.NewReadQueue(4)
	verifyQueue := engine.NewVerifyQueue(16)
	budget := engine.NewMemoryBudget(1 << 20)
	arbiter := engine.NewArbiter()

	challenge := engine.Challenge{Height: 10, BaseTarget: 1000, Scoop: 3}
	bd := engine.NewBlockData(challenge, 0, int64(len(buf)))
	arbiter.SetCurrent(bd)

	pool := NewReaderPool(readQueue, verifyQueue, budget, arbiter, 0)
	pool.Start(1)
	defer pool.Stop()

	readQueue.Push(engine.ReadNotification{
		Challenge:  challenge,
		PoCVersion: engine.PoC1,
		Block:      bd,
		Files: []engine.PlotFileRef{
			{Path: path, AccountID: 7, Nonces: nonces, Size: int64(len(buf))},
		},
	})

	deadline := time.Now().Add(2 * time.Second)
	var n engine.VerifyNotification
	var ok bool
	for time.Now().Before(deadline) {
		select {
		case <-time.After(10 * time.Millisecond):
		default:
		}
		n, ok = tryPop(verifyQueue)
		if ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !ok {
		t.Fatal("expected a verify notification to be emitted")
	}
	if n.AccountID != 7 || n.Count != nonces {
		t.Fatalf("VerifyNotification = %+v, want AccountID=7 Count=%d", n, nonces)
	}
	if len(n.Bytes) != nonces*ScoopSize {
		t.Fatalf("len(Bytes) = %d, want %d", len(n.Bytes), nonces*ScoopSize)
	}

	if budget.Outstanding() != int64(len(n.Bytes)) {
		t.Fatalf("budget outstanding = %d, want %d (not yet released by a verifier)", budget.Outstanding(), len(n.Bytes))
	}
}

func tryPop(q *engine.VerifyQueue) (engine.VerifyNotification, bool) {
	type result struct {
		n  engine.VerifyNotification
		ok bool
	}
	ch := make(chan result, 1)
	go func() {
		n, ok := q.Pop()
		ch <- result{n, ok}
	}()
	select {
	case r := <-ch:
		return r.n, r.ok
	case <-time.After(20 * time.Millisecond):
		return engine.VerifyNotification{}, false
	}
}

func TestReaderPoolSkipsUnreadableFileWithoutStopping(t *testing.T) {
	readQueue := engine.NewReadQueue(4)
	verifyQueue := engine.NewVerifyQueue(4)
	budget := engine.NewMemoryBudget(1 << 20)
	arbiter := engine.NewArbiter()

	challenge := engine.Challenge{Height: 1}
	bd := engine.NewBlockData(challenge, 0, 0)
	arbiter.SetCurrent(bd)

	pool := NewReaderPool(readQueue, verifyQueue, budget, arbiter, 0)
	pool.Start(1)
	defer pool.Stop()

	readQueue.Push(engine.ReadNotification{
		Challenge:  challenge,
		PoCVersion: engine.PoC1,
		Block:      bd,
		Files: []engine.PlotFileRef{
			{Path: "/nonexistent/path/1_0_10", AccountID: 1, Nonces: 10, Size: 1000},
		},
	})

	// The worker should survive the missing file and keep consuming work.
	time.Sleep(50 * time.Millisecond)
	readQueue.Push(engine.ReadNotification{Challenge: challenge, Block: bd})
}

func newTestReaderPool() (*ReaderPool, func()) {
	readQueue := engine.NewReadQueue(4)
	verifyQueue := engine.NewVerifyQueue(4)
	budget := engine.NewMemoryBudget(1 << 20)
	arbiter := engine.NewArbiter()
	pool := NewReaderPool(readQueue, verifyQueue, budget, arbiter, 0)
	return pool, pool.Stop
}

func TestReaderPoolResizeGrowsAndShrinks(t *testing.T) {
	pool, stop := newTestReaderPool()
	defer stop()

	pool.Start(2)
	if got := pool.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	if err := pool.Resize(4); err != nil {
		t.Fatalf("Resize(4) error = %v", err)
	}
	if got := pool.Count(); got != 4 {
		t.Fatalf("Count() after Resize(4) = %d, want 4", got)
	}

	if err := pool.Resize(1); err != nil {
		t.Fatalf("Resize(1) error = %v", err)
	}
	// Count() reflects the bookkeeping immediately; give the canceled
	// workers a moment to actually exit their loops.
	if got := pool.Count(); got != 1 {
		t.Fatalf("Count() after Resize(1) = %d, want 1", got)
	}
	time.Sleep(20 * time.Millisecond)
}

func TestReaderPoolResizeRejectsNonPositive(t *testing.T) {
	pool, stop := newTestReaderPool()
	defer stop()

	pool.Start(1)
	if err := pool.Resize(0); err == nil {
		t.Error("Resize(0) should return an error")
	}
	if err := pool.Resize(-1); err == nil {
		t.Error("Resize(-1) should return an error")
	}
	if got := pool.Count(); got != 1 {
		t.Fatalf("Count() after rejected resize = %d, want 1 (unchanged)", got)
	}
}
