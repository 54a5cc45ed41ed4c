package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tos-network/tos-miner/internal/util"
)

// Snapshot is one externally-facing progress sample.
type Snapshot struct {
	Height              uint64
	ReadFraction        float64
	VerifyFraction      float64
	ReadBytesPerSec     float64
	VerifyBytesPerSec   float64
	CombinedBytesPerSec float64
}

// ProgressObserver polls the arbiter's current BlockData on an interval,
// reports throughput snapshots, and marks rounds complete when both
// progress fractions reach 100%.
type ProgressObserver struct {
	arbiter  *Arbiter
	interval time.Duration
	onUpdate func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastBlock  *BlockData
	lastRead   int64
	lastVerify int64
	lastAt     time.Time
}

// NewProgressObserver creates an observer. onUpdate may be nil.
func NewProgressObserver(arbiter *Arbiter, interval time.Duration, onUpdate func(Snapshot)) *ProgressObserver {
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressObserver{
		arbiter:  arbiter,
		interval: interval,
		onUpdate: onUpdate,
	}
}

// Start begins polling in a background goroutine.
func (o *ProgressObserver) Start() {
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.wg.Add(1)
	go o.loop()
}

// Stop halts the polling goroutine and waits for it to exit.
func (o *ProgressObserver) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

func (o *ProgressObserver) loop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.tick()
		}
	}
}

func (o *ProgressObserver) tick() {
	bd := o.arbiter.Current()
	if bd == nil {
		return
	}

	now := time.Now()
	if bd != o.lastBlock {
		o.lastBlock = bd
		o.lastRead = 0
		o.lastVerify = 0
		o.lastAt = now
	}

	readDone := atomic.LoadInt64(&bd.readBytesDone)
	verifyDone := atomic.LoadInt64(&bd.verifyBytesDone)
	elapsed := now.Sub(o.lastAt).Seconds()

	var readRate, verifyRate float64
	if elapsed > 0 {
		readRate = float64(readDone-o.lastRead) / elapsed
		verifyRate = float64(verifyDone-o.lastVerify) / elapsed
	}

	o.lastRead = readDone
	o.lastVerify = verifyDone
	o.lastAt = now

	readFrac, verifyFrac := bd.Progress()

	if o.onUpdate != nil {
		o.onUpdate(Snapshot{
			Height:              bd.Challenge.Height,
			ReadFraction:        readFrac,
			VerifyFraction:      verifyFrac,
			ReadBytesPerSec:     readRate,
			VerifyBytesPerSec:   verifyRate,
			CombinedBytesPerSec: readRate + verifyRate,
		})
	}

	if bd.Complete() && bd.claimCompletionLog() {
		bd.Finish()
		bd.RoundDuration = now.Sub(bd.RoundStart)
		util.Round(bd.Challenge.Height).Infof("round fully verified in %s, best deadline %d",
			bd.RoundDuration, bd.BestRoundDeadline())
	}
}
