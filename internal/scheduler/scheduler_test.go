package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/engine"
	"github.com/tos-network/tos-miner/internal/plot"
)

func writePlotFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestRegistry(t *testing.T) (*plot.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	writePlotFile(t, dir, "1_0_100", 1000)
	writePlotFile(t, dir, "2_0_50", 500)

	reg := plot.NewRegistry()
	if err := reg.Rescan([]config.PlotDirConfig{{Path: dir, Type: config.Parallel}}); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	return reg, dir
}

func staticCfg(c config.MiningConfig) func() config.MiningConfig {
	return func() config.MiningConfig { return c }
}

func TestSchedulerAdvancePublishesNewBlock(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	s := New(arbiter, queue, reg, staticCfg(config.MiningConfig{}))

	s.Advance(engine.Challenge{Height: 100, BaseTarget: 1000}, 0)

	bd := arbiter.Current()
	if bd == nil {
		t.Fatal("expected a current BlockData after Advance")
	}
	if bd.Challenge.Height != 100 {
		t.Fatalf("Challenge.Height = %d, want 100", bd.Challenge.Height)
	}
	if !bd.IsProcessing() {
		t.Fatal("freshly published BlockData should be processing")
	}
}

func TestSchedulerAdvanceEnqueuesOneReadPerParallelFile(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	s := New(arbiter, queue, reg, staticCfg(config.MiningConfig{}))
	s.Advance(engine.Challenge{Height: 1, BaseTarget: 1000}, 0)

	count := 0
	for {
		n, ok := queue.Pop()
		if !ok {
			break
		}
		count++
		if len(n.Files) != 1 {
			t.Errorf("Parallel directory notification should carry exactly one file, got %d", len(n.Files))
		}
		if count >= 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 read notifications (one per file), got %d", count)
	}
}

func TestSchedulerAdvanceFinishesPreviousRound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	s := New(arbiter, queue, reg, staticCfg(config.MiningConfig{}))
	s.Advance(engine.Challenge{Height: 1, BaseTarget: 1000}, 0)
	first := arbiter.Current()

	s.Advance(engine.Challenge{Height: 2, BaseTarget: 1000}, 0)

	if first.IsProcessing() {
		t.Fatal("superseded round should no longer be processing")
	}
	if arbiter.Current() == first {
		t.Fatal("current pointer should have advanced to the new round")
	}
}

func TestSchedulerDynamicTargetUsesSubmitProbability(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	cfg := config.MiningConfig{SubmitProbability: 1.0, TargetDLFactor: 1.0}
	s := New(arbiter, queue, reg, staticCfg(cfg))
	s.Advance(engine.Challenge{Height: 1, BaseTarget: 1000}, 0)

	bd := arbiter.Current()
	if bd.EffectiveTarget == 0 {
		t.Fatal("expected a nonzero dynamic target when submit probability and plot data are present")
	}
}

func TestSchedulerEffectiveTargetIsMinimumOfPresentCeilings(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	cfg := config.MiningConfig{TargetDeadline: 500}
	s := New(arbiter, queue, reg, staticCfg(cfg))
	s.Advance(engine.Challenge{Height: 1, BaseTarget: 1000}, 300)

	bd := arbiter.Current()
	if bd.EffectiveTarget != 300 {
		t.Fatalf("EffectiveTarget = %d, want 300 (min of user=500, pool=300)", bd.EffectiveTarget)
	}
}

func TestSchedulerZeroCeilingsMeansAcceptAny(t *testing.T) {
	reg, _ := newTestRegistry(t)
	arbiter := engine.NewArbiter()
	queue := engine.NewReadQueue(16)

	s := New(arbiter, queue, reg, staticCfg(config.MiningConfig{}))
	s.Advance(engine.Challenge{Height: 1, BaseTarget: 1000}, 0)

	if got := arbiter.Current().EffectiveTarget; got != 0 {
		t.Fatalf("EffectiveTarget = %d, want 0", got)
	}
}
