// Package scheduler implements the round scheduler: the sole writer of the
// current-block pointer, responsible for turning a new (height, baseTarget,
// generationSignature) challenge into a fresh BlockData, a recomputed
// target deadline, and a batch of plot-read notifications.
package scheduler

import (
	"sync"
	"time"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/engine"
	"github.com/tos-network/tos-miner/internal/plot"
	"github.com/tos-network/tos-miner/internal/util"
)

// difficultyConstant is the currency's difficulty<->baseTarget relation:
// difficulty = difficultyConstant / baseTarget.
const difficultyConstant = 18_325_193_796

// tib is the number of bytes in one tebibyte, used to express fleet size in
// the target-deadline formula.
const tib = int64(1) << 40

// Scheduler owns the current-block pointer and the read queue. Exactly one
// goroutine calls Advance at a time; the poller is its only caller.
type Scheduler struct {
	arbiter   *engine.Arbiter
	readQueue *engine.ReadQueue
	registry  *plot.Registry
	cfg       func() config.MiningConfig

	mu       sync.Mutex
	previous *engine.BlockData
}

// New creates a scheduler wired to the given arbiter, read queue, and plot
// registry. cfg is called on every Advance so a live-reloaded config is
// picked up without re-wiring.
func New(arbiter *engine.Arbiter, readQueue *engine.ReadQueue, registry *plot.Registry, cfg func() config.MiningConfig) *Scheduler {
	return &Scheduler{
		arbiter:   arbiter,
		readQueue: readQueue,
		registry:  registry,
		cfg:       cfg,
	}
}

// Advance is called by the poller whenever it observes a strictly greater
// height. It records the outgoing round's duration, recomputes the
// effective target deadline, publishes a fresh BlockData, and enqueues read
// work for every registered plot directory.
func (s *Scheduler) Advance(ch engine.Challenge, poolTargetDeadline uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if prev := s.previous; prev != nil {
		prev.RoundDuration = now.Sub(prev.RoundStart)
		prev.Finish()
		util.Round(prev.Challenge.Height).Infof("round finished in %s, best deadline %d", prev.RoundDuration, prev.BestRoundDeadline())
	}

	s.readQueue.Drain()

	cfg := s.cfg()
	target := s.effectiveTarget(cfg, ch.BaseTarget, poolTargetDeadline)

	// Readers and verifiers advance progress by scoop bytes (one ScoopSize
	// slice per nonce), so the progress denominator counts the same unit.
	var totalBytes int64
	for _, dir := range s.registry.Dirs() {
		for _, f := range dir.Files {
			totalBytes += int64(f.Nonces) * plot.ScoopSize
		}
	}
	bd := engine.NewBlockData(ch, target, totalBytes)
	bd.RoundStart = now

	s.arbiter.SetCurrent(bd)
	s.previous = bd

	s.enqueueReads(bd, cfg.PoC2StartBlock)

	util.Round(ch.Height).Infof("new round, base target %d, effective target deadline %d, %d bytes to scan",
		ch.BaseTarget, target, totalBytes)
}

// effectiveTarget implements the target-deadline policy: the minimum of the
// present (nonzero) user ceiling, pool ceiling, and dynamic computed
// ceiling. Zero means "no limit from this source"; an effective target of
// zero means "accept any deadline".
func (s *Scheduler) effectiveTarget(cfg config.MiningConfig, baseTarget, poolTargetDeadline uint64) uint64 {
	candidates := make([]uint64, 0, 3)

	if cfg.TargetDeadline > 0 {
		candidates = append(candidates, cfg.TargetDeadline)
	}
	if poolTargetDeadline > 0 {
		candidates = append(candidates, poolTargetDeadline)
	}
	if cfg.SubmitProbability > 0 {
		if dynamic, ok := s.dynamicTarget(cfg, baseTarget); ok {
			candidates = append(candidates, dynamic)
		}
	}

	if len(candidates) == 0 {
		return 0
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}

// dynamicTarget computes factor*difficulty/size, where size is the fleet's
// total registered plot size in TiB. Returns ok=false if there is no plot
// data yet (size would be zero, making the formula meaningless).
func (s *Scheduler) dynamicTarget(cfg config.MiningConfig, baseTarget uint64) (uint64, bool) {
	if baseTarget == 0 {
		return 0, false
	}
	totalBytes := s.registry.TotalBytes()
	if totalBytes <= 0 {
		return 0, false
	}

	difficulty := float64(difficultyConstant) / float64(baseTarget)
	sizeInTiB := float64(totalBytes) / float64(tib)
	if sizeInTiB <= 0 {
		return 0, false
	}

	target := cfg.TargetDLFactor * difficulty / sizeInTiB
	if target <= 0 {
		return 0, false
	}
	return uint64(target), true
}

// enqueueReads walks the registered plot directories and pushes one read
// notification per Parallel file, or one read notification per Sequential
// directory carrying its full file list.
func (s *Scheduler) enqueueReads(bd *engine.BlockData, poc2StartBlock uint64) {
	version := plot.VersionForHeight(bd.Challenge.Height, poc2StartBlock)

	for _, dir := range s.registry.Dirs() {
		if len(dir.Files) == 0 {
			continue
		}
		switch dir.Type {
		case config.Parallel:
			for _, f := range dir.Files {
				s.pushRead(bd, version, []plot.File{*f}, nil)
			}
		default: // Sequential
			files := make([]plot.File, len(dir.Files))
			for i, f := range dir.Files {
				files[i] = *f
			}
			s.pushRead(bd, version, files, dir.RelatedDirs)
		}
	}
}

func (s *Scheduler) pushRead(bd *engine.BlockData, version engine.PoCVersion, files []plot.File, relatedDirs []string) {
	refs := make([]engine.PlotFileRef, len(files))
	for i, f := range files {
		refs[i] = f.Ref()
	}

	n := engine.ReadNotification{
		Challenge:   bd.Challenge,
		PoCVersion:  version,
		Block:       bd,
		Files:       refs,
		RelatedDirs: relatedDirs,
	}
	if !s.readQueue.Push(n) {
		util.Warnf("read queue closed, dropping notification for height %d", bd.Challenge.Height)
	}
}
