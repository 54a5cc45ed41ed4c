// Command tos-miner runs the proof-of-capacity mining round engine: it
// polls a pool (or solo node) for mining info, scans local plot files,
// verifies scoops against each round's challenge, and submits improved
// deadlines back to the pool.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tos-network/tos-miner/internal/api"
	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/engine"
	"github.com/tos-network/tos-miner/internal/hashengine"
	"github.com/tos-network/tos-miner/internal/plot"
	"github.com/tos-network/tos-miner/internal/poller"
	"github.com/tos-network/tos-miner/internal/profiling"
	"github.com/tos-network/tos-miner/internal/scheduler"
	"github.com/tos-network/tos-miner/internal/telemetry"
	"github.com/tos-network/tos-miner/internal/util"
)

const (
	readQueueCapacity   = 256
	verifyQueueCapacity = 256
)

var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("tos-miner", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	// The outer supervisor loop is what makes `restart` real: Restart()
	// just sets a flag and stops the current run like any other shutdown;
	// run() reports whether that flag was set, and if so this loop
	// re-enters run() with every component rebuilt from scratch.
	m := newMiner(cfg)
	for {
		restart, err := m.run()
		if err != nil {
			util.Errorf("fatal: %v", err)
			os.Exit(1)
		}
		if !restart {
			break
		}
		util.Info("restart requested, re-entering run")
	}
}

// miner owns every long-lived component and implements api.Controller so
// the control/status API can drive it. A single miner value is reused
// across restarts; run() rebuilds every component at the top of each call.
type miner struct {
	cfg *config.Config

	registry  *plot.Registry
	budget    *engine.MemoryBudget
	readQ     *engine.ReadQueue
	verifyQ   *engine.VerifyQueue
	arbiter   *engine.Arbiter
	submitter *engine.Submitter
	sched     *scheduler.Scheduler
	pollr     *poller.Poller
	readers   *plot.ReaderPool
	verifiers *engine.VerifierPool
	progress  *engine.ProgressObserver
	apiServer *api.Server
	profServ  *profiling.Server
	telem     *telemetry.Agent

	mu               sync.Mutex
	restartRequested bool
	stopOnce         sync.Once
	stopCh           chan struct{}
}

func newMiner(cfg *config.Config) *miner {
	return &miner{cfg: cfg}
}

// run builds every component fresh, runs until stopped (by signal or via
// the control API), tears everything down, and reports whether it should
// be re-entered because a restart was requested while it was running.
func (m *miner) run() (restart bool, err error) {
	m.mu.Lock()
	m.restartRequested = false
	m.stopOnce = sync.Once{}
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.registry = plot.NewRegistry()
	if err := m.registry.Rescan(m.cfg.Plots.Dirs); err != nil {
		return false, fmt.Errorf("initial plot scan: %w", err)
	}

	m.budget = engine.NewMemoryBudget(m.cfg.Mining.MaxBufferSize)
	m.readQ = engine.NewReadQueue(readQueueCapacity)
	m.verifyQ = engine.NewVerifyQueue(verifyQueueCapacity)
	m.arbiter = engine.NewArbiter()
	m.submitter = engine.NewSubmitter(m.cfg.Mining.SubmitURL, 0)

	m.sched = scheduler.New(m.arbiter, m.readQ, m.registry, func() config.MiningConfig { return m.cfg.Mining })

	m.pollr = poller.New(m.cfg.MiningInfoURLs(), m.cfg.Mining.MiningInfoInterval, 0, m.sched.Advance)

	m.readers = plot.NewReaderPool(m.readQ, m.verifyQ, m.budget, m.arbiter, m.cfg.Mining.PoC2StartBlock)

	backend := hashengine.Select(m.cfg.Mining.ProcessorType, m.cfg.Mining.CPUInstructionSet)
	m.verifiers = engine.NewVerifierPool(m.verifyQ, m.budget, m.arbiter, m.submitter, backend)

	m.profServ = profiling.NewServer(&m.cfg.Profiling)
	m.telem = telemetry.NewAgent(&m.cfg.NewRelic)
	m.apiServer = api.NewServer(&m.cfg.API, m)

	m.progress = engine.NewProgressObserver(m.arbiter, 0, m.onProgressSnapshot)

	if err := m.telem.Start(); err != nil {
		util.Warnf("telemetry agent did not start: %v", err)
	}
	if err := m.profServ.Start(); err != nil {
		util.Warnf("profiling server did not start: %v", err)
	}
	if err := m.apiServer.Start(); err != nil {
		util.Warnf("control API did not start: %v", err)
	}

	m.readers.Start(m.cfg.Mining.MaxPlotReaders)
	m.verifiers.Start(m.cfg.Mining.MiningIntensity)
	m.progress.Start()
	m.pollr.Start()

	util.Infof("tos-miner %s started, %d plot bytes registered across %d directories",
		version, m.registry.TotalBytes(), len(m.registry.Dirs()))

	m.waitForSignal()
	m.shutdown()

	m.mu.Lock()
	restart = m.restartRequested
	m.mu.Unlock()
	return restart, nil
}

func (m *miner) waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case sig := <-sigCh:
		util.Infof("received signal %s, shutting down", sig)
	case <-m.stopCh:
		util.Info("stop requested, shutting down")
	}
}

func (m *miner) shutdown() {
	m.pollr.Stop()
	m.readers.Stop()
	m.verifyQ.Close()
	m.verifiers.Wait()
	m.progress.Stop()
	if err := m.apiServer.Stop(); err != nil {
		util.Warnf("control API shutdown error: %v", err)
	}
	if err := m.profServ.Stop(); err != nil {
		util.Warnf("profiling server shutdown error: %v", err)
	}
	m.telem.Stop()
	util.Info("tos-miner stopped")
}

func (m *miner) onProgressSnapshot(s engine.Snapshot) {
	m.telem.RecordThroughput(s.ReadBytesPerSec, s.VerifyBytesPerSec)
	if s.ReadFraction >= 1 && s.VerifyFraction >= 1 {
		if bd := m.arbiter.Current(); bd != nil && bd.Challenge.Height == s.Height {
			m.telem.RecordRound(s.Height, bd.RoundDuration, bd.BestRoundDeadline())
		}
	}
}

// --- api.Controller ---

func (m *miner) Status() api.StatusResponse {
	bd := m.arbiter.Current()
	if bd == nil {
		return api.StatusResponse{}
	}
	readFrac, verifyFrac := bd.Progress()
	return api.StatusResponse{
		Height:         bd.Challenge.Height,
		ReadFraction:   readFrac,
		VerifyFraction: verifyFrac,
		BestDeadline:   bd.BestRoundDeadline(),
		Processing:     bd.IsProcessing(),
		UpstreamHealth: true,
	}
}

// Stop ends the current run without requesting a restart.
func (m *miner) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Restart sets the restart flag and stops the current run; main's
// supervisor loop sees the flag on return from run() and re-enters it.
func (m *miner) Restart() error {
	m.mu.Lock()
	m.restartRequested = true
	m.mu.Unlock()
	m.Stop()
	return nil
}

func (m *miner) Rescan() error {
	return m.registry.Rescan(m.cfg.Plots.Dirs)
}

func (m *miner) SetMiningIntensity(n int) error {
	return m.verifiers.Resize(n)
}

func (m *miner) SetMaxPlotReaders(n int) error {
	return m.readers.Resize(n)
}

func (m *miner) SetMaxBufferSize(bytes int64) error {
	return m.budget.Resize(bytes)
}
