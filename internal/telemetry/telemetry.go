// Package telemetry provides New Relic APM integration for the mining
// round engine: round lifecycle, deadline submissions, and poll health.
package telemetry

import (
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/util"
)

// Agent wraps New Relic APM functionality.
type Agent struct {
	cfg *config.NewRelicConfig

	mu  sync.RWMutex
	app *newrelic.Application
}

// NewAgent creates an agent bound to the given configuration.
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{cfg: cfg}
}

// Start initializes the New Relic agent, if enabled.
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}
	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the agent.
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// IsEnabled reports whether Start created a New Relic application. This is
// also true when the initial connection timed out and the agent is still
// retrying in the background.
func (a *Agent) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app != nil
}

func (a *Agent) recordEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()
	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

func (a *Agent) recordMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()
	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// RecordRound reports a completed round's outcome.
func (a *Agent) RecordRound(height uint64, duration time.Duration, bestDeadline uint64) {
	a.recordEvent("Round", map[string]interface{}{
		"height":       height,
		"durationMs":   duration.Milliseconds(),
		"bestDeadline": bestDeadline,
	})
	a.recordMetric("Custom/Round/DurationMs", float64(duration.Milliseconds()))
	a.recordMetric("Custom/Round/BestDeadline", float64(bestDeadline))
}

// RecordSubmission reports the outcome of one nonce submission.
func (a *Agent) RecordSubmission(accountID, height, deadline uint64, confirmed bool) {
	status := "confirmed"
	if !confirmed {
		status = "rejected"
	}
	a.recordEvent("Submission", map[string]interface{}{
		"accountId": accountID,
		"height":    height,
		"deadline":  deadline,
		"status":    status,
	})
}

// RecordPollFailure reports a mining-info poll failure.
func (a *Agent) RecordPollFailure(consecutiveFailures int) {
	a.recordEvent("PollFailure", map[string]interface{}{
		"consecutiveFailures": consecutiveFailures,
	})
	a.recordMetric("Custom/Poll/ConsecutiveFailures", float64(consecutiveFailures))
}

// RecordThroughput reports the engine's current read/verify throughput.
func (a *Agent) RecordThroughput(readBytesPerSec, verifyBytesPerSec float64) {
	a.recordMetric("Custom/Engine/ReadBytesPerSec", readBytesPerSec)
	a.recordMetric("Custom/Engine/VerifyBytesPerSec", verifyBytesPerSec)
}
