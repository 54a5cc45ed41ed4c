package telemetry

import (
	"testing"
	"time"

	"github.com/tos-network/tos-miner/internal/config"
)

func TestNewAgent(t *testing.T) {
	cfg := &config.NewRelicConfig{Enabled: true, AppName: "Test Miner", LicenseKey: "test_key"}
	agent := NewAgent(cfg)
	if agent == nil {
		t.Fatal("NewAgent returned nil")
	}
	if agent.IsEnabled() {
		t.Error("Agent should not be enabled before Start()")
	}
}

func TestStartDisabled(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{Enabled: false})
	if err := agent.Start(); err != nil {
		t.Fatalf("Start() on a disabled agent should not error: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("disabled agent should never report enabled")
	}
}

func TestStartMissingLicenseKey(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{Enabled: true})
	if err := agent.Start(); err != nil {
		t.Fatalf("Start() with no license key should not error: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("agent without a license key should never report enabled")
	}
}

func TestRecordMethodsAreNoOpsWhenDisabled(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{Enabled: false})
	// These must not panic even though no underlying Application exists.
	agent.RecordRound(1, time.Second, 1000)
	agent.RecordSubmission(1, 1, 1000, true)
	agent.RecordPollFailure(3)
	agent.RecordThroughput(1.0, 2.0)
	agent.Stop()
}
