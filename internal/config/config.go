// Package config handles configuration loading and validation for the mining round engine.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the miner.
type Config struct {
	Mining    MiningConfig    `mapstructure:"mining"`
	Plots     PlotsConfig     `mapstructure:"plots"`
	Log       LogConfig       `mapstructure:"log"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	API       APIConfig       `mapstructure:"api"`
}

// MiningConfig defines the external configuration contract the round engine reads.
type MiningConfig struct {
	MaxBufferSize      int64         `mapstructure:"max_buffer_size"`
	MaxPlotReaders     int           `mapstructure:"max_plot_readers"`
	MiningIntensity    int           `mapstructure:"mining_intensity"`
	ProcessorType      string        `mapstructure:"processor_type"`
	CPUInstructionSet  string        `mapstructure:"cpu_instruction_set"`
	MiningInfoURL      string        `mapstructure:"mining_info_url"`
	MiningInfoAltURLs  []string      `mapstructure:"mining_info_alt_urls"`
	MiningInfoInterval time.Duration `mapstructure:"mining_info_interval"`
	WakeUpTime         time.Duration `mapstructure:"wake_up_time"`
	TargetDeadline     uint64        `mapstructure:"target_deadline"`
	SubmitProbability  float64       `mapstructure:"submit_probability"`
	TargetDLFactor     float64       `mapstructure:"target_dl_factor"`
	PoC2StartBlock     uint64        `mapstructure:"poc2_start_block"`
	RescanEveryBlock   bool          `mapstructure:"rescan_every_block"`
	SubmitURL          string        `mapstructure:"submit_url"`
}

// PlotDirType is the scheduling hint for a plot directory.
type PlotDirType string

const (
	// Sequential directories are read one file at a time.
	Sequential PlotDirType = "sequential"
	// Parallel directories treat each file as an independent work item.
	Parallel PlotDirType = "parallel"
)

// PlotDirConfig describes one registered plot directory.
type PlotDirConfig struct {
	Path        string      `mapstructure:"path"`
	Type        PlotDirType `mapstructure:"type"`
	RelatedDirs []string    `mapstructure:"related_dirs"`
}

// PlotsConfig lists the plot directories the engine scans.
type PlotsConfig struct {
	Dirs []PlotDirConfig `mapstructure:"dirs"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ProfilingConfig defines pprof server settings.
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// NewRelicConfig defines APM agent settings.
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LicenseKey string `mapstructure:"license_key"`
	AppName    string `mapstructure:"app_name"`
}

// APIConfig defines the local control/status HTTP API.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/tos-miner")
	}

	v.SetEnvPrefix("TOS_MINER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.max_buffer_size", 64*1024*1024)
	v.SetDefault("mining.max_plot_readers", 4)
	v.SetDefault("mining.mining_intensity", 1)
	v.SetDefault("mining.processor_type", "CPU")
	v.SetDefault("mining.cpu_instruction_set", "AUTO")
	v.SetDefault("mining.mining_info_interval", "3s")
	v.SetDefault("mining.wake_up_time", "0s")
	v.SetDefault("mining.target_deadline", 0)
	v.SetDefault("mining.submit_probability", 0.0)
	v.SetDefault("mining.target_dl_factor", 3.0)
	v.SetDefault("mining.poc2_start_block", 0)
	v.SetDefault("mining.rescan_every_block", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "tos-miner")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "127.0.0.1:8000")
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Mining.MiningInfoURL == "" {
		return fmt.Errorf("mining.mining_info_url is required")
	}

	if c.Mining.MaxBufferSize <= 0 {
		return fmt.Errorf("mining.max_buffer_size must be > 0")
	}

	if c.Mining.MaxPlotReaders <= 0 {
		return fmt.Errorf("mining.max_plot_readers must be > 0")
	}

	if c.Mining.MiningIntensity <= 0 {
		return fmt.Errorf("mining.mining_intensity must be > 0")
	}

	if c.Mining.MiningInfoInterval <= 0 {
		return fmt.Errorf("mining.mining_info_interval must be positive")
	}

	if len(c.Plots.Dirs) == 0 {
		return fmt.Errorf("at least one plot directory must be configured")
	}

	for _, d := range c.Plots.Dirs {
		if d.Type != Sequential && d.Type != Parallel {
			return fmt.Errorf("plot directory %q has invalid type %q", d.Path, d.Type)
		}
	}

	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		return fmt.Errorf("newrelic.license_key is required when newrelic is enabled")
	}

	return nil
}

// MiningInfoURLs returns the primary URL followed by all configured alternates.
func (c *Config) MiningInfoURLs() []string {
	urls := make([]string, 0, 1+len(c.Mining.MiningInfoAltURLs))
	urls = append(urls, c.Mining.MiningInfoURL)
	urls = append(urls, c.Mining.MiningInfoAltURLs...)
	return urls
}
