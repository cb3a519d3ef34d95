// Package config loads the YAML configuration of the smallworld tool.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML file.
type Config struct {
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Generate GenerateConfig `yaml:"generate"`
}

type JournalConfig struct {
	Path          string        `yaml:"path"`
	Lazy          bool          `yaml:"lazy"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	MaxBuffered   int           `yaml:"max_buffered"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint after inspect when not empty.
	Addr string `yaml:"addr"`
}

// GenerateConfig drives the synthetic workload.
type GenerateConfig struct {
	Nodes     int     `yaml:"nodes"`
	MaxDegree int     `yaml:"max_degree"`
	LevelMult float64 `yaml:"level_mult"` // mL, usually 1/ln(M)
	Seed      uint64  `yaml:"seed"`
}

// MaxLevelMult is 1/ln(2), the normalization of the smallest meaningful
// fan-out. Larger values only produce taller, emptier layer stacks.
const MaxLevelMult = 1 / math.Ln2

// DefaultConfig returns a configuration usable without any file.
func DefaultConfig() Config {
	return Config{
		Journal: JournalConfig{
			Path:          "smallworld.journal",
			Lazy:          false,
			FlushInterval: 100 * time.Millisecond,
			SyncInterval:  time.Second,
			MaxBuffered:   1000,
		},
		Log: LogConfig{Level: "info"},
		Generate: GenerateConfig{
			Nodes:     1000,
			MaxDegree: 16,
			LevelMult: 0.36067376022224085, // 1/ln(16)
			Seed:      42,
		},
	}
}

// Load reads the YAML file at path over DefaultConfig. Unknown fields are
// rejected. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values a file may have broken.
func (c Config) Validate() error {
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path must not be empty")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Generate.Nodes < 0 {
		return fmt.Errorf("generate.nodes must be >= 0, got %d", c.Generate.Nodes)
	}
	if c.Generate.MaxDegree < 1 {
		return fmt.Errorf("generate.max_degree must be >= 1, got %d", c.Generate.MaxDegree)
	}
	if c.Generate.LevelMult <= 0 || c.Generate.LevelMult > MaxLevelMult {
		return fmt.Errorf("generate.level_mult must be in (0, %g], got %g", MaxLevelMult, c.Generate.LevelMult)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
