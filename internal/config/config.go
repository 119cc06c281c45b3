// Package config loads argus's single YAML configuration file and applies
// environment variable overrides, mirroring a prior nested
// per-concern Config struct and DefaultConfig() constructor style.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/argus-scan/argus/internal/logging"
)

// Config holds all argus engine configuration.
type Config struct {
	StateDir string `yaml:"state_dir"`

	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Safety    SafetyConfig    `yaml:"safety"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Pruning   PruningConfig   `yaml:"pruning"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		StateDir: defaultStateDir(),

		Memory: MemoryConfig{
			DBFile:         "memory.db",
			KeywordAlpha:   0.35,
			HybridKWWeight: 0.4,
			HybridSemWeight: 0.6,
			MaxContentBytes: 1 << 20, // 1 MiB
		},

		Embedding: EmbeddingConfig{
			Provider:   "offline-trigram",
			Dimensions: 256,
		},

		Logging: LoggingConfig{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: false,
		},

		Analyzer: AnalyzerConfig{
			Concurrency:       0, // 0 => CPU count, resolved at orchestrator construction
			FileSizeCapBytes:  2 << 20, // 2 MiB
			FileTimeoutSec:    10,
			ExcludePatterns: []string{
				".git", ".hg", ".svn",
				"vendor", "node_modules", "third_party",
				"dist", "build", ".cache",
				".argus*", // the engine's own per-project state dir (.argus-cache)
			},
			LanguageProfiles: map[string]LanguageProfile{
				"go":     {TimeoutSec: 10},
				"python": {TimeoutSec: 10},
			},
		},

		Safety: SafetyConfig{
			AutoApproveMinScore:    98,
			AutoApproveContexts:    []string{"production", "script"},
			BackupRetention:        3,
			ApprovalTimeoutSec:     0, // 0 => unbounded, must be cancellable
		},

		Sandbox: SandboxConfig{
			WallBudgetSec: 30,
			NanoCPUs:      1_000_000_000, // 1 vCPU
			MemoryMB:      512,
			NetworkMode:   "none",
		},

		Pruning: PruningConfig{
			Strategy:            "hybrid",
			AutoThreshold:       10000,
			MaxAgeDays:          180,
			RefreshWindowDays:   30,
			QualityThreshold:    0.2,
			MaxRemovedPerRun:    2000,
			PruneFalsePositives: false,
		},
	}
}

func defaultStateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".argus")
	}
	return ".argus"
}

// Load reads configuration from path, falling back to defaults if the
// file does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: state_dir=%s embedding=%s", cfg.StateDir, cfg.Embedding.Provider)
	return cfg, nil
}

// Save writes the configuration back to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyLogging wires the loaded config into the logging package. Called
// once by cmd/argus after Load and logging.Initialize.
func (c *Config) ApplyLogging() {
	categories := make(map[string]bool, len(c.Logging.Categories))
	for k, v := range c.Logging.Categories {
		categories[k] = v
	}
	logging.Configure(c.Logging.DebugMode, c.Logging.Level, c.Logging.JSONFormat, categories)
}
