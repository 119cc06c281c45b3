package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Embedding.Provider != "offline-trigram" {
		t.Errorf("expected Provider=offline-trigram, got %s", cfg.Embedding.Provider)
	}
	if cfg.Memory.HybridKWWeight != 0.4 || cfg.Memory.HybridSemWeight != 0.6 {
		t.Errorf("expected default hybrid weights 0.4/0.6, got %v/%v",
			cfg.Memory.HybridKWWeight, cfg.Memory.HybridSemWeight)
	}
	if cfg.Pruning.AutoThreshold != 10000 {
		t.Errorf("expected AutoThreshold=10000, got %d", cfg.Pruning.AutoThreshold)
	}
	if cfg.Pruning.PruneFalsePositives {
		t.Error("expected false-positives namespace excluded from pruning by default")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("ARGUS_STATE_DIR", "")
	t.Setenv("ARGUS_EMBEDDING_PROVIDER", "")
	t.Setenv("ARGUS_LOG_LEVEL", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.StateDir = filepath.Join(tmpDir, "state")
	cfg.Safety.BackupRetention = 5

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.StateDir != cfg.StateDir {
		t.Errorf("expected StateDir=%s, got %s", cfg.StateDir, loaded.StateDir)
	}
	if loaded.Safety.BackupRetention != 5 {
		t.Errorf("expected BackupRetention=5, got %d", loaded.Safety.BackupRetention)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Embedding.Provider != "offline-trigram" {
		t.Errorf("expected default provider, got %s", loaded.Embedding.Provider)
	}
}

func TestAnalyzerConfig_TimeoutFor(t *testing.T) {
	a := AnalyzerConfig{
		FileTimeoutSec: 10,
		LanguageProfiles: map[string]LanguageProfile{
			"go": {TimeoutSec: 25},
		},
	}
	if got := a.TimeoutFor("go"); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := a.TimeoutFor("python"); got != 10 {
		t.Errorf("expected fallback 10, got %d", got)
	}
}
