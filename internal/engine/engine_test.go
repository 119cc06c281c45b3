package engine

import (
	"path/filepath"
	"testing"

	"github.com/argus-scan/argus/internal/config"
	"github.com/argus-scan/argus/internal/logging"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := logging.Initialize(dir); err != nil {
		t.Fatalf("logging.Initialize failed: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.StateDir = dir
	return cfg
}

func TestInit_WiresEveryComponent(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer h.Shutdown()

	if h.Store == nil || h.Registry == nil || h.Embedding == nil || h.Orchestrator == nil ||
		h.FalsePositive == nil || h.Fixer == nil || h.Sandbox == nil || h.Cycle == nil || h.Pruning == nil {
		t.Fatalf("expected every component wired, got %+v", h)
	}
	if h.Gate(nil) == nil {
		t.Fatal("expected a non-nil safety gate")
	}
}

func TestInit_RegistersGoAndPythonAnalyzers(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer h.Shutdown()

	if a, ok := h.Registry.ForExtension(".go"); !ok || a == nil {
		t.Fatal("expected a .go analyzer registered")
	}
	if a, ok := h.Registry.ForExtension(".py"); !ok || a == nil {
		t.Fatal("expected a .py analyzer registered")
	}
}

func TestInit_UnknownEmbeddingProviderFails(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Embedding.Provider = "does-not-exist"
	if _, err := Init(cfg); err == nil {
		t.Fatal("expected an error for an unknown embedding provider")
	}
}

func TestGate_NilApproverReusesGate(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer h.Shutdown()

	first := h.Gate(nil)
	second := h.Gate(nil)
	if first != second {
		t.Fatal("expected Gate(nil) to return the same instance without rebuilding")
	}
}

func TestShutdown_ReturnsNoError(t *testing.T) {
	cfg := newTestConfig(t)
	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := h.Shutdown(); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
}

func TestInit_CreatesStateDirForDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := logging.Initialize(dir); err != nil {
		t.Fatalf("logging.Initialize failed: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.StateDir = filepath.Join(dir, "nested", "deeper")

	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer h.Shutdown()
}
