// Package engine is argus's composition root: it wires the Memory
// Engine, Embedding Provider, Analyzer registry, Orchestrator, False
// Positive Detector, Fix Proposer, Sandbox Validator, Safety Gate, Cycle
// Tracker and Pruning System into a single lifecycle handle. Grounded on
// a reference explicit init/shutdown composition root, generalized from
// a chat-agent's tool registry to argus's fixed ten-component pipeline:
// no ambient globals, every caller receives the handle, and the safety
// gate is a method on the handle rather than free-floating.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/argus-scan/argus/internal/analyzer"
	"github.com/argus-scan/argus/internal/analyzer/golang"
	"github.com/argus-scan/argus/internal/analyzer/python"
	"github.com/argus-scan/argus/internal/config"
	"github.com/argus-scan/argus/internal/cycle"
	"github.com/argus-scan/argus/internal/embedding"
	"github.com/argus-scan/argus/internal/falsepositive"
	"github.com/argus-scan/argus/internal/fixer"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/metrics"
	"github.com/argus-scan/argus/internal/orchestrator"
	"github.com/argus-scan/argus/internal/pruning"
	"github.com/argus-scan/argus/internal/safety"
	"github.com/argus-scan/argus/internal/sandbox"
	"github.com/argus-scan/argus/internal/types"
)

// Handle is the single process-wide engine instance. Every CLI verb
// receives one from Init and must call Shutdown before exit.
type Handle struct {
	cfg *config.Config

	Store         *memory.Store
	Registry      *analyzer.Registry
	Embedding     embedding.EmbeddingEngine
	Orchestrator  *orchestrator.Orchestrator
	FalsePositive *falsepositive.Detector
	Fixer         *fixer.Proposer
	Sandbox       *sandbox.Validator
	Cycle         *cycle.Tracker
	Pruning       *pruning.Pruner
	Metrics       *metrics.Registry

	gate    *safety.Gate
	gateCfg safety.Config
}

// Init builds a Handle from cfg. Database open failure and unwritable
// state directory are fatal (types.KindFatal); every other wiring step
// degrades rather than aborting (e.g. Docker unreachable falls back to
// yaegi-only sandbox validation).
func Init(cfg *config.Config) (*Handle, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "engine.Init")
	defer timer.Stop()

	embEngine, err := buildEmbeddingEngine(cfg.Embedding)
	if err != nil {
		return nil, types.Wrap(types.KindFatal, "engine.Init", err)
	}

	dbPath := filepath.Join(cfg.StateDir, cfg.Memory.DBFile)
	store, err := memory.New(dbPath, embEngine, memory.Options{
		KeywordAlpha:    cfg.Memory.KeywordAlpha,
		HybridKWWeight:  cfg.Memory.HybridKWWeight,
		HybridSemWeight: cfg.Memory.HybridSemWeight,
		MaxContentBytes: cfg.Memory.MaxContentBytes,
	})
	if err != nil {
		return nil, err // already KindFatal-wrapped by memory.New
	}

	registry := analyzer.NewRegistry()
	registry.Register(golang.New())
	registry.Register(python.New())

	orch := orchestrator.New(registry, store, orchestrator.Options{
		Concurrency:      cfg.Analyzer.Concurrency,
		FileSizeCapBytes: cfg.Analyzer.FileSizeCapBytes,
		FileTimeoutSec:   cfg.Analyzer.FileTimeoutSec,
		ExcludePatterns:  cfg.Analyzer.ExcludePatterns,
		LanguageTimeout:  cfg.Analyzer.TimeoutFor,
	})

	fpDetector := falsepositive.New(store, falsepositive.DefaultConfig())
	proposer := fixer.New()

	sb := sandbox.New(sandbox.Config{
		WallBudgetSec: cfg.Sandbox.WallBudgetSec,
		NanoCPUs:      cfg.Sandbox.NanoCPUs,
		MemoryMB:      cfg.Sandbox.MemoryMB,
		NetworkMode:   cfg.Sandbox.NetworkMode,
	})

	cycleTracker := cycle.New(store)
	metricsRegistry := metrics.New()
	metricsRegistry.ObserveHealth(store.Health())

	pruner := pruning.New(store, pruning.Config{
		MaxAge:              daysToDuration(cfg.Pruning.MaxAgeDays),
		RefreshWindow:       daysToDuration(cfg.Pruning.RefreshWindowDays),
		QualityThreshold:    cfg.Pruning.QualityThreshold,
		RedundancyThreshold: 0.95,
		MaxRemovedPerRun:    cfg.Pruning.MaxRemovedPerRun,
		PruneFalsePositives: cfg.Pruning.PruneFalsePositives,
		AutoThreshold:       cfg.Pruning.AutoThreshold,
	})

	h := &Handle{
		cfg:           cfg,
		Store:         store,
		Registry:      registry,
		Embedding:     embEngine,
		Orchestrator:  orch,
		FalsePositive: fpDetector,
		Fixer:         proposer,
		Sandbox:       sb,
		Cycle:         cycleTracker,
		Pruning:       pruner,
		Metrics:       metricsRegistry,
	}

	autoApproveContexts := make(map[types.FileContext]bool, len(cfg.Safety.AutoApproveContexts))
	for _, c := range cfg.Safety.AutoApproveContexts {
		autoApproveContexts[types.FileContext(c)] = true
	}
	h.gateCfg = safety.Config{
		AutoApproveMinScore: cfg.Safety.AutoApproveMinScore,
		AutoApproveContexts: autoApproveContexts,
		BackupRetention:     cfg.Safety.BackupRetention,
	}
	h.gate = safety.New(store, sb, nil, h.gateCfg)

	if reports, err := pruner.MaybeAutoTrigger(context.Background()); err != nil {
		logging.Get(logging.CategoryBoot).Warn("auto-trigger pruning failed: %v", err)
	} else if len(reports) > 0 {
		logging.Boot("auto-trigger pruning ran across %d namespaces", len(reports))
	}

	logging.Boot("engine initialized state_dir=%s", cfg.StateDir)
	return h, nil
}

// Gate returns the Safety Gate, scoped to this handle's lifetime: the
// safety gate is a method on the handle, not free-floating. A non-nil
// approver (the CLI's stdin prompt) rebuilds the gate around that
// interactive collaborator; nil returns the current gate unchanged, which
// is auto-approve-only unless an approver was wired by an earlier call.
func (h *Handle) Gate(approver safety.Approver) *safety.Gate {
	if approver != nil {
		h.gate = safety.New(h.Store, h.Sandbox, approver, h.gateCfg)
	}
	return h.gate
}

// Shutdown releases every resource the handle owns. Safe to call once;
// callers should defer it immediately after a successful Init.
func (h *Handle) Shutdown() error {
	logging.Boot("engine shutting down")
	var firstErr error
	if h.Sandbox != nil {
		if err := h.Sandbox.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.Store != nil {
		if err := h.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	logging.CloseAll()
	return firstErr
}

func buildEmbeddingEngine(cfg config.EmbeddingConfig) (embedding.EmbeddingEngine, error) {
	switch cfg.Provider {
	case "", "offline-trigram":
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = 256
		}
		return embedding.NewTrigramEngine(dims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
