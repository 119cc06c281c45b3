package pruning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/argus-scan/argus/internal/embedding"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := memory.New(path, embedding.NewTrigramEngine(64), memory.DefaultOptions())
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAgeBased_DropsOldUntouchedMemories(t *testing.T) {
	now := time.Now()
	all := []types.Memory{
		{ID: 1, CreatedAt: now.Add(-200 * 24 * time.Hour), UpdatedAt: now.Add(-200 * 24 * time.Hour)},
		{ID: 2, CreatedAt: now.Add(-200 * 24 * time.Hour), UpdatedAt: now.Add(-1 * time.Hour)}, // recently touched, survives
		{ID: 3, CreatedAt: now, UpdatedAt: now},
	}
	p := New(nil, DefaultConfig())
	doomed := p.ageBased(all)
	if len(doomed) != 1 || doomed[0] != 1 {
		t.Fatalf("expected only id=1 doomed, got %v", doomed)
	}
}

func TestQuality_DefaultsNeutralAndWeightsConfidence(t *testing.T) {
	recent := types.Memory{UpdatedAt: time.Now(), Metadata: nil}
	if q := quality(recent); q < 0.45 || q > 0.55 {
		t.Fatalf("expected neutral default quality near 0.5, got %v", q)
	}

	lowConfidence := types.Memory{UpdatedAt: time.Now(), Metadata: map[string]interface{}{"user_confidence": 0.1}}
	if q := quality(lowConfidence); q > 0.2 {
		t.Fatalf("expected low quality for low confidence, got %v", q)
	}
}

func TestQualityBased_DropsBelowThreshold(t *testing.T) {
	all := []types.Memory{
		{ID: 1, UpdatedAt: time.Now(), Metadata: map[string]interface{}{"user_confidence": 0.05}},
		{ID: 2, UpdatedAt: time.Now(), Metadata: map[string]interface{}{"user_confidence": 0.95}},
	}
	cfg := DefaultConfig()
	cfg.QualityThreshold = 0.3
	p := New(nil, cfg)
	doomed := p.qualityBased(all)
	if len(doomed) != 1 || doomed[0] != 1 {
		t.Fatalf("expected only low-confidence id=1 doomed, got %v", doomed)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := cosineSimilarity(a, b); sim < 0.999 {
		t.Fatalf("expected identical vectors to have similarity ~1, got %v", sim)
	}
	c := []float32{0, 1, 0}
	if sim := cosineSimilarity(a, c); sim > 0.001 {
		t.Fatalf("expected orthogonal vectors to have similarity ~0, got %v", sim)
	}
}

func TestRedundancyBased_KeepsHighestQualityRepresentative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.StoreMemory(ctx, "global", "high quality duplicate", map[string]interface{}{"kind": "issue_pattern", "user_confidence": 0.9, "count": float64(3)})
	if err != nil {
		t.Fatalf("setup id1: %v", err)
	}
	id2, err := s.StoreMemory(ctx, "global", "low quality duplicate", map[string]interface{}{"kind": "issue_pattern", "user_confidence": 0.2, "count": float64(2)})
	if err != nil {
		t.Fatalf("setup id2: %v", err)
	}

	vec := []float32{1, 0, 0}
	all := []types.Memory{
		{ID: id1, Embedding: vec, Metadata: map[string]interface{}{"kind": "issue_pattern", "user_confidence": 0.9, "count": float64(3)}},
		{ID: id2, Embedding: vec, Metadata: map[string]interface{}{"kind": "issue_pattern", "user_confidence": 0.2, "count": float64(2)}},
	}
	p := New(s, DefaultConfig())
	doomed := p.redundancyBased(ctx, all)
	if len(doomed) != 1 || doomed[0] != id2 {
		t.Fatalf("expected lower-quality id=%d doomed, got %v", id2, doomed)
	}

	survivor, err := s.Get(id1)
	if err != nil {
		t.Fatalf("Get survivor: %v", err)
	}
	count, _ := asFloat(survivor.Metadata["count"])
	if count != 5 {
		t.Fatalf("expected merged count 3+2=5 on survivor, got %v", count)
	}
}

func TestRun_SkipsFalsePositivesNamespaceByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, types.NamespaceFalsePositive, "fp evidence", nil); err != nil {
		t.Fatalf("setup: %v", err)
	}

	p := New(s, DefaultConfig())
	report, err := p.Run(ctx, types.NamespaceFalsePositive, StrategyAge)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Removed != 0 {
		t.Fatalf("expected false-positives namespace to be skipped, removed=%d", report.Removed)
	}

	count, _ := s.Count(types.NamespaceFalsePositive)
	if count != 1 {
		t.Fatalf("expected memory to survive, count=%d", count)
	}
}

func TestMaybeAutoTrigger_NoOpBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StoreMemory(ctx, "global", "one memory", nil); err != nil {
		t.Fatalf("setup: %v", err)
	}

	p := New(s, DefaultConfig())
	reports, err := p.MaybeAutoTrigger(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reports != nil {
		t.Fatalf("expected no auto-trigger below threshold, got %v", reports)
	}
}
