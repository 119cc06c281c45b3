// Package pruning implements the Pruning System (C11): four selectable
// strategies over the Memory Engine's namespaces, plus the mandatory
// auto-trigger that runs a conservative hybrid pass whenever any
// namespace's row count crosses a threshold. Removal itself is a single
// memory.Store.Delete transaction per run (crash-safe: either every row
// in the batch is gone or none are, and a half-applied vector index is
// rebuilt from the surviving rows by the Memory Engine's own crash
// recovery on next startup).
package pruning

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

// Strategy selects one of the four removal policies names.
type Strategy string

const (
	StrategyAge        Strategy = "age"
	StrategyRedundancy Strategy = "redundancy"
	StrategyQuality    Strategy = "quality"
	StrategyHybrid     Strategy = "hybrid"
)

// Config tunes a pruning run.
type Config struct {
	MaxAge              time.Duration
	RefreshWindow       time.Duration
	QualityThreshold    float64
	RedundancyThreshold float64 // cosine similarity above which two memories are considered duplicates
	MaxRemovedPerRun    int
	PruneFalsePositives bool
	AutoThreshold       int64
}

// DefaultConfig mirrors the stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxAge:              90 * 24 * time.Hour,
		RefreshWindow:       14 * 24 * time.Hour,
		QualityThreshold:    0.3,
		RedundancyThreshold: 0.95,
		MaxRemovedPerRun:    500,
		PruneFalsePositives: false,
		AutoThreshold:       10000,
	}
}

// Pruner runs strategies against one Memory Engine store.
type Pruner struct {
	store *memory.Store
	cfg   Config
}

func New(store *memory.Store, cfg Config) *Pruner {
	return &Pruner{store: store, cfg: cfg}
}

// Report summarizes one pruning run for the CLI's `argus prune` verb.
type Report struct {
	Namespace string
	Strategy  Strategy
	Removed   int
	Kept      int
}

// Run executes strategy against namespace, removing matched memories in a
// single Delete transaction capped at cfg.MaxRemovedPerRun.
func (p *Pruner) Run(ctx context.Context, namespace string, strategy Strategy) (Report, error) {
	if namespace == types.NamespaceFalsePositive && !p.cfg.PruneFalsePositives {
		logging.Pruning("skipping false-positives namespace (prune_false_positives=false)")
		return Report{Namespace: namespace, Strategy: strategy}, nil
	}

	all, err := p.store.AllInNamespace(namespace)
	if err != nil {
		return Report{}, err
	}

	var doomed []uint64
	switch strategy {
	case StrategyAge:
		doomed = p.ageBased(all)
	case StrategyRedundancy:
		doomed = p.redundancyBased(ctx, all)
	case StrategyQuality:
		doomed = p.qualityBased(all)
	case StrategyHybrid, "":
		doomed = p.hybrid(ctx, all)
	default:
		doomed = p.hybrid(ctx, all)
	}

	if len(doomed) > p.cfg.MaxRemovedPerRun && p.cfg.MaxRemovedPerRun > 0 {
		logging.Pruning("capping removal from %d to %d rows (max_removed_per_run)", len(doomed), p.cfg.MaxRemovedPerRun)
		doomed = doomed[:p.cfg.MaxRemovedPerRun]
	}

	if len(doomed) == 0 {
		return Report{Namespace: namespace, Strategy: strategy, Kept: len(all)}, nil
	}

	if err := p.store.Delete(doomed); err != nil {
		return Report{}, err
	}

	logging.Pruning("namespace=%s strategy=%s removed=%d kept=%d", namespace, strategy, len(doomed), len(all)-len(doomed))
	return Report{Namespace: namespace, Strategy: strategy, Removed: len(doomed), Kept: len(all) - len(doomed)}, nil
}

// ageBased drops memories older than MaxAge whose UpdatedAt (the closest
// proxy this engine has for "last read or matched") also falls outside
// RefreshWindow: a stale-but-recently-touched memory survives.
func (p *Pruner) ageBased(all []types.Memory) []uint64 {
	now := time.Now()
	var doomed []uint64
	for _, m := range all {
		if now.Sub(m.CreatedAt) <= p.cfg.MaxAge {
			continue
		}
		if now.Sub(m.UpdatedAt) <= p.cfg.RefreshWindow {
			continue
		}
		doomed = append(doomed, m.ID)
	}
	return doomed
}

// redundancyBased clusters memories of the same metadata.kind whose
// embeddings are near-duplicates (cosine similarity >= threshold) and
// marks every cluster member but the highest-quality representative for
// removal. Memories with no embedding are left untouched: clustering them
// by content alone would risk conflating unrelated findings that only
// happen to share a type. The removed members' metadata.count is folded
// into the survivor via Update before the cluster is handed off for
// deletion, so a redundancy pass never silently loses the aggregate
// count a caller relies on for confidence/quality scoring.
func (p *Pruner) redundancyBased(ctx context.Context, all []types.Memory) []uint64 {
	byKind := make(map[string][]types.Memory)
	for _, m := range all {
		if len(m.Embedding) == 0 {
			continue
		}
		byKind[kindOf(m)] = append(byKind[kindOf(m)], m)
	}

	var doomed []uint64
	for _, group := range byKind {
		clusters := clusterBySimilarity(group, p.cfg.RedundancyThreshold)
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			sort.Slice(cluster, func(i, j int) bool {
				return quality(cluster[i]) > quality(cluster[j])
			})
			survivor := cluster[0]
			removed := cluster[1:]
			if err := p.mergeCounts(ctx, survivor, removed); err != nil {
				logging.Get(logging.CategoryPruning).Warn("failed to merge counts into survivor id=%d: %v", survivor.ID, err)
			}
			for _, m := range removed {
				doomed = append(doomed, m.ID)
			}
		}
	}
	return doomed
}

// mergeCounts folds each removed memory's metadata.count (defaulting to 1
// when absent) into survivor's own count and persists the result, so the
// aggregate usage signal a duplicate accrued isn't lost when it's deleted.
func (p *Pruner) mergeCounts(ctx context.Context, survivor types.Memory, removed []types.Memory) error {
	total, _ := asFloat(survivor.Metadata["count"])
	if total < 1 {
		total = 1
	}
	for _, m := range removed {
		c, ok := asFloat(m.Metadata["count"])
		if !ok || c < 1 {
			c = 1
		}
		total += c
	}

	merged := make(map[string]interface{}, len(survivor.Metadata)+1)
	for k, v := range survivor.Metadata {
		merged[k] = v
	}
	merged["count"] = total

	return p.store.Update(ctx, survivor.ID, nil, merged)
}

// qualityBased drops memories whose derived quality score falls below
// QualityThreshold.
func (p *Pruner) qualityBased(all []types.Memory) []uint64 {
	var doomed []uint64
	for _, m := range all {
		if quality(m) < p.cfg.QualityThreshold {
			doomed = append(doomed, m.ID)
		}
	}
	return doomed
}

// hybrid applies redundancy, then quality, then age in sequence against
// the surviving set, so a memory removed by an earlier pass is never
// double-counted by a later one.
func (p *Pruner) hybrid(ctx context.Context, all []types.Memory) []uint64 {
	removed := make(map[uint64]bool)
	remaining := all

	for _, id := range p.redundancyBased(ctx, remaining) {
		removed[id] = true
	}
	remaining = filterRemoved(remaining, removed)

	for _, id := range p.qualityBased(remaining) {
		removed[id] = true
	}
	remaining = filterRemoved(remaining, removed)

	for _, id := range p.ageBased(remaining) {
		removed[id] = true
	}

	out := make([]uint64, 0, len(removed))
	for id := range removed {
		out = append(out, id)
	}
	return out
}

func filterRemoved(all []types.Memory, removed map[uint64]bool) []types.Memory {
	out := make([]types.Memory, 0, len(all))
	for _, m := range all {
		if !removed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func kindOf(m types.Memory) string {
	if m.Metadata == nil {
		return ""
	}
	if k, ok := m.Metadata["kind"].(string); ok {
		return k
	}
	return ""
}

// quality derives a [0,1] score from feedback confidence, a citation/use
// count, and recency. Memories with no signal default to a neutral 0.5
// rather than zero, so untouched-but-plausible memories aren't the first
// to go under a quality pass.
func quality(m types.Memory) float64 {
	score := 0.5
	if m.Metadata != nil {
		if conf, ok := asFloat(m.Metadata["user_confidence"]); ok {
			score = conf
		}
		if count, ok := asFloat(m.Metadata["count"]); ok && count > 1 {
			score = math.Min(1.0, score+0.05*math.Log2(count))
		}
	}
	age := time.Since(m.UpdatedAt)
	recencyPenalty := math.Min(0.3, age.Hours()/(24*365))
	score -= recencyPenalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// clusterBySimilarity does a simple greedy single-link clustering: every
// memory joins the first existing cluster whose representative (its first
// member) it's similar enough to, else starts a new one. Adequate for the
// modest per-namespace volumes this engine targets; not a substitute for
// a real ANN-backed clustering pass at very large scale.
func clusterBySimilarity(items []types.Memory, threshold float64) [][]types.Memory {
	var clusters [][]types.Memory
	for _, m := range items {
		placed := false
		for i, cluster := range clusters {
			if cosineSimilarity(m.Embedding, cluster[0].Embedding) >= threshold {
				clusters[i] = append(clusters[i], m)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []types.Memory{m})
		}
	}
	return clusters
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MaybeAutoTrigger runs a conservative hybrid pass over every namespace
// when the engine-wide memory count exceeds AutoThreshold. Called once
// at startup so a long-idle install doesn't accumulate unbounded memory.
func (p *Pruner) MaybeAutoTrigger(ctx context.Context) ([]Report, error) {
	total, err := p.store.Count("")
	if err != nil {
		return nil, err
	}
	if total <= p.cfg.AutoThreshold {
		return nil, nil
	}
	logging.Pruning("auto-trigger: total memory count %d exceeds threshold %d, running hybrid", total, p.cfg.AutoThreshold)

	namespaces, err := p.store.ListNamespaces()
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, ns := range namespaces {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}
		report, err := p.Run(ctx, ns, StrategyHybrid)
		if err != nil {
			logging.Get(logging.CategoryPruning).Warn("auto-trigger pruning failed for namespace %s: %v", ns, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
