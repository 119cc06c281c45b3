// Package falsepositive implements the False-Positive Detector (C6):
// scores a candidate Issue against the Memory Engine's semantically
// similar past issue/fp patterns plus a context prior, and records user
// feedback for the learning loop. Grounded on a prior retrieval
// shape in internal/store/local_knowledge.go (semantic similarity search
// feeding a weighted confidence score) generalized from knowledge-base
// lookup to issue/pattern scoring.
package falsepositive

import (
	"context"
	"fmt"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

// Verdict is the detector's output for one issue.
type Verdict struct {
	IsFalsePositive bool     `json:"is_false_positive"`
	Confidence      float32  `json:"confidence"`
	Reasons         []string `json:"reasons"`
}

// Config tunes the detector. SuppressThreshold defaults to the
// 0.85; contextPriors give a head start for issue types that are
// commonly benign in a particular FileContext (e.g. mutable-default
// warnings inside test fixtures).
type Config struct {
	SuppressThreshold float32
	TopK              int
	ContextPriors     map[string]map[types.FileContext]float32 // issue.Type -> context -> prior
}

// DefaultConfig returns the baseline thresholds and context priors,
// biased toward suppressing mutable-default warnings in test fixtures.
func DefaultConfig() Config {
	return Config{
		SuppressThreshold: 0.85,
		TopK:              10,
		ContextPriors: map[string]map[types.FileContext]float32{
			"mutable_default_argument": {types.ContextTest: 0.3, types.ContextDemo: 0.2},
			"naked_panic":              {types.ContextTest: 0.25},
			"todo_comment":             {types.ContextDemo: 0.15},
		},
	}
}

// Detector scores issues for likely false-positiveness using memory
// search; it never deletes evidence, only adds ( "learning
// must never delete evidence").
type Detector struct {
	store *memory.Store
	cfg   Config
}

// New builds a Detector over store.
func New(store *memory.Store, cfg Config) *Detector {
	return &Detector{store: store, cfg: cfg}
}

// Score retrieves the top-K semantically similar past issues tagged
// fp_pattern and issue_pattern, combines weighted evidence with a
// context prior, and returns a Verdict. Suppression only happens at
// confidence >= cfg.SuppressThreshold.
func (d *Detector) Score(ctx context.Context, issue types.Issue) (Verdict, error) {
	timer := logging.StartTimer(logging.CategoryFalsePositive, "Score")
	defer timer.Stop()

	query := fmt.Sprintf("%s: %s", issue.Type, issue.Description)

	results, err := d.store.Search(ctx, types.NamespaceFalsePositive, query, d.topK(), 0, memory.ModeHybrid)
	if err != nil {
		return Verdict{}, types.Wrap(types.KindMemory, "falsepositive.Score", err)
	}

	var positiveEvidence, negativeEvidence float64
	var reasons []string
	for _, r := range results {
		kind, _ := r.Metadata["kind"].(string)
		matchType, _ := r.Metadata["type"].(string)
		matchCtx, _ := r.Metadata["context"].(string)

		weight := r.Score
		switch kind {
		case string(types.PatternFP):
			if matchType == issue.Type {
				positiveEvidence += weight
				reasons = append(reasons, fmt.Sprintf("past confirmed false positive of type %q (score %.2f)", matchType, weight))
			} else if matchCtx == string(issue.Context) {
				positiveEvidence += weight * 0.4
			}
		case string(types.PatternIssue):
			if matchType == issue.Type {
				negativeEvidence += weight
				reasons = append(reasons, fmt.Sprintf("past confirmed valid issue of type %q (score %.2f)", matchType, weight))
			}
		}
	}

	retrieved := positiveEvidence + negativeEvidence
	prior := float64(d.contextPrior(issue))
	if prior > 0 {
		positiveEvidence += prior
		reasons = append(reasons, fmt.Sprintf("context prior: %s issues in %s context skew benign", issue.Type, issue.Context))
	}

	total := positiveEvidence + negativeEvidence
	var confidence float64
	if total > 0 {
		confidence = positiveEvidence / total
	}
	// A context prior alone (no retrieved evidence) still contributes
	// some confidence, scaled down since it is not corroborated by history.
	if retrieved == 0 && prior > 0 {
		confidence = prior * 0.5
	}

	v := Verdict{
		Confidence:      float32(confidence),
		IsFalsePositive: confidence >= float64(d.cfg.SuppressThreshold),
		Reasons:         reasons,
	}
	logging.FalsePositiveDebug("scored issue type=%s context=%s -> confidence=%.3f suppress=%v",
		issue.Type, issue.Context, confidence, v.IsFalsePositive)
	return v, nil
}

func (d *Detector) contextPrior(issue types.Issue) float32 {
	if byCtx, ok := d.cfg.ContextPriors[issue.Type]; ok {
		return byCtx[issue.Context]
	}
	return 0
}

func (d *Detector) topK() int {
	if d.cfg.TopK <= 0 {
		return 10
	}
	return d.cfg.TopK
}

// RecordFeedback stores a new memory in the false-positives namespace.
//, feedback is additive only — there is no delete path
// here, keeping trust monotone in history until explicit pruning.
func (d *Detector) RecordFeedback(ctx context.Context, issue types.Issue, isFalsePositive bool, reason string, userConfidence float32) (uint64, error) {
	kind := types.PatternIssue
	if isFalsePositive {
		kind = types.PatternFP
	}
	content := fmt.Sprintf("%s: %s", issue.Type, issue.Description)
	meta := map[string]interface{}{
		"kind":            string(kind),
		"type":            issue.Type,
		"context":         string(issue.Context),
		"fingerprint":     issue.Fingerprint,
		"reason":          reason,
		"user_confidence": userConfidence,
	}
	id, err := d.store.StoreMemory(ctx, types.NamespaceFalsePositive, content, meta)
	if err != nil {
		return 0, types.Wrap(types.KindMemory, "falsepositive.RecordFeedback", err)
	}
	logging.FalsePositive("recorded feedback fingerprint=%s is_fp=%v confidence=%.2f", issue.Fingerprint, isFalsePositive, userConfidence)
	return id, nil
}
