// Package embedding maps text to fixed-dimension unit vectors for the
// Memory Engine's semantic search mode. The interface shape is kept
// pluggable (Embed/EmbedBatch/Dimensions/Name, HealthChecker) so a
// network-backed engine could be swapped in later, but the shipped
// implementation is fully offline: the engine must never cause network
// egress from the analysis or sandbox paths.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/argus-scan/argus/internal/logging"
)

// EmbeddingEngine generates vector embeddings for text.
type EmbeddingEngine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// HealthChecker is an optional interface for engines that can report
// availability before a caller commits to a batch operation.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and configures the embedding provider.
type Config struct {
	Provider   string `json:"provider"`
	Dimensions int    `json:"dimensions"`
}

// DefaultConfig returns the offline engine, the only provider wired by
// default, keeping the analysis and sandbox paths free of network egress.
func DefaultConfig() Config {
	return Config{Provider: "offline-trigram", Dimensions: 256}
}

// NewEngine builds an embedding engine from configuration.
func NewEngine(cfg Config) (EmbeddingEngine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("creating embedding engine provider=%s dims=%d", cfg.Provider, cfg.Dimensions)

	switch cfg.Provider {
	case "offline-trigram", "":
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = 256
		}
		return NewTrigramEngine(dims), nil
	default:
		logging.Get(logging.CategoryEmbedding).Error("unsupported embedding provider: %s", cfg.Provider)
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'offline-trigram')", cfg.Provider)
	}
}

// CosineSimilarity returns the cosine similarity between two vectors of
// equal length, in [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMag, bMag float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dotProduct / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// SimilarityResult is one hit from FindTopK.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the k most similar vectors in corpus to query, sorted
// descending by cosine similarity.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}

	for i := 0; i < len(results) && i < k; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Similarity > results[i].Similarity {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
