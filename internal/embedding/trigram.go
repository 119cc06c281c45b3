package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/argus-scan/argus/internal/logging"
)

var _ EmbeddingEngine = (*TrigramEngine)(nil)

// TrigramEngine is the default, fully offline embedding engine. It maps
// text to a fixed-dimension vector by feature-hashing character trigrams
// into buckets and unit-normalizing the result. Deterministic and safe
// for concurrent use; requires no process or network.
type TrigramEngine struct {
	dims int
}

// NewTrigramEngine creates an engine producing vectors of the given
// dimensionality.
func NewTrigramEngine(dims int) *TrigramEngine {
	logging.Embedding("creating offline trigram embedding engine dims=%d", dims)
	return &TrigramEngine{dims: dims}
}

// Embed generates a unit-normalized embedding for a single text.
func (e *TrigramEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return hashTrigrams(text, e.dims), nil
}

// EmbedBatch generates embeddings for multiple texts. The engine has no
// internal batching advantage but satisfies the interface contract.
func (e *TrigramEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = hashTrigrams(t, e.dims)
	}
	return out, nil
}

// Dimensions returns the vector dimensionality.
func (e *TrigramEngine) Dimensions() int { return e.dims }

// Name returns the engine name.
func (e *TrigramEngine) Name() string { return "offline-trigram" }

// hashTrigrams builds a bag-of-trigrams vector: every overlapping
// 3-character window of the lowercased, whitespace-collapsed text is
// hashed (FNV-1a) into one of dims buckets, the sign of a second hash
// decides +1/-1, and the result is unit-normalized. Two texts sharing no
// trigrams produce orthogonal vectors; near-duplicate wording collides
// heavily, giving semantic-adjacent recall without any network call.
func hashTrigrams(text string, dims int) []float32 {
	norm := normalizeForEmbedding(text)
	vec := make([]float32, dims)

	if len(norm) < 3 {
		if len(norm) > 0 {
			addTrigram(vec, norm, dims)
		}
		return normalizeVector(vec)
	}

	runes := []rune(norm)
	for i := 0; i+3 <= len(runes); i++ {
		addTrigram(vec, string(runes[i:i+3]), dims)
	}
	return normalizeVector(vec)
}

func normalizeForEmbedding(text string) string {
	lower := strings.ToLower(text)
	return strings.Join(strings.Fields(lower), " ")
}

func addTrigram(vec []float32, trigram string, dims int) {
	bucket := fnv32a(trigram) % uint32(dims)

	signHash := fnv.New32()
	signHash.Write([]byte(trigram))
	signHash.Write([]byte{0xff})
	sign := float32(1)
	if signHash.Sum32()%2 == 0 {
		sign = -1
	}

	vec[bucket] += sign
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func normalizeVector(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
