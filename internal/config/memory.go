package config

// MemoryConfig configures the Memory Engine (C1).
type MemoryConfig struct {
	DBFile          string  `yaml:"db_file"`
	KeywordAlpha    float64 `yaml:"keyword_alpha"`    // normalizes keyword hit counts to [0,1]
	HybridKWWeight  float64 `yaml:"hybrid_kw_weight"` // w_k, default 0.4
	HybridSemWeight float64 `yaml:"hybrid_sem_weight"` // w_s, default 0.6
	MaxContentBytes int     `yaml:"max_content_bytes"`
}

// EmbeddingConfig selects and configures the embedding provider (C2).
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
}
