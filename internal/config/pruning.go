package config

// PruningConfig configures the Pruning System (C11).
type PruningConfig struct {
	Strategy            string  `yaml:"strategy"` // age | redundancy | quality | hybrid
	AutoThreshold       int64   `yaml:"auto_threshold"`
	MaxAgeDays          int     `yaml:"max_age_days"`
	RefreshWindowDays   int     `yaml:"refresh_window_days"`
	QualityThreshold    float64 `yaml:"quality_threshold"`
	MaxRemovedPerRun    int     `yaml:"max_removed_per_run"`
	PruneFalsePositives bool    `yaml:"prune_false_positives"`
}
