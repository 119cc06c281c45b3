package config

// LanguageProfile narrows per-language overrides (a reference
// ShardProfile pattern) to the settings the orchestrator and analyzers
// actually need.
type LanguageProfile struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// AnalyzerConfig configures the Analyzer Orchestrator (C4).
type AnalyzerConfig struct {
	Concurrency      int                        `yaml:"concurrency"` // 0 => CPU count
	FileSizeCapBytes int64                      `yaml:"file_size_cap_bytes"`
	FileTimeoutSec   int                        `yaml:"file_timeout_sec"`
	ExcludePatterns  []string                   `yaml:"exclude_patterns"`
	LanguageProfiles map[string]LanguageProfile `yaml:"language_profiles"`
	WatchMode        bool                       `yaml:"watch_mode"`
}

// TimeoutFor returns the per-file analysis timeout for languageID,
// falling back to AnalyzerConfig.FileTimeoutSec when no profile is set.
func (a AnalyzerConfig) TimeoutFor(languageID string) int {
	if p, ok := a.LanguageProfiles[languageID]; ok && p.TimeoutSec > 0 {
		return p.TimeoutSec
	}
	return a.FileTimeoutSec
}
