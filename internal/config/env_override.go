package config

import "os"

// applyEnvOverrides applies the following environment variables, in
// order: state directory location, embedding-provider selection, log
// level, debug mode.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ARGUS_STATE_DIR"); dir != "" {
		c.StateDir = dir
	}
	if provider := os.Getenv("ARGUS_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if level := os.Getenv("ARGUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if os.Getenv("ARGUS_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}
