package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCLILogger builds a stderr-facing zap logger for human-readable
// progress output, separate from the categorized file logs above.
// verbose enables debug-level output. cmd/argus builds its own zap
// logger in main.go and does not call this.
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.TimeKey = ""
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
