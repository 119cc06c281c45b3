// Package main implements the argus CLI - a static analysis engine with
// persistent semantic memory and safe automated fix application.
//
// This file is the entry point and command registration hub. Each verb's
// implementation lives in its own cmd_*.go file for maintainability.
//
// # File Index
//
//   - main.go          - entry point, rootCmd, global flags, exit codes
//   - cmd_analyze.go   - analyzeCmd: walk + analyze + persist a ScanResult
//   - cmd_fix.go       - fixCmd: propose and run surviving issues through the safety gate
//   - cmd_train.go     - trainCmd: record false-positive feedback into memory
//   - cmd_stats.go     - statsCmd: memory health + histogram summary
//   - cmd_prune.go     - pruneCmd: run a pruning strategy against a namespace
//   - cmd_cycle.go     - cycleCmd: compare two scans, classify manual fixes
//   - cmd_testverb.go  - testCmd: run a project's declared test command standalone
//   - cmd_validate.go  - validateCmd: sandbox-validate a single proposal file
//   - cmd_demo.go      - demoCmd: end-to-end walkthrough on a scratch fixture
//   - cmd_prune.go     - pruneCmd, consolidateCmd: pruning strategies and forced consolidation
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/argus-scan/argus/internal/config"
	"github.com/argus-scan/argus/internal/logging"
)

// Exit codes for the process: 0 clean, 1 findings present, 2 usage
// error, 3 I/O error, 4 safety refused, 5 internal error.
const (
	exitSuccessClean   = 0
	exitSuccessFindings = 1
	exitUsageError     = 2
	exitIOError        = 3
	exitSafetyRefused  = 4
	exitInternalError  = 5
)

var (
	verbose    bool
	configPath string
	jsonOutput bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "argus - multi-language static analysis with persistent semantic memory",
	Long: `argus discovers issues via pluggable per-language analyzers, indexes
every finding and learned pattern in a hybrid keyword+vector memory store
that survives across runs and projects, proposes mechanical fixes for a
subset of issues, and applies those fixes only after a four-layer
defense-in-depth safety gate (pattern scan, approval with learned trust,
emergency re-check, isolated build/run sandbox).

Every verb that touches a project requires an explicit path; none
defaults to the current directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to argus config YAML (default: <state-dir>/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", true, "Emit canonical JSON output (text is secondary)")

	rootCmd.AddCommand(
		analyzeCmd,
		fixCmd,
		trainCmd,
		statsCmd,
		pruneCmd,
		cycleCmd,
		testCmd,
		validateCmd,
		demoCmd,
		consolidateCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to its process exit code. A
// *cliError carries an explicit code; anything else is treated as an
// internal error (code 5).
func exitCodeFor(err error) int {
	var ce *cliError
	if e, ok := err.(*cliError); ok {
		ce = e
	}
	if ce != nil {
		return ce.code
	}
	return exitInternalError
}

// cliError pairs an error with the exit code a verb wants cobra to exit
// with, since cobra itself has no notion of this exit code taxonomy.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func usageErr(format string, args ...interface{}) error {
	return &cliError{code: exitUsageError, err: fmt.Errorf(format, args...)}
}

func ioErr(err error) error {
	return &cliError{code: exitIOError, err: err}
}

func safetyErr(err error) error {
	return &cliError{code: exitSafetyRefused, err: err}
}

func internalErr(err error) error {
	return &cliError{code: exitInternalError, err: err}
}

func findingsExit(found bool) {
	if found {
		os.Exit(exitSuccessFindings)
	}
	os.Exit(exitSuccessClean)
}

// loadConfig resolves the engine config for a project, honoring
// --config and the ARGUS_STATE_DIR / ARGUS_EMBEDDING_PROVIDER /
// ARGUS_LOG_LEVEL environment overrides (internal/config.Load already
// applies the env overrides; this just picks the file path).
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		stateDir := os.Getenv("ARGUS_STATE_DIR")
		if stateDir == "" {
			cfg := config.DefaultConfig()
			stateDir = cfg.StateDir
		}
		path = filepath.Join(stateDir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, ioErr(err)
	}
	if err := logging.Initialize(cfg.StateDir); err != nil {
		return nil, ioErr(err)
	}
	cfg.ApplyLogging()
	return cfg, nil
}

// requireProjectPath validates that a verb received an explicit project
// path argument; no verb falls back to the current working directory.
func requireProjectPath(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", usageErr("a project path is required")
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", usageErr("invalid project path %q: %v", args[0], err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", ioErr(fmt.Errorf("project path %q: %w", args[0], err))
	}
	if !info.IsDir() {
		return "", usageErr("project path %q is not a directory", args[0])
	}
	return abs, nil
}
