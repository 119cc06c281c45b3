package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/config"
	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/history"
	"github.com/argus-scan/argus/internal/orchestrator"
	"github.com/argus-scan/argus/internal/types"
)

var analyzeWatch bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-path>",
	Short: "Walk a project, run every applicable analyzer, and report findings",
	Args:  cobra.ArbitraryArgs,
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeWatch, "watch", false, "Re-scan on file change until interrupted (Ctrl-C)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	project, err := requireProjectPath(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := engine.Init(cfg)
	if err != nil {
		return internalErr(err)
	}
	defer h.Shutdown()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if analyzeWatch {
		return runAnalyzeWatch(ctx, h, project, cfg)
	}

	result, err := h.Orchestrator.Scan(ctx, project)
	if err != nil {
		return ioErr(err)
	}
	if err := history.Record(cfg.StateDir, project, *result); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record scan history: %v\n", err)
	}
	h.Metrics.ObserveScan(*result, result.EndedAt.Sub(result.StartedAt).Seconds())

	printScanResult(result)
	findingsExit(len(result.Issues) > 0)
	return nil
}

// runAnalyzeWatch re-triggers a full scan on every debounced filesystem
// change until SIGINT/SIGTERM. Each re-scan is an ordinary
// Orchestrator.Scan, recorded into history like any other.
func runAnalyzeWatch(ctx context.Context, h *engine.Handle, project string, cfg *config.Config) error {
	watcher, err := orchestrator.NewWatcher(project, cfg.Analyzer.ExcludePatterns)
	if err != nil {
		return ioErr(err)
	}
	defer watcher.Stop()

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scan := func() {
		result, err := h.Orchestrator.Scan(sigCtx, project)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
			return
		}
		if err := history.Record(cfg.StateDir, project, *result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record scan history: %v\n", err)
		}
		h.Metrics.ObserveScan(*result, result.EndedAt.Sub(result.StartedAt).Seconds())
		printScanResult(result)
	}

	scan()
	if err := watcher.Start(sigCtx, scan); err != nil {
		return ioErr(err)
	}
	<-sigCtx.Done()
	return nil
}

func printScanResult(result *types.ScanResult) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	fmt.Printf("scan %s: %d issues across %s\n", result.ScanID, len(result.Issues), result.Project)
	for _, issue := range result.Issues {
		line := uint32(0)
		if issue.Line != nil {
			line = *issue.Line
		}
		fmt.Printf("  [%s] %s:%d %s: %s\n", issue.Severity, issue.File, line, issue.Type, issue.Description)
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("skipped %d files\n", len(result.Skipped))
	}
}
