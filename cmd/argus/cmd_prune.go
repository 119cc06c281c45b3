package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/pruning"
)

var (
	pruneNamespace string
	pruneStrategy  string
)

var pruneCmd = &cobra.Command{
	Use:   "prune <project-path>",
	Short: "Run a pruning strategy (age, redundancy, quality, hybrid) against a namespace",
	Args:  cobra.ArbitraryArgs,
	RunE:  runPrune,
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <project-path>",
	Short: "Force a hybrid pruning pass across every namespace, regardless of the auto-trigger threshold",
	Args:  cobra.ArbitraryArgs,
	RunE:  runConsolidate,
}

func init() {
	pruneCmd.Flags().StringVar(&pruneNamespace, "namespace", "global", "Namespace to prune")
	pruneCmd.Flags().StringVar(&pruneStrategy, "strategy", "hybrid", "Strategy: age, redundancy, quality, hybrid")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if _, err := requireProjectPath(args); err != nil {
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

	strategy := pruning.Strategy(pruneStrategy)
	switch strategy {
	case pruning.StrategyAge, pruning.StrategyRedundancy, pruning.StrategyQuality, pruning.StrategyHybrid:
	default:
		return usageErr("unknown pruning strategy %q", pruneStrategy)
	}

	report, err := h.Pruning.Run(cmd.Context(), pruneNamespace, strategy)
	if err != nil {
		return internalErr(err)
	}
	printReports([]pruning.Report{report})
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	if _, err := requireProjectPath(args); err != nil {
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

	namespaces, err := h.Store.ListNamespaces()
	if err != nil {
		return internalErr(err)
	}
	var reports []pruning.Report
	for _, ns := range namespaces {
		report, err := h.Pruning.Run(cmd.Context(), ns, pruning.StrategyHybrid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: consolidate failed for namespace %s: %v\n", ns, err)
			continue
		}
		reports = append(reports, report)
	}
	printReports(reports)
	return nil
}

func printReports(reports []pruning.Report) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
		return
	}
	for _, r := range reports {
		fmt.Printf("%s/%s: removed=%d kept=%d\n", r.Namespace, r.Strategy, r.Removed, r.Kept)
	}
}
