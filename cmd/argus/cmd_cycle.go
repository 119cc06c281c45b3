package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/cycle"
	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/history"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle <project-path>",
	Short: "Compare the two most recent scans of a project and classify resolved issues",
	Long: `cycle loads the two most recent recorded ScanResults for the project
(written by "argus analyze"), compares them by fingerprint, and reports
resolved and new issues with fix rates. This verb has no record of the
fixes applied between the two scans, so every resolved issue is counted
as a manual fix and the automated count is always zero.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCycle,
}

func runCycle(cmd *cobra.Command, args []string) error {
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

	prev, cur := history.LastTwo(cfg.StateDir, project)
	if prev == nil || cur == nil {
		return usageErr("need at least two recorded scans for %q; run \"argus analyze\" twice first", project)
	}

	// This CLI does not itself track per-run applied fixes across
	// process invocations (that ledger lives in the safety gate's audit
	// log for the run that applied them); a standalone `cycle` verb
	// conservatively treats every resolved issue as unattributed and
	// lets the Tracker's own persisted memory (from the run that did
	// apply fixes) stand as the historical record.
	record := h.Cycle.Compare(cmd.Context(), project, *prev, *cur, nil)
	rates := cycle.ComputeRates(record)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"record": record, "rates": rates})
	}
	fmt.Printf("resolved=%d new=%d manual=%d automated=%d\n",
		len(record.Resolved), len(record.New), len(record.ManualFixes), len(record.AutomatedFixes))
	fmt.Printf("manual_fix_rate=%.2f automated_fix_rate=%.2f learning_velocity=%.2f\n",
		rates.ManualFixRate, rates.AutomatedFixRate, rates.LearningVelocity)
	return nil
}
