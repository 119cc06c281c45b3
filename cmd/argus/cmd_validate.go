package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/diffutil"
	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/types"
)

var validateProposalFile string

var validateCmd = &cobra.Command{
	Use:   "validate <project-path>",
	Short: "Run Layer 4 (the sandbox) standalone against an externally supplied FixProposal JSON file",
	Long: `validate reads a single types.FixProposal from --proposal-file, computes
the post-apply buffer exactly as the safety gate would, and runs it
through the sandbox. It does not perform Layers 1-3 and never writes to
the project; it exists for inspecting sandbox behavior in isolation
(e.g. when authoring a new fix recipe).`,
	Args: cobra.ArbitraryArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateProposalFile, "proposal-file", "", "Path to a JSON-encoded types.FixProposal (required)")
	validateCmd.MarkFlagRequired("proposal-file")
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	data, err := os.ReadFile(validateProposalFile)
	if err != nil {
		return ioErr(err)
	}
	var proposal types.FixProposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return usageErr("invalid proposal JSON: %v", err)
	}

	absPath := proposal.OriginalSpan.Path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(project, absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return ioErr(err)
	}
	postApply, err := diffutil.Apply(content, proposal.OriginalSpan, proposal.OriginalText, proposal.ReplacementText)
	if err != nil {
		return safetyErr(err)
	}

	run, err := h.Sandbox.Validate(cmd.Context(), project, proposal, postApply)
	if err != nil {
		return internalErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
	} else {
		fmt.Printf("outcome=%s wall_ms=%d violations=%v\n", run.Outcome, run.WallMS, run.Violations)
	}
	if run.Outcome != types.SandboxOK {
		return safetyErr(fmt.Errorf("sandbox outcome %s", run.Outcome))
	}
	return nil
}
