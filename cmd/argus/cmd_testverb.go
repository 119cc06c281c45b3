package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/config"
	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/types"
)

var testTargetFile string

var testCmd = &cobra.Command{
	Use:   "test <project-path>",
	Short: "Run the project's declared build/test command inside the sandbox, unmodified",
	Long: `test validates that a project currently builds (and, if declared,
passes its test command) inside the same isolated container the fix
pipeline's Layer 4 uses, without proposing or applying any change. Useful
to confirm a project's sandbox policy descriptor resolves correctly
before running "argus fix".`,
	Args: cobra.ArbitraryArgs,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVar(&testTargetFile, "file", "", "Source file to stage unchanged (default: first .go or .py file found under the project)")
}

func runTest(cmd *cobra.Command, args []string) error {
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

	target := testTargetFile
	if target == "" {
		target, err = findAnyBuildFile(project, cfg)
		if err != nil {
			return ioErr(err)
		}
	}
	absTarget := filepath.Join(project, target)
	content, err := os.ReadFile(absTarget)
	if err != nil {
		return ioErr(err)
	}

	// A zero-length span at the very start of the file is a true no-op:
	// Apply's precondition (expected original text present at the span)
	// is trivially satisfied and the post-apply buffer equals content
	// exactly, so the sandbox validates the project's current baseline
	// rather than a hypothetical edit.
	noop := types.FixProposal{
		ID: "baseline-check",
		Issue: types.Issue{
			Type: "baseline_check",
			File: target,
		},
		OriginalSpan: types.Span{Path: target, Line: 1, Col: 1, Len: 0},
	}

	run, err := h.Sandbox.Validate(cmd.Context(), project, noop, content)
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

// findAnyBuildFile picks a plausible file for the baseline check when
// --file is omitted: the first .go or .py file found walking project.
func findAnyBuildFile(project string, cfg *config.Config) (string, error) {
	var found string
	err := filepath.Walk(project, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || found != "" {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".go" || ext == ".py" {
			rel, relErr := filepath.Rel(project, path)
			if relErr == nil {
				found = rel
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no .go or .py file found under %s; pass --file", project)
	}
	return found, nil
}
