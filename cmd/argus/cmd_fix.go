package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/safety"
	"github.com/argus-scan/argus/internal/types"
)

var (
	fixDryRun bool
	fixAuto   bool
)

var fixCmd = &cobra.Command{
	Use:   "fix <project-path>",
	Short: "Propose mechanical fixes for scanned issues and run them through the safety gate",
	Args:  cobra.ArbitraryArgs,
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "List the proposals without running them through the safety gate; never writes")
	fixCmd.Flags().BoolVar(&fixAuto, "auto", false, "Non-interactive: only apply proposals the gate auto-approves, defer the rest")
}

var _ safety.Approver = (*stdinApprover)(nil)

// stdinApprover is the CLI's interactive Layer 2 collaborator: it prints
// the proposal and reads approve/reject/defer from stdin. Cancellable
// via ctx, so a caller can abandon a pending approval prompt.
type stdinApprover struct {
	reader *bufio.Reader
}

func newStdinApprover() *stdinApprover {
	return &stdinApprover{reader: bufio.NewReader(os.Stdin)}
}

func (a *stdinApprover) Approve(ctx context.Context, proposal types.FixProposal) (types.ApprovalRecord, error) {
	fmt.Printf("\nproposal %s for %s:%v (%s, safety_score=%d)\n",
		proposal.ID, proposal.Issue.File, proposal.OriginalSpan.Line, proposal.Issue.Type, proposal.SafetyScore)
	fmt.Printf("  - %s\n  + %s\n", proposal.OriginalText, proposal.ReplacementText)
	fmt.Printf("  rationale: %s\n", proposal.Rationale)
	fmt.Print("approve/reject/defer [a/r/d]? ")

	type answer struct {
		line string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		line, err := a.reader.ReadString('\n')
		done <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return types.ApprovalRecord{}, ctx.Err()
	case ans := <-done:
		if ans.err != nil {
			return types.ApprovalRecord{}, ans.err
		}
		decision := types.DecisionDefer
		switch strings.ToLower(strings.TrimSpace(ans.line)) {
		case "a", "approve":
			decision = types.DecisionApprove
		case "r", "reject":
			decision = types.DecisionReject
		}
		return types.ApprovalRecord{
			ProposalID:     proposal.ID,
			Fingerprint:    proposal.Issue.Fingerprint,
			Decision:       decision,
			UserConfidence: 1.0,
		}, nil
	}
}

func runFix(cmd *cobra.Command, args []string) error {
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

	scan, err := h.Orchestrator.Scan(ctx, project)
	if err != nil {
		return ioErr(err)
	}

	var approver safety.Approver
	if !fixAuto && !fixDryRun {
		approver = newStdinApprover()
	}
	gate := h.Gate(approver)

	results := make([]fixOutcome, 0, len(scan.Issues))
	refused := false
	for _, issue := range scan.Issues {
		if gate.Compromised() {
			break
		}

		verdict, err := h.FalsePositive.Score(ctx, issue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: fp scoring failed for %s: %v\n", issue.Fingerprint, err)
		} else if verdict.IsFalsePositive {
			continue
		}

		absPath := issue.File
		if !isAbs(absPath) {
			absPath = project + string(os.PathSeparator) + issue.File
		}
		content, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}

		proposal, err := h.Fixer.Propose(content, issue)
		if err != nil || proposal == nil {
			continue
		}

		if fixDryRun {
			results = append(results, fixOutcome{Proposal: *proposal, Outcome: "dry_run_skipped_apply"})
			continue
		}

		res := gate.Evaluate(ctx, *proposal, project)
		results = append(results, fixOutcome{Proposal: *proposal, Outcome: string(res.Outcome)})
		if res.Outcome == safety.OutcomeRejectPattern || res.Outcome == safety.OutcomeSandboxRejected {
			refused = true
		}
	}

	printFixResults(results)
	if gate.Compromised() {
		return safetyErr(types.ErrIntegrityViolation)
	}
	if refused {
		return safetyErr(fmt.Errorf("one or more proposals refused by the safety gate"))
	}
	findingsExit(len(results) > 0)
	return nil
}

type fixOutcome struct {
	Proposal types.FixProposal `json:"proposal"`
	Outcome  string            `json:"outcome"`
}

func printFixResults(results []fixOutcome) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
		return
	}
	for _, r := range results {
		fmt.Printf("%s %s: %s\n", r.Outcome, r.Proposal.ID, r.Proposal.Issue.File)
	}
}

func isAbs(p string) bool {
	return len(p) > 0 && p[0] == os.PathSeparator
}
