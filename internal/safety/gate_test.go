package safety

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

type fakeSandbox struct {
	outcome types.SandboxOutcome
	err     error
}

func (f *fakeSandbox) Validate(ctx context.Context, project string, proposal types.FixProposal, postApply []byte) (types.SandboxRun, error) {
	return types.SandboxRun{ProposalID: proposal.ID, Outcome: f.outcome}, f.err
}

type fakeApprover struct {
	decision types.Decision
}

func (f *fakeApprover) Approve(ctx context.Context, p types.FixProposal) (types.ApprovalRecord, error) {
	return types.ApprovalRecord{ProposalID: p.ID, Fingerprint: p.Issue.Fingerprint, Decision: f.decision, UserConfidence: 0.9}, nil
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func baseProposal(path, origText, replText string) types.FixProposal {
	return types.FixProposal{
		ID:              types.NewProposalID(),
		Issue:           types.Issue{Type: "todo_comment", Severity: types.SeverityLow, File: path, Fingerprint: "fp1", Context: types.ContextProduction},
		OriginalSpan:    types.Span{Path: path, Line: 1, Col: 1, Len: uint32(len(origText))},
		OriginalText:    origText,
		ReplacementText: replText,
		SafetyScore:     99,
		AutoApprovable:  true,
	}
}

func TestEvaluate_Layer1RejectsDestructivePattern(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", `os.system("old")`)

	proposal := baseProposal(path, `os.system("old")`, `os.system("rm -rf /")`)
	g := New(nil, nil, &fakeApprover{decision: types.DecisionApprove}, Config{AutoApproveMinScore: 98})

	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeRejectPattern {
		t.Fatalf("expected reject_pattern, got %s (err=%v)", res.Outcome, res.Err)
	}
	if res.MatchedRule != "shell-destructive" {
		t.Fatalf("expected shell-destructive rule, got %s", res.MatchedRule)
	}

	data, _ := os.ReadFile(path)
	if string(data) != `os.system("old")` {
		t.Fatalf("file should not have been modified")
	}
}

func TestEvaluate_OriginalTextMismatchIsIntegrityViolation(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", "actual content on disk")

	proposal := baseProposal(path, "stale expected text", "replacement")
	g := New(nil, nil, &fakeApprover{decision: types.DecisionApprove}, Config{AutoApproveMinScore: 98})

	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeIntegrityViolation {
		t.Fatalf("expected integrity_violation, got %s", res.Outcome)
	}
	if !g.Compromised() {
		t.Fatalf("expected session to be marked compromised")
	}

	// Further evaluations in the same run must be refused outright.
	res2 := g.Evaluate(context.Background(), baseProposal(path, "actual content on disk", "x"), dir)
	if res2.Outcome != OutcomeSessionCompromised {
		t.Fatalf("expected subsequent evaluate to refuse, got %s", res2.Outcome)
	}
}

func TestEvaluate_TamperedSafetyScoreDetectedAtLayer3(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", "hello world")

	proposal := baseProposal(path, "hello", "goodbye")
	// Simulate tampering between L2 approval and L3: safety_score raised
	// to 100 but severity is not cosmetic/low, violating FixProposal.Valid().
	proposal.Issue.Severity = types.SeverityHigh
	proposal.SafetyScore = 100
	proposal.AutoApprovable = true

	g := New(nil, nil, &fakeApprover{decision: types.DecisionApprove}, Config{AutoApproveMinScore: 98})
	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeIntegrityViolation {
		t.Fatalf("expected integrity_violation from tampered invariant, got %s (err=%v)", res.Outcome, res.Err)
	}
}

func TestEvaluate_AutoApproveAppliesWithoutApprover(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", "hello world")

	proposal := baseProposal(path, "hello", "goodbye")
	g := New(nil, nil, nil, Config{AutoApproveMinScore: 98})

	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (err=%v)", res.Outcome, res.Err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "goodbye world" {
		t.Fatalf("unexpected file content: %q", data)
	}

	bak, err := filepath.Glob(filepath.Join(dir, "f.go.*.bak"))
	if err != nil || len(bak) == 0 {
		t.Fatalf("expected a .bak file to exist, glob err=%v matches=%v", err, bak)
	}
}

func TestEvaluate_SandboxTimeoutRejectsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", "hello world")

	proposal := baseProposal(path, "hello", "goodbye")
	proposal.Issue.Context = types.ContextProduction
	g := New(nil, &fakeSandbox{outcome: types.SandboxTimeout}, nil, Config{AutoApproveMinScore: 98})

	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeSandboxRejected {
		t.Fatalf("expected sandbox_rejected, got %s", res.Outcome)
	}
	if res.SandboxRun == nil || res.SandboxRun.Outcome != types.SandboxTimeout {
		t.Fatalf("expected sandbox run outcome timeout, got %v", res.SandboxRun)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello world" {
		t.Fatalf("file should not have been modified on sandbox rejection")
	}
}

func TestEvaluate_ApprovalRejectionStopsBeforeSandbox(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.go", "hello world")

	proposal := baseProposal(path, "hello", "goodbye")
	proposal.AutoApprovable = false
	proposal.Issue.Severity = types.SeverityHigh
	sb := &fakeSandbox{outcome: types.SandboxOK}
	g := New(nil, sb, &fakeApprover{decision: types.DecisionReject}, Config{AutoApproveMinScore: 98})

	res := g.Evaluate(context.Background(), proposal, dir)
	if res.Outcome != OutcomeApprovalRejected {
		t.Fatalf("expected approval_rejected, got %s", res.Outcome)
	}
}
