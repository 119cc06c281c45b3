package fixer

import (
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

func line(n uint32) *uint32 { return &n }

func TestPropose_TODOComment(t *testing.T) {
	content := []byte("package p\n\n// TODO: fix this later\nfunc F() {}\n")
	issue := types.Issue{
		Type:     "todo_comment",
		Severity: types.SeverityLow,
		File:     "p.go",
		Line:     line(3),
		Context:  types.ContextProduction,
	}

	p := New()
	proposal, err := p.Propose(content, issue)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if proposal == nil {
		t.Fatalf("expected a proposal")
	}
	if !proposal.AutoApprovable {
		t.Fatalf("expected auto-approvable for cosmetic-adjacent low severity fix at score %d", proposal.SafetyScore)
	}
	if !proposal.Valid() {
		t.Fatalf("proposal violates its own invariant")
	}
}

func TestPropose_EqualsNone(t *testing.T) {
	content := []byte("def f(x):\n    if x == None:\n        return 1\n")
	issue := types.Issue{
		Type:     "equals_none_comparison",
		Severity: types.SeverityCosmetic,
		File:     "f.py",
		Line:     line(2),
		Context:  types.ContextProduction,
	}

	p := New()
	proposal, err := p.Propose(content, issue)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if proposal == nil {
		t.Fatalf("expected a proposal")
	}
	if proposal.ReplacementText != "is" {
		t.Fatalf("expected minimal replacement 'is', got %q", proposal.ReplacementText)
	}
}

func TestPropose_UnregisteredTypeReturnsNil(t *testing.T) {
	p := New()
	proposal, err := p.Propose([]byte("x := foo()\n"), types.Issue{Type: "unchecked_error", Line: line(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proposal != nil {
		t.Fatalf("expected no proposal for a type with no registered recipe")
	}
}

func TestPropose_Idempotent(t *testing.T) {
	content := []byte("package p\n\n// TODO: fix this later\nfunc F() {}\n")
	issue := types.Issue{Type: "todo_comment", Severity: types.SeverityLow, File: "p.go", Line: line(3)}

	p := New()
	first, err := p.Propose(content, issue)
	if err != nil || first == nil {
		t.Fatalf("expected first proposal, err=%v", err)
	}

	// Re-run against content with the TODO line already removed (what
	// applying first's proposal would produce): no matching line at
	// the same issue.Line content, so the recipe yields no proposal.
	rewritten := []byte("package p\n\nfunc F() {}\n")
	second, err := p.Propose(rewritten, types.Issue{Type: "todo_comment", Severity: types.SeverityLow, File: "p.go", Line: line(3)})
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if second != nil {
		t.Fatalf("expected no-op on already-fixed content, got a proposal")
	}
}
