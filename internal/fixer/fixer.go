// Package fixer implements the Fix Proposer (C7): a closed registry of
// pure, idempotent recipes that convert an Issue into a single-span
// FixProposal, grounded on a prior internal/diff span computation
// (internal/diffutil here) plus the same closed-registry pattern used by
// internal/analyzer for language detectors ( "replace dynamic
// duck-typed registry with a closed capability").
package fixer

import (
	"strings"

	"github.com/argus-scan/argus/internal/diffutil"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// Recipe converts an Issue into a FixProposal given the full file bytes.
// Implementations are pure and idempotent: applying the recipe's own
// output a second time must be a no-op (the precondition check already
// fails since the matched text is gone). Recipes that cannot produce a
// safe single-span fix return (nil, nil) rather than guessing.
type Recipe func(content []byte, issue types.Issue) (*types.FixProposal, error)

// Proposer holds the closed recipe registry, keyed by Issue.Type.
type Proposer struct {
	recipes map[string]Recipe
}

// New returns a Proposer with the built-in recipe set registered.
func New() *Proposer {
	p := &Proposer{recipes: make(map[string]Recipe)}
	p.Register("todo_comment", fixTODOComment)
	p.Register("equals_none_comparison", fixEqualsNone)
	return p
}

// Register adds or replaces the recipe for typ.
func (p *Proposer) Register(typ string, r Recipe) {
	p.recipes[typ] = r
}

// Propose converts issue into a FixProposal if a recipe is registered
// for its type, otherwise returns (nil, nil) — most issue types have no
// safe mechanical fix and are left for human judgment.
func (p *Proposer) Propose(content []byte, issue types.Issue) (*types.FixProposal, error) {
	recipe, ok := p.recipes[issue.Type]
	if !ok {
		return nil, nil
	}
	proposal, err := recipe(content, issue)
	if err != nil {
		return nil, types.Wrap(types.KindInput, "fixer.Propose", err)
	}
	if proposal == nil {
		return nil, nil
	}
	proposal.ID = types.NewProposalID()
	proposal.Issue = issue
	proposal.AutoApprovable = proposal.SafetyScore >= 98 &&
		(issue.Severity == types.SeverityCosmetic || issue.Severity == types.SeverityLow)
	if !proposal.Valid() {
		proposal.AutoApprovable = false
	}
	logging.Fixer("proposed fix for %s at %s:%d (safety_score=%d auto_approvable=%v)",
		issue.Type, issue.File, lineOf(issue), proposal.SafetyScore, proposal.AutoApprovable)
	return proposal, nil
}

func lineOf(i types.Issue) uint32 {
	if i.Line == nil {
		return 0
	}
	return *i.Line
}

// buildProposal is the common tail shared by every recipe: diff the
// line-rewritten content against the original to derive the single
// contiguous span, then wrap it in a FixProposal.
func buildProposal(content []byte, issue types.Issue, newContent string, rationale string, safetyScore uint8) (*types.FixProposal, error) {
	span, orig, repl, ok := diffutil.SingleSpan(issue.File, string(content), newContent)
	if !ok {
		return nil, nil
	}
	return &types.FixProposal{
		OriginalSpan:    span,
		OriginalText:    orig,
		ReplacementText: repl,
		Rationale:       rationale,
		SafetyScore:     safetyScore,
	}, nil
}

// fixTODOComment removes a line containing only a TODO/FIXME comment.
// Cosmetic, reversible, and trivially idempotent (a second run finds no
// matching line and the recipe simply yields no proposal).
func fixTODOComment(content []byte, issue types.Issue) (*types.FixProposal, error) {
	if issue.Line == nil {
		return nil, nil
	}
	lines := splitLinesKeepEnds(string(content))
	idx := int(*issue.Line) - 1
	if idx < 0 || idx >= len(lines) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(lines[idx])
	upper := strings.ToUpper(trimmed)
	isComment := strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#")
	if !isComment || !(strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME")) {
		return nil, nil
	}
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if i == idx {
			continue
		}
		out = append(out, l)
	}
	return buildProposal(content, issue, joinLines(out),
		"removed unresolved TODO/FIXME comment line", 99)
}

// fixEqualsNone rewrites a Python `== None` / `!= None` comparison to the
// idiomatic `is None` / `is not None` form on the issue's line only.
func fixEqualsNone(content []byte, issue types.Issue) (*types.FixProposal, error) {
	if issue.Line == nil {
		return nil, nil
	}
	lines := splitLinesKeepEnds(string(content))
	idx := int(*issue.Line) - 1
	if idx < 0 || idx >= len(lines) {
		return nil, nil
	}
	rewritten, changed := rewriteEqualsNone(lines[idx])
	if !changed {
		return nil, nil
	}
	out := make([]string, len(lines))
	copy(out, lines)
	out[idx] = rewritten
	return buildProposal(content, issue, joinLines(out),
		"rewrote == None / != None to the idiomatic is / is not form", 99)
}

func rewriteEqualsNone(line string) (string, bool) {
	replacements := []struct{ from, to string }{
		{"!= None", "is not None"},
		{"== None", "is None"},
	}
	changed := false
	for _, r := range replacements {
		if idx := indexOf(line, r.from); idx >= 0 {
			line = line[:idx] + r.to + line[idx+len(r.from):]
			changed = true
		}
	}
	return line, changed
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func splitLinesKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l
	}
	return out
}
