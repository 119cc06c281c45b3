// Package golang implements the Go Language Analyzer, grounded on a
// reference tree-sitter AST walk: the same SetLanguage/ParseCtx/
// recursive-walk shape, but emitting diagnostic Issues instead of a
// symbol graph.
package golang

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/argus-scan/argus/internal/types"
)

// Analyzer is the Go tree-sitter analyzer. A *sitter.Parser is not
// safe for concurrent use, so calls are serialized; the Orchestrator
// parallelizes across files, not within one analyzer.
type Analyzer struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// New returns a ready Go analyzer.
func New() *Analyzer {
	return &Analyzer{parser: sitter.NewParser()}
}

func (a *Analyzer) LanguageID() string { return "go" }

func (a *Analyzer) SupportedExtensions() []string { return []string{".go"} }

// Analyze parses content and runs every rule in the rubric: unchecked
// error returns, exec.Command with interpolated arguments, naked
// panic, and TODO/FIXME comments.
func (a *Analyzer) Analyze(path string, content []byte, fileCtx types.FileContext) ([]types.Issue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.parser.SetLanguage(golang.GetLanguage())
	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, types.Wrap(types.KindAnalyzer, "golang.Analyze", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var issues []types.Issue
	issues = append(issues, findUncheckedErrors(root, path, content, fileCtx)...)
	issues = append(issues, findExecCommandInterpolation(root, path, content, fileCtx)...)
	issues = append(issues, findNakedPanic(root, path, content, fileCtx)...)
	issues = append(issues, findTODOComments(root, path, content, fileCtx)...)
	return issues, nil
}

func text(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(content)
}

func newIssue(typ string, sev types.Severity, path string, n *sitter.Node, desc, suggestion string, fileCtx types.FileContext) types.Issue {
	line := n.StartPoint().Row + 1
	col := n.StartPoint().Column + 1
	return types.Issue{
		Type:        typ,
		Severity:    sev,
		File:        path,
		Line:        &line,
		Column:      &col,
		Description: desc,
		Suggestion:  suggestion,
		Context:     fileCtx,
	}
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// findUncheckedErrors flags a "err := f()" / "err = f()" assignment
// not immediately followed by an if-statement or return referencing err.
func findUncheckedErrors(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "block" {
			return
		}
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			stmt := n.NamedChild(i)
			if !assignsErr(stmt, content) {
				continue
			}
			checked := false
			if i+1 < count {
				next := n.NamedChild(i + 1)
				checked = isErrHandled(next, content)
			}
			if !checked {
				issues = append(issues, newIssue(
					"unchecked_error", types.SeverityMedium, path, stmt,
					"result assigned to err is not checked before the next statement",
					"add an `if err != nil` check immediately after this assignment",
					fileCtx,
				))
			}
		}
	})
	return issues
}

func assignsErr(stmt *sitter.Node, content []byte) bool {
	if stmt == nil {
		return false
	}
	switch stmt.Type() {
	case "short_var_declaration", "assignment_statement":
	default:
		return false
	}
	left := stmt.ChildByFieldName("left")
	if left == nil {
		return false
	}
	for i := 0; i < int(left.NamedChildCount()); i++ {
		if text(left.NamedChild(i), content) == "err" {
			return true
		}
	}
	return false
}

func isErrHandled(next *sitter.Node, content []byte) bool {
	if next == nil {
		return false
	}
	switch next.Type() {
	case "if_statement":
		cond := next.ChildByFieldName("condition")
		return strings.Contains(text(cond, content), "err")
	case "return_statement":
		return strings.Contains(text(next, content), "err")
	}
	return false
}

// findExecCommandInterpolation flags exec.Command calls whose argument
// list includes a concatenated string or fmt.Sprintf result rather
// than a literal, the shape a shell-injection vector takes.
func findExecCommandInterpolation(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "selector_expression" {
			return
		}
		operand := text(fn.ChildByFieldName("operand"), content)
		field := text(fn.ChildByFieldName("field"), content)
		if operand != "exec" || field != "Command" {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if isInterpolated(arg, content) {
				issues = append(issues, newIssue(
					"exec_command_interpolation", types.SeverityHigh, path, n,
					"exec.Command receives a non-literal, interpolated argument",
					"pass arguments as separate literal strings or validate/allowlist the input before use",
					fileCtx,
				))
				return
			}
		}
	})
	return issues
}

func isInterpolated(n *sitter.Node, content []byte) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "binary_expression":
		return true
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "selector_expression" {
			field := text(fn.ChildByFieldName("field"), content)
			return field == "Sprintf"
		}
	}
	return false
}

// findNakedPanic flags direct calls to the panic builtin. Whether that
// is acceptable (e.g. in test helpers) is decided downstream by the
// false-positive detector using file context, not here.
func findNakedPanic(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "identifier" && text(fn, content) == "panic" {
			issues = append(issues, newIssue(
				"naked_panic", types.SeverityMedium, path, n,
				"panic used directly instead of returning an error",
				"return an error to the caller instead of panicking",
				fileCtx,
			))
		}
	})
	return issues
}

func findTODOComments(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "comment" {
			return
		}
		body := text(n, content)
		upper := strings.ToUpper(body)
		if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") {
			issues = append(issues, newIssue(
				"todo_comment", types.SeverityLow, path, n,
				"unresolved TODO/FIXME left in source",
				"resolve or file a tracked issue and remove the marker",
				fileCtx,
			))
		}
	})
	return issues
}
