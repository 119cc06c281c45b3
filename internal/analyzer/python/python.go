// Package python implements the Python Language Analyzer, using the
// same tree-sitter walk shape as internal/analyzer/golang, grounded on
// the prior ast_treesitter.go ParsePython/extractPythonSymbols.
package python

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/argus-scan/argus/internal/types"
)

// Analyzer is the Python tree-sitter analyzer.
type Analyzer struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// New returns a ready Python analyzer.
func New() *Analyzer {
	return &Analyzer{parser: sitter.NewParser()}
}

func (a *Analyzer) LanguageID() string { return "python" }

func (a *Analyzer) SupportedExtensions() []string { return []string{".py"} }

// Analyze runs the rubric: bare except, eval/exec on non-literal
// input, mutable default arguments, and `== None` comparisons.
func (a *Analyzer) Analyze(path string, content []byte, fileCtx types.FileContext) ([]types.Issue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.parser.SetLanguage(python.GetLanguage())
	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, types.Wrap(types.KindAnalyzer, "python.Analyze", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var issues []types.Issue
	issues = append(issues, findBareExcept(root, path, content, fileCtx)...)
	issues = append(issues, findEvalExecOnNonLiteral(root, path, content, fileCtx)...)
	issues = append(issues, findMutableDefaultArgs(root, path, content, fileCtx)...)
	issues = append(issues, findEqualsNone(root, path, content, fileCtx)...)
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

// findBareExcept flags `except:` clauses with no exception type, which
// swallow everything including KeyboardInterrupt and SystemExit.
func findBareExcept(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "except_clause" {
			return
		}
		// A typed except_clause has a named child giving the exception
		// type (or tuple of types); a bare one has only the ":" body.
		if n.NamedChildCount() == 0 {
			issues = append(issues, newIssue(
				"bare_except", types.SeverityMedium, path, n,
				"bare except clause catches every exception, including KeyboardInterrupt and SystemExit",
				"catch a specific exception type, or `except Exception:` at minimum",
				fileCtx,
			))
			return
		}
		first := n.NamedChild(0)
		if first != nil && first.Type() == "block" {
			issues = append(issues, newIssue(
				"bare_except", types.SeverityMedium, path, n,
				"bare except clause catches every exception, including KeyboardInterrupt and SystemExit",
				"catch a specific exception type, or `except Exception:` at minimum",
				fileCtx,
			))
		}
	})
	return issues
}

// findEvalExecOnNonLiteral flags eval()/exec() calls whose argument is
// not a string literal, the shape of an arbitrary-code-execution vector.
func findEvalExecOnNonLiteral(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" {
			return
		}
		name := text(fn, content)
		if name != "eval" && name != "exec" {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return
		}
		firstArg := args.NamedChild(0)
		if firstArg != nil && firstArg.Type() != "string" {
			issues = append(issues, newIssue(
				"eval_exec_dynamic_input", types.SeverityHigh, path, n,
				name+"() called with a non-literal argument, allowing arbitrary code execution",
				"avoid eval/exec on untrusted input; use ast.literal_eval or a dedicated parser",
				fileCtx,
			))
		}
	})
	return issues
}

// findMutableDefaultArgs flags a parameter default that is a list,
// dict, or set literal — Python evaluates that default once, so all
// calls share and mutate the same object.
func findMutableDefaultArgs(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "default_parameter" {
			return
		}
		value := n.ChildByFieldName("value")
		if value == nil {
			return
		}
		switch value.Type() {
		case "list", "dictionary", "set":
			issues = append(issues, newIssue(
				"mutable_default_argument", types.SeverityMedium, path, n,
				"mutable default argument is shared across every call that doesn't override it",
				"default to None and assign the mutable value inside the function body",
				fileCtx,
			))
		}
	})
	return issues
}

// findEqualsNone flags `== None` / `!= None` comparisons, which should
// use `is`/`is not` since None is a singleton.
func findEqualsNone(root *sitter.Node, path string, content []byte, fileCtx types.FileContext) []types.Issue {
	var issues []types.Issue
	walk(root, func(n *sitter.Node) {
		if n.Type() != "comparison_operator" {
			return
		}
		op := operatorText(n, content)
		if op != "==" && op != "!=" {
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "none" {
				issues = append(issues, newIssue(
					"equals_none_comparison", types.SeverityCosmetic, path, n,
					"None compared with == / != instead of is / is not",
					"use `is None` / `is not None`",
					fileCtx,
				))
				return
			}
		}
	})
	return issues
}

// operatorText finds the comparison operator token among a
// comparison_operator node's children (it is unnamed, so not reachable
// via NamedChild).
func operatorText(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch text(child, content) {
		case "==", "!=":
			return text(child, content)
		}
	}
	return ""
}
