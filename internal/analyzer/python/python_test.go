package python

import (
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

func issueTypes(issues []types.Issue) map[string]int {
	counts := make(map[string]int)
	for _, iss := range issues {
		counts[iss.Type]++
	}
	return counts
}

func TestAnalyze_BareExcept(t *testing.T) {
	src := `
def handler():
    try:
        risky()
    except:
        pass
`
	a := New()
	issues, err := a.Analyze("handler.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["bare_except"] != 1 {
		t.Errorf("expected 1 bare_except, got %d (%v)", counts["bare_except"], counts)
	}
}

func TestAnalyze_TypedExceptNotFlagged(t *testing.T) {
	src := `
def handler():
    try:
        risky()
    except ValueError:
        pass
`
	a := New()
	issues, err := a.Analyze("handler.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["bare_except"] != 0 {
		t.Errorf("expected 0 bare_except, got %d", counts["bare_except"])
	}
}

func TestAnalyze_EvalOnDynamicInput(t *testing.T) {
	src := `
def compute(expr):
    return eval(expr)
`
	a := New()
	issues, err := a.Analyze("compute.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["eval_exec_dynamic_input"] != 1 {
		t.Errorf("expected 1 eval_exec_dynamic_input, got %d", counts["eval_exec_dynamic_input"])
	}
}

func TestAnalyze_EvalOnLiteralNotFlagged(t *testing.T) {
	src := `
def compute():
    return eval("1 + 1")
`
	a := New()
	issues, err := a.Analyze("compute.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["eval_exec_dynamic_input"] != 0 {
		t.Errorf("expected 0 eval_exec_dynamic_input, got %d", counts["eval_exec_dynamic_input"])
	}
}

func TestAnalyze_MutableDefaultArgument(t *testing.T) {
	src := `
def append_item(item, items=[]):
    items.append(item)
    return items
`
	a := New()
	issues, err := a.Analyze("append_item.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["mutable_default_argument"] != 1 {
		t.Errorf("expected 1 mutable_default_argument, got %d", counts["mutable_default_argument"])
	}
}

func TestAnalyze_ImmutableDefaultNotFlagged(t *testing.T) {
	src := `
def append_item(item, items=None):
    items = items or []
    items.append(item)
    return items
`
	a := New()
	issues, err := a.Analyze("append_item.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["mutable_default_argument"] != 0 {
		t.Errorf("expected 0 mutable_default_argument, got %d", counts["mutable_default_argument"])
	}
}

func TestAnalyze_EqualsNone(t *testing.T) {
	src := `
def check(x):
    if x == None:
        return True
    return False
`
	a := New()
	issues, err := a.Analyze("check.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["equals_none_comparison"] != 1 {
		t.Errorf("expected 1 equals_none_comparison, got %d", counts["equals_none_comparison"])
	}
}

func TestAnalyze_IsNoneNotFlagged(t *testing.T) {
	src := `
def check(x):
    if x is None:
        return True
    return False
`
	a := New()
	issues, err := a.Analyze("check.py", []byte(src), types.ContextProduction)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	counts := issueTypes(issues)
	if counts["equals_none_comparison"] != 0 {
		t.Errorf("expected 0 equals_none_comparison, got %d", counts["equals_none_comparison"])
	}
}

func TestLanguageIDAndExtensions(t *testing.T) {
	a := New()
	if a.LanguageID() != "python" {
		t.Errorf("expected language id 'python', got %q", a.LanguageID())
	}
	exts := a.SupportedExtensions()
	if len(exts) != 1 || exts[0] != ".py" {
		t.Errorf("expected [.py], got %v", exts)
	}
}
