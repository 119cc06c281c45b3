package diffutil

import (
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

func TestSingleSpan_SimpleReplacement(t *testing.T) {
	old := "line one\nfoo := bar\nline three\n"
	next := "line one\nfoo := baz\nline three\n"

	span, orig, repl, ok := SingleSpan("f.go", old, next)
	if !ok {
		t.Fatalf("expected a span to be found")
	}
	if orig != "r" || repl != "z" {
		t.Fatalf("expected minimal span r->z, got %q -> %q", orig, repl)
	}
	if span.Line != 2 {
		t.Fatalf("expected line 2, got %d", span.Line)
	}
}

func TestSingleSpan_Identical(t *testing.T) {
	_, _, _, ok := SingleSpan("f.go", "same", "same")
	if ok {
		t.Fatalf("expected no span for identical text")
	}
}

func TestApply_MatchesSpan(t *testing.T) {
	content := []byte("line one\nfoo := bar\nline three\n")
	span, orig, repl, ok := SingleSpan("f.go", string(content), "line one\nfoo := baz\nline three\n")
	if !ok {
		t.Fatalf("expected span")
	}

	out, err := Apply(content, span, orig, repl)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if string(out) != "line one\nfoo := baz\nline three\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestApply_MismatchIsIntegrityViolation(t *testing.T) {
	content := []byte("line one\nfoo := bar\nline three\n")
	span := types.Span{Path: "f.go", Line: 2, Col: 7, Len: 3}

	_, err := Apply(content, span, "baz", "qux")
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}
