package analyzer

import (
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

type stubAnalyzer struct {
	lang string
	exts []string
}

func (s stubAnalyzer) Analyze(path string, content []byte, fileCtx types.FileContext) ([]types.Issue, error) {
	return nil, nil
}
func (s stubAnalyzer) SupportedExtensions() []string { return s.exts }
func (s stubAnalyzer) LanguageID() string             { return s.lang }

func TestRegistry_ForExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAnalyzer{lang: "go", exts: []string{".go"}})
	r.Register(stubAnalyzer{lang: "python", exts: []string{".py"}})

	a, ok := r.ForExtension(".go")
	if !ok || a.LanguageID() != "go" {
		t.Fatalf("expected go analyzer for .go, got %v ok=%v", a, ok)
	}

	_, ok = r.ForExtension(".rs")
	if ok {
		t.Fatal("expected no analyzer registered for .rs")
	}
}

func TestRegistry_ForPath_ShebangSniff(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAnalyzer{lang: "python", exts: []string{".py"}})

	a, ok := r.ForPath("scripts/run", []byte("#!/usr/bin/env python\nprint('hi')\n"))
	if !ok || a.LanguageID() != "python" {
		t.Fatalf("expected shebang sniff to resolve python analyzer, got %v ok=%v", a, ok)
	}
}

func TestRegistry_ForPath_NoMatch(t *testing.T) {
	r := NewRegistry()
	_, ok := r.ForPath("README.md", []byte("# hello"))
	if ok {
		t.Fatal("expected no analyzer match for README.md")
	}
}

func TestRegistry_LanguageIDs(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAnalyzer{lang: "go", exts: []string{".go"}})
	r.Register(stubAnalyzer{lang: "python", exts: []string{".py"}})

	ids := r.LanguageIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 language ids, got %v", ids)
	}
}
