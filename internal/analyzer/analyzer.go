// Package analyzer defines the Language Analyzer capability (C3): a
// closed registry mapping language_id to a value satisfying
// {Analyze, SupportedExtensions, LanguageID}, replacing any
// dynamic/duck-typed analyzer discovery with explicit registration.
package analyzer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/argus-scan/argus/internal/types"
)

// Analyzer is the capability every per-language detector implements.
// Implementations must be deterministic on a given (bytes, ctx), must
// not access the filesystem beyond the provided bytes, and must not
// spawn processes.
type Analyzer interface {
	// Analyze returns the issues found in content at path. fingerprint
	// is left unpopulated — the Orchestrator (C4) computes it, keeping
	// analyzer logic language-local.
	Analyze(path string, content []byte, fileCtx types.FileContext) ([]types.Issue, error)

	// SupportedExtensions returns the file extensions this analyzer
	// claims, including the leading dot (e.g. ".go").
	SupportedExtensions() []string

	// LanguageID returns the stable identifier for this language, e.g. "go".
	LanguageID() string
}

// Registry is a closed capability map from language_id / extension to
// the Analyzer responsible for it. New analyzers are added by
// registering a value, never by subclassing.
type Registry struct {
	mu        sync.RWMutex
	byLang    map[string]Analyzer
	byExt     map[string]Analyzer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byLang: make(map[string]Analyzer),
		byExt:  make(map[string]Analyzer),
	}
}

// Register adds a analyzer, indexed by its language id and every
// extension it claims. Registering the same language id twice replaces
// the previous entry.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLang[a.LanguageID()] = a
	for _, ext := range a.SupportedExtensions() {
		r.byExt[strings.ToLower(ext)] = a
	}
}

// ForExtension returns the analyzer registered for ext (leading dot
// included), detected by filename extension.
func (r *Registry) ForExtension(ext string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byExt[strings.ToLower(ext)]
	return a, ok
}

// ForPath detects the analyzer for path by extension, then by content
// sniff as tiebreak when the extension is ambiguous or absent.
func (r *Registry) ForPath(path string, content []byte) (Analyzer, bool) {
	ext := filepath.Ext(path)
	if a, ok := r.ForExtension(ext); ok {
		return a, true
	}
	return r.sniff(content)
}

// sniff is the content-based tiebreak for files with no recognized
// extension: a shebang naming an interpreter is the only signal cheap
// enough to apply safely without risking a wrong-language parse.
func (r *Registry) sniff(content []byte) (Analyzer, bool) {
	if len(content) < 2 || content[0] != '#' || content[1] != '!' {
		return nil, false
	}
	line := content
	if idx := strings.IndexByte(string(content), '\n'); idx >= 0 {
		line = content[:idx]
	}
	shebang := strings.ToLower(string(line))

	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case strings.Contains(shebang, "python"):
		if a, ok := r.byLang["python"]; ok {
			return a, true
		}
	case strings.Contains(shebang, "go run"):
		if a, ok := r.byLang["go"]; ok {
			return a, true
		}
	}
	return nil, false
}

// LanguageIDs returns every registered language id, for diagnostics.
func (r *Registry) LanguageIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLang))
	for id := range r.byLang {
		out = append(out, id)
	}
	return out
}

// ErrUnsupported is returned by callers (not Analyzer implementations)
// when no analyzer claims a path.
var ErrUnsupported = fmt.Errorf("no analyzer registered for this file type")
