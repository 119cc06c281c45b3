// Package orchestrator implements the Analyzer Orchestrator (C4): walks a
// project, dispatches files to the registered Language Analyzer, merges
// results under bounded parallelism, and maintains per-language memory
// namespaces alongside a deduplicated global namespace. Grounded on a
// reference worker-pool directory scanner, generalized from a fixed
// symbol-extraction pass to a pluggable analyzer dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/argus-scan/argus/internal/analyzer"
	fcontext "github.com/argus-scan/argus/internal/context"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

// Options configures a scan run.
type Options struct {
	Concurrency      int // 0 => runtime.NumCPU()
	FileSizeCapBytes int64
	FileTimeoutSec   int
	ExcludePatterns  []string
	LanguageTimeout  func(languageID string) int // 0 => Options.FileTimeoutSec
}

// Orchestrator dispatches analysis across a project tree.
type Orchestrator struct {
	registry *analyzer.Registry
	store    *memory.Store
	opts     Options
	cache    *scanCache
}

// New builds an Orchestrator over registry, persisting scan results and
// learned namespaces through store.
func New(registry *analyzer.Registry, store *memory.Store, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.FileTimeoutSec <= 0 {
		opts.FileTimeoutSec = 10
	}
	return &Orchestrator{registry: registry, store: store, opts: opts}
}

// fileResult is one file's outcome, used only to preserve path-sorted
// ordering when fan-in completes out of order.
type fileResult struct {
	relPath string
	issues  []types.Issue
	skipped string // reason, empty if not skipped
}

// Scan walks project, analyzes every eligible file with bounded
// parallelism, and returns a path-sorted, fingerprinted ScanResult. Issues
// are additionally persisted into per-language namespaces and a
// deduplicated view of the global namespace.
func (o *Orchestrator) Scan(ctx context.Context, project string) (*types.ScanResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Scan")
	defer timer.Stop()

	started := time.Now()
	o.cache = newScanCache(o.stateDirHint(project), project)

	files, oversized, err := enumerate(project, o.opts.ExcludePatterns, o.opts.FileSizeCapBytes)
	if err != nil {
		return nil, types.Wrap(types.KindResource, "orchestrator.Scan", err)
	}

	logging.Orchestrator("scan started project=%s files=%d", project, len(files))

	results := make([]fileResult, len(files))
	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup

	for i, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f walkFile) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.analyzeOne(ctx, f)
		}(i, f)
	}
	wg.Wait()
	o.cache.save()

	sort.Slice(results, func(i, j int) bool { return results[i].relPath < results[j].relPath })

	scan := &types.ScanResult{
		ScanID:    types.NewScanID(),
		Project:   project,
		Histogram: make(map[string]int),
		Skipped:   make(map[string]string),
		StartedAt: started,
	}

	for _, ov := range oversized {
		scan.Skipped[ov.relPath] = ov.reason
	}

	seen := make(map[string]bool) // global-namespace dedup by fingerprint
	for _, r := range results {
		if r.skipped != "" {
			scan.Skipped[r.relPath] = r.skipped
			continue
		}
		sort.Slice(r.issues, func(i, j int) bool {
			return issueLess(r.issues[i], r.issues[j])
		})
		for _, issue := range r.issues {
			scan.Issues = append(scan.Issues, issue)
			scan.Histogram[issue.Type]++
			if o.store != nil {
				o.persist(ctx, issue, seen)
			}
		}
	}
	scan.EndedAt = time.Now()

	logging.Orchestrator("scan finished project=%s scan_id=%s issues=%d skipped=%d duration=%v",
		project, scan.ScanID, len(scan.Issues), len(scan.Skipped), scan.EndedAt.Sub(scan.StartedAt))
	return scan, nil
}

// issueLess orders issues within one file by (line, column, type), per
// ordering guarantee.
func issueLess(a, b types.Issue) bool {
	al, bl := lineOf(a), lineOf(b)
	if al != bl {
		return al < bl
	}
	ac, bc := colOf(a), colOf(b)
	if ac != bc {
		return ac < bc
	}
	return a.Type < b.Type
}

func lineOf(i types.Issue) uint32 {
	if i.Line == nil {
		return 0
	}
	return *i.Line
}

func colOf(i types.Issue) uint32 {
	if i.Column == nil {
		return 0
	}
	return *i.Column
}

// analyzeOne routes a single file to its analyzer under a per-file wall
// budget, classifies its context, computes cache-aware fingerprints, and
// reports a skip reason instead of an error when analysis cannot proceed.
func (o *Orchestrator) analyzeOne(ctx context.Context, f walkFile) fileResult {
	content, err := readFile(f.absPath)
	if err != nil {
		return fileResult{relPath: f.relPath, skipped: fmt.Sprintf("read error: %v", err)}
	}

	a, ok := o.registry.ForPath(f.relPath, content)
	if !ok {
		logging.OrchestratorDebug("skip %s: no analyzer for file type", f.relPath)
		return fileResult{relPath: f.relPath, skipped: "unsupported file type"}
	}

	hash := contentHash(content)
	if cached, ok := o.cache.lookup(f.relPath, hash); ok {
		logging.OrchestratorDebug("cache hit %s", f.relPath)
		return fileResult{relPath: f.relPath, issues: cached}
	}

	fileCtx := fcontext.Classify(f.relPath, content)

	timeoutSec := o.opts.FileTimeoutSec
	if o.opts.LanguageTimeout != nil {
		if t := o.opts.LanguageTimeout(a.LanguageID()); t > 0 {
			timeoutSec = t
		}
	}

	type outcome struct {
		issues []types.Issue
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		issues, err := a.Analyze(f.relPath, content, fileCtx)
		done <- outcome{issues: issues, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("analyzer error for %s: %v", f.relPath, out.err)
			return fileResult{relPath: f.relPath, skipped: fmt.Sprintf("analyzer error: %v", out.err)}
		}
		lines := readLines(f.absPath)
		for i := range out.issues {
			out.issues[i].Fingerprint = fingerprint(out.issues[i], lines)
		}
		o.cache.store(f.relPath, hash, out.issues)
		return fileResult{relPath: f.relPath, issues: out.issues}
	case <-time.After(time.Duration(timeoutSec) * time.Second):
		logging.Get(logging.CategoryOrchestrator).Warn("analysis timeout for %s after %ds", f.relPath, timeoutSec)
		return fileResult{relPath: f.relPath, skipped: types.ErrAnalysisTimeout.Error()}
	case <-ctx.Done():
		return fileResult{relPath: f.relPath, skipped: "cancelled"}
	}
}

func (o *Orchestrator) persist(ctx context.Context, issue types.Issue, seen map[string]bool) {
	langNS := languageNamespaceFromType(issue)
	content := fmt.Sprintf("%s: %s (%s:%d)", issue.Type, issue.Description, issue.File, lineOf(issue))
	meta := map[string]interface{}{
		"kind":        string(types.PatternIssue),
		"fingerprint": issue.Fingerprint,
		"type":        issue.Type,
		"severity":    string(issue.Severity),
		"context":     string(issue.Context),
		"file":        issue.File,
	}
	if _, err := o.store.StoreMemory(ctx, langNS, content, meta); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("failed to persist issue to namespace %s: %v", langNS, err)
	}
	if !seen[issue.Fingerprint] {
		seen[issue.Fingerprint] = true
		if _, err := o.store.StoreMemory(ctx, types.NamespaceGlobal, content, meta); err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("failed to persist issue to global namespace: %v", err)
		}
	}
}

// languageNamespaceFromType derives the per-language namespace from the
// issue type names each analyzer emits (e.g. "unchecked_error" for Go,
// "bare_except" for Python); issues of an unrecognized type fall back to
// the global namespace only.
func languageNamespaceFromType(issue types.Issue) string {
	switch {
	case isGoIssueType(issue.Type):
		return "go"
	case isPythonIssueType(issue.Type):
		return "python"
	default:
		return types.NamespaceGlobal
	}
}

func isGoIssueType(t string) bool {
	switch t {
	case "unchecked_error", "exec_command_interpolation", "naked_panic", "todo_comment":
		return true
	}
	return false
}

func isPythonIssueType(t string) bool {
	switch t {
	case "bare_except", "eval_exec_dynamic_input", "mutable_default_argument", "equals_none_comparison":
		return true
	}
	return false
}

func (o *Orchestrator) stateDirHint(project string) string {
	return filepath.Join(project, ".argus-cache")
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
