package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/argus-scan/argus/internal/analyzer"
	"github.com/argus-scan/argus/internal/analyzer/golang"
	"github.com/argus-scan/argus/internal/analyzer/python"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRegistry() *analyzer.Registry {
	reg := analyzer.NewRegistry()
	reg.Register(golang.New())
	reg.Register(python.New())
	return reg
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestScan_OrdersIssuesByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "z.go", "package z\n\nfunc f() {\n\tpanic(\"boom\")\n}\n")
	writeFile(t, dir, "a.go", "package a\n\nfunc g() {\n\tpanic(\"boom\")\n}\n")

	o := New(newTestRegistry(), nil, Options{Concurrency: 2})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Issues) < 2 {
		t.Fatalf("expected at least 2 issues, got %d: %+v", len(scan.Issues), scan.Issues)
	}
	for i := 1; i < len(scan.Issues); i++ {
		if scan.Issues[i-1].File > scan.Issues[i].File {
			t.Fatalf("issues not path-sorted: %s before %s", scan.Issues[i-1].File, scan.Issues[i].File)
		}
	}
}

func TestScan_FileAtSizeCapIsAnalyzed_OverCapIsSkippedWithReason(t *testing.T) {
	dir := t.TempDir()

	atCap := []byte("package a\n\nfunc f() {\n\tpanic(\"x\")\n}\n")
	overCap := append(append([]byte{}, atCap...), []byte("// padding\n")...)

	writeFile(t, dir, "at_cap.go", string(atCap))
	writeFile(t, dir, "over_cap.go", string(overCap))

	o := New(newTestRegistry(), nil, Options{
		Concurrency:      2,
		FileSizeCapBytes: int64(len(atCap)),
	})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	found := false
	for _, iss := range scan.Issues {
		if iss.File == "at_cap.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at_cap.go to be analyzed, issues=%+v", scan.Issues)
	}

	reason, skipped := scan.Skipped["over_cap.go"]
	if !skipped {
		t.Fatalf("expected over_cap.go to be recorded as skipped, got skipped=%v", scan.Skipped)
	}
	if reason == "" {
		t.Fatalf("expected a non-empty skip reason for over_cap.go")
	}
}

func TestScan_EmptyProjectReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	o := New(newTestRegistry(), nil, Options{})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scan.Issues) != 0 {
		t.Fatalf("expected no issues for empty project, got %d", len(scan.Issues))
	}
}

func TestScan_UnknownFileTypeSkippedNotErrored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "just some notes, nothing to analyze\n")

	o := New(newTestRegistry(), nil, Options{})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if reason, ok := scan.Skipped["notes.txt"]; !ok || reason == "" {
		t.Fatalf("expected notes.txt to be skipped with a reason, got %+v", scan.Skipped)
	}
}

func TestScan_ExcludesVendorDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vendor/dep.go", "package dep\n\nfunc f() {\n\tpanic(\"x\")\n}\n")
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	o := New(newTestRegistry(), nil, Options{ExcludePatterns: []string{"vendor"}})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, iss := range scan.Issues {
		if filepath.Dir(iss.File) == "vendor" {
			t.Fatalf("expected vendor/ to be excluded, got issue from %s", iss.File)
		}
	}
}

func TestScan_ExcludesOwnStateDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".argus-cache/scan-cache/stale.go", "package stale\n\nfunc f() {\n\tpanic(\"x\")\n}\n")
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	o := New(newTestRegistry(), nil, Options{ExcludePatterns: []string{".argus*"}})
	scan, err := o.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, iss := range scan.Issues {
		if strings.HasPrefix(iss.File, ".argus-cache") {
			t.Fatalf("expected .argus-cache/ to be excluded as the engine's own state dir, got issue from %s", iss.File)
		}
	}
	for skipped := range scan.Skipped {
		if strings.HasPrefix(skipped, ".argus-cache") {
			t.Fatalf("expected .argus-cache/ to be fully excluded from the walk, not merely skipped, got %s", skipped)
		}
	}
}
