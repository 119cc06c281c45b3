package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"usage", usageErr("bad args"), exitUsageError},
		{"io", ioErr(errors.New("disk full")), exitIOError},
		{"safety", safetyErr(errors.New("refused")), exitSafetyRefused},
		{"internal", internalErr(errors.New("boom")), exitInternalError},
		{"plain error", errors.New("unwrapped"), exitInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestCliErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	wrapped := ioErr(inner)
	if !errors.Is(wrapped, inner) {
		t.Error("expected cliError to unwrap to its inner error")
	}
}

func TestRequireProjectPath(t *testing.T) {
	if _, err := requireProjectPath(nil); err == nil {
		t.Error("expected an error for a missing project path argument")
	}
	if _, err := requireProjectPath([]string{""}); err == nil {
		t.Error("expected an error for an empty project path argument")
	}

	tmpDir := t.TempDir()
	abs, err := requireProjectPath([]string{tmpDir})
	if err != nil {
		t.Fatalf("unexpected error for a real directory: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected an absolute path, got %q", abs)
	}

	missing := filepath.Join(tmpDir, "nope.txt")
	if _, err := requireProjectPath([]string{missing}); err == nil {
		t.Error("expected an error for a nonexistent path")
	}

	regularFile := filepath.Join(tmpDir, "not-a-dir.txt")
	if err := os.WriteFile(regularFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to seed test file: %v", err)
	}
	if _, err := requireProjectPath([]string{regularFile}); err == nil {
		t.Error("expected an error when the path is a regular file, not a directory")
	}
}
