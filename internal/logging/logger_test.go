package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLoggingState(t *testing.T) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
	logsDir = ""
	return tempDir
}

func TestInitializeCreatesLogsDir(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	logsPath := filepath.Join(dir, "logs")
	if info, err := os.Stat(logsPath); err != nil || !info.IsDir() {
		t.Fatalf("expected logs dir at %s", logsPath)
	}
}

func TestCategoryDisabledByDefault(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryMemory) {
		t.Fatal("expected non-audit categories disabled until Configure enables debug mode")
	}
	if !IsCategoryEnabled(CategoryAudit) {
		t.Fatal("expected audit category always enabled")
	}
}

func TestConfigureEnablesDebugCategories(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Configure(true, "debug", false, nil)
	if !IsCategoryEnabled(CategoryMemory) {
		t.Fatal("expected CategoryMemory enabled after Configure(true, ...)")
	}

	Memory("store write id=%d", 42)

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, "logs", date+"_memory.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "store write id=42") {
		t.Fatalf("expected message in log, got: %s", data)
	}
}

func TestConfigureCategoryFilter(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Configure(true, "info", false, map[string]bool{"memory": false})
	if IsCategoryEnabled(CategoryMemory) {
		t.Fatal("expected CategoryMemory disabled by explicit filter")
	}
	if !IsCategoryEnabled(CategorySandbox) {
		t.Fatal("expected unfiltered category to default enabled")
	}
}

func TestAuditAlwaysWrites(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	// Audit must write even though Configure was never called (debug_mode false).
	Audit("gate decision", map[string]interface{}{"layer": 1, "decision": "reject"})

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, "logs", date+"_audit.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected audit log file: %v", err)
	}
	if !strings.Contains(string(data), "gate decision") {
		t.Fatalf("expected audit message in log, got: %s", data)
	}
}

func TestTimerStop(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()
	Configure(true, "debug", false, nil)

	timer := StartTimer(CategoryMemory, "unit-test-op")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Fatal("expected non-negative elapsed duration")
	}
}

func TestErrorAlwaysLogsRegardlessOfLevel(t *testing.T) {
	dir := resetLoggingState(t)
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Configure(true, "error", false, nil)
	Get(CategorySafety).Info("this should be suppressed")
	Get(CategorySafety).Error("boom: %s", "disk full")

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, "logs", date+"_safety.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if strings.Contains(string(data), "should be suppressed") {
		t.Fatal("info line should have been suppressed at error level")
	}
	if !strings.Contains(string(data), "boom: disk full") {
		t.Fatalf("expected error message in log, got: %s", data)
	}
}
