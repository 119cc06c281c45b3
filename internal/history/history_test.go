package history

import (
	"testing"

	"github.com/argus-scan/argus/internal/types"
)

func TestLastTwo_EmptyWhenNeverRecorded(t *testing.T) {
	dir := t.TempDir()
	prev, cur := LastTwo(dir, "/some/project")
	if prev != nil || cur != nil {
		t.Fatalf("expected nil, nil, got %+v %+v", prev, cur)
	}
}

func TestRecord_PromotesCurToPrev(t *testing.T) {
	dir := t.TempDir()
	project := "/some/project"

	first := types.ScanResult{ScanID: "scan-1"}
	if err := Record(dir, project, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	prev, cur := LastTwo(dir, project)
	if prev != nil {
		t.Fatalf("expected no prev after first scan, got %+v", prev)
	}
	if cur == nil || cur.ScanID != "scan-1" {
		t.Fatalf("expected cur=scan-1, got %+v", cur)
	}

	second := types.ScanResult{ScanID: "scan-2"}
	if err := Record(dir, project, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	prev, cur = LastTwo(dir, project)
	if prev == nil || prev.ScanID != "scan-1" {
		t.Fatalf("expected prev=scan-1, got %+v", prev)
	}
	if cur == nil || cur.ScanID != "scan-2" {
		t.Fatalf("expected cur=scan-2, got %+v", cur)
	}
}

func TestRecord_SeparateProjectsIsolated(t *testing.T) {
	dir := t.TempDir()
	if err := Record(dir, "/proj-a", types.ScanResult{ScanID: "a-1"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := Record(dir, "/proj-b", types.ScanResult{ScanID: "b-1"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_, curA := LastTwo(dir, "/proj-a")
	_, curB := LastTwo(dir, "/proj-b")
	if curA.ScanID != "a-1" || curB.ScanID != "b-1" {
		t.Fatalf("expected isolated histories, got %+v %+v", curA, curB)
	}
}
