// Package cycle implements the Cycle Tracker (C10): it compares two
// successive ScanResults of the same project by fingerprint set
// difference, classifies resolved issues with no applied proposal in the
// interval as manual fixes, and reports rate metrics. It takes no action
// itself — every other component decides what, if anything, to do with a
// CycleRecord.
package cycle

import (
	"context"
	"fmt"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/memory"
	"github.com/argus-scan/argus/internal/types"
)

// AppliedFix is the minimal record the caller supplies for every proposal
// the Safety Gate applied between the two scans being compared. The
// Tracker does not read the gate's own audit log; callers collect these
// from Gate.Evaluate results as they happen.
type AppliedFix struct {
	Fingerprint string
	IssueType   string
}

// Tracker computes CycleRecords and persists manual-fix observations into
// memory so the proposer and false-positive detector can learn which
// issue types humans reliably fix by hand.
type Tracker struct {
	store *memory.Store
}

// New builds a Tracker. store may be nil, in which case manual-fix
// observations are computed but not persisted (used by tests).
func New(store *memory.Store) *Tracker {
	return &Tracker{store: store}
}

// Compare builds the CycleRecord between prev and cur, the two most
// recent ScanResults for the same project. applied lists every proposal
// the Safety Gate applied to this project in the interval between the two
// scans; a resolved fingerprint absent from applied is a manual fix.
func (t *Tracker) Compare(ctx context.Context, project string, prev, cur types.ScanResult, applied []AppliedFix) types.CycleRecord {
	prevSet := fingerprintSet(prev.Issues)
	curSet := fingerprintSet(cur.Issues)
	appliedSet := make(map[string]bool, len(applied))
	typeByFingerprint := make(map[string]string, len(applied))
	for _, a := range applied {
		appliedSet[a.Fingerprint] = true
		typeByFingerprint[a.Fingerprint] = a.IssueType
	}
	issueTypeByFP := make(map[string]string, len(prev.Issues))
	for _, i := range prev.Issues {
		issueTypeByFP[i.Fingerprint] = i.Type
	}

	record := types.CycleRecord{
		Project:    project,
		PrevScanID: prev.ScanID,
		CurScanID:  cur.ScanID,
		StartedAt:  prev.EndedAt,
		EndedAt:    cur.EndedAt,
	}

	for fp := range prevSet {
		if curSet[fp] {
			continue
		}
		record.Resolved = append(record.Resolved, fp)
		if appliedSet[fp] {
			record.AutomatedFixes = append(record.AutomatedFixes, fp)
		} else {
			record.ManualFixes = append(record.ManualFixes, fp)
			t.recordManualFix(ctx, fp, issueTypeByFP[fp])
		}
	}
	for fp := range curSet {
		if !prevSet[fp] {
			record.New = append(record.New, fp)
		}
	}

	logging.Cycle("project=%s resolved=%d new=%d manual=%d automated=%d",
		project, len(record.Resolved), len(record.New), len(record.ManualFixes), len(record.AutomatedFixes))
	return record
}

func fingerprintSet(issues []types.Issue) map[string]bool {
	set := make(map[string]bool, len(issues))
	for _, i := range issues {
		set[i.Fingerprint] = true
	}
	return set
}

func (t *Tracker) recordManualFix(ctx context.Context, fingerprint, issueType string) {
	if t.store == nil {
		return
	}
	content := fmt.Sprintf("manual fix observed for %s (type=%s)", fingerprint, issueType)
	meta := map[string]interface{}{
		"kind":        "manual_fix",
		"fingerprint": fingerprint,
		"type":        issueType,
	}
	if _, err := t.store.StoreMemory(ctx, types.NamespaceTraining, content, meta); err != nil {
		logging.Get(logging.CategoryCycle).Warn("failed to persist manual fix: %v", err)
	}
}

// Rates summarizes a CycleRecord into the learning metrics
// names: manual-fix rate, automated-fix rate, and learning velocity (the
// share of resolved issues that were fixed by the engine rather than by
// hand, which should trend upward as the proposer/gate earn more trust).
type Rates struct {
	ManualFixRate    float64
	AutomatedFixRate float64
	LearningVelocity float64
}

// ComputeRates derives Rates from a CycleRecord. A cycle with zero
// resolved issues yields all-zero rates rather than dividing by zero.
func ComputeRates(record types.CycleRecord) Rates {
	resolved := len(record.Resolved)
	if resolved == 0 {
		return Rates{}
	}
	manual := float64(len(record.ManualFixes))
	automated := float64(len(record.AutomatedFixes))
	total := float64(resolved)
	return Rates{
		ManualFixRate:    manual / total,
		AutomatedFixRate: automated / total,
		LearningVelocity: automated / total,
	}
}
