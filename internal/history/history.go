// Package history persists the two most recent ScanResults per project
// so the Cycle Tracker (C10) has something to diff on the next run.
// Grounded on the orchestrator's own scan-result cache
// (internal/orchestrator/cache.go), which keys a JSON blob under the
// state directory by a hash of the project path; this package keeps the
// same keying scheme but stores whole ScanResults instead of per-file
// issue lists.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

type record struct {
	Prev *types.ScanResult `json:"prev"`
	Cur  *types.ScanResult `json:"cur"`
}

func fileName(project string) string {
	h := sha256.Sum256([]byte(project))
	return hex.EncodeToString(h[:]) + ".json"
}

func path(stateDir, project string) string {
	return filepath.Join(stateDir, "scan-history", fileName(project))
}

// Record appends result as the new "cur" scan for project, demoting the
// previous "cur" to "prev". Call this once per completed scan.
func Record(stateDir, project string, result types.ScanResult) error {
	p := path(stateDir, project)
	rec := load(p)
	rec.Prev = rec.Cur
	rec.Cur = &result

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return err
	}
	logging.CycleDebug("history: recorded scan %s for project %s", result.ScanID, project)
	return nil
}

// LastTwo returns the previous and current ScanResults for project. Both
// may be nil if fewer than two scans have ever been recorded.
func LastTwo(stateDir, project string) (prev, cur *types.ScanResult) {
	rec := load(path(stateDir, project))
	return rec.Prev, rec.Cur
}

func load(p string) record {
	data, err := os.ReadFile(p)
	if err != nil {
		return record{}
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		logging.CycleDebug("scan history corrupt, starting fresh: %v", err)
		return record{}
	}
	return rec
}
