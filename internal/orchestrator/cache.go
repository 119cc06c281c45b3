package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// cacheEntry is a scan result pinned to the content hash it was
// computed from, adapted from a prior CacheEntry (internal/world
// FileCache) which pinned a hash to mtime+size; here the hash is the
// cache key directly since it is also the input to fingerprint
// stability ().
type cacheEntry struct {
	Hash   string       `json:"hash"`
	Issues []types.Issue `json:"issues"`
}

// scanCache persists per-file analysis results across runs so the
// orchestrator can skip re-analyzing files whose content hasn't
// changed since the last scan.
type scanCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]cacheEntry
	dirty   bool
}

func newScanCache(stateDir, project string) *scanCache {
	path := filepath.Join(stateDir, "scan-cache", cacheFileName(project))
	c := &scanCache{path: path, entries: make(map[string]cacheEntry)}
	c.load()
	return c
}

func cacheFileName(project string) string {
	h := sha256.Sum256([]byte(project))
	return hex.EncodeToString(h[:]) + ".json"
}

func (c *scanCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.OrchestratorDebug("scan cache corrupt, starting fresh: %v", err)
		return
	}
	c.entries = entries
}

func (c *scanCache) save() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.dirty {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("scan cache: mkdir failed: %v", err)
		return
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("scan cache: write failed: %v", err)
	}
}

// lookup returns cached issues for relPath if its content hash matches.
func (c *scanCache) lookup(relPath, hash string) ([]types.Issue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[relPath]
	if !ok || entry.Hash != hash {
		return nil, false
	}
	return entry.Issues, true
}

func (c *scanCache) store(relPath, hash string, issues []types.Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[relPath] = cacheEntry{Hash: hash, Issues: issues}
	c.dirty = true
}

func contentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
