// Package memory implements the hybrid keyword+vector Memory Engine (C1):
// a durable, thread-safe, namespaced store over SQLite with an optional
// sqlite-vec ANN index, grounded on a prior internal/store
// (local_core.go schema/open pattern, vector_store.go embedding-backed
// storage). Database open failure is fatal at startup; runtime write
// errors fail only the individual call.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"

	"github.com/argus-scan/argus/internal/embedding"
	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// Store is the Memory Engine handle. All other components hold only
// opaque memory ids returned from its operations (arena+id pattern).
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	nsLocks sync.Map // namespace -> *sync.Mutex, writes serialize per-namespace

	embeddingEngine embedding.EmbeddingEngine
	embedBreaker    *gobreaker.CircuitBreaker
	vectorExt       bool
	dims            int

	keywordAlpha    float64
	hybridKWWeight  float64
	hybridSemWeight float64
	maxContentBytes int

	rebuilding atomic.Bool
	closed     bool
}

// Options configures a new Store.
type Options struct {
	KeywordAlpha    float64
	HybridKWWeight  float64
	HybridSemWeight float64
	MaxContentBytes int
}

// DefaultOptions mirrors the module defaults (w_k=0.4, w_s=0.6).
func DefaultOptions() Options {
	return Options{
		KeywordAlpha:    0.35,
		HybridKWWeight:  0.4,
		HybridSemWeight: 0.6,
		MaxContentBytes: 1 << 20,
	}
}

// New opens (or creates) the store at path, wires engine as the embedding
// provider, and performs crash recovery. Database open failure is fatal.
func New(path string, engine embedding.EmbeddingEngine, opts Options) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "New")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.Wrap(types.KindFatal, "memory.New", fmt.Errorf("failed to create state directory: %w", err))
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.Wrap(types.KindFatal, "memory.New", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.MemoryDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.MemoryDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.MemoryDebug("failed to set synchronous=NORMAL: %v", err)
	}

	if locked, lerr := isAlreadyLocked(db); lerr == nil && locked {
		db.Close()
		return nil, types.Wrap(types.KindFatal, "memory.New", types.ErrAlreadyLocked)
	}

	dims := 256
	if engine != nil {
		dims = engine.Dimensions()
	}

	s := &Store{
		db:              db,
		dbPath:          path,
		embeddingEngine: engine,
		dims:            dims,
		keywordAlpha:    opts.KeywordAlpha,
		hybridKWWeight:  opts.HybridKWWeight,
		hybridSemWeight: opts.HybridSemWeight,
		maxContentBytes: opts.MaxContentBytes,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, types.Wrap(types.KindFatal, "memory.New", err)
	}

	s.detectVecExtension()
	if s.vectorExt {
		s.initVecIndex(dims)
		logging.Memory("sqlite-vec extension detected, ANN index enabled (dim=%d)", dims)
	} else {
		logging.Get(logging.CategoryMemory).Warn("sqlite-vec extension not available; semantic search degraded to keyword-only")
	}

	s.embedBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 1,
		Interval:    0,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	if err := s.recoverCrashedWrites(); err != nil {
		logging.Get(logging.CategoryMemory).Warn("crash recovery re-embed had issues: %v", err)
	}

	logging.Memory("memory engine initialized at %s (vector_ext=%v)", path, s.vectorExt)
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories(namespace);
	CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);

	CREATE TABLE IF NOT EXISTS keyword_tokens (
		token TEXT NOT NULL,
		memory_id INTEGER NOT NULL,
		namespace TEXT NOT NULL,
		PRIMARY KEY (token, memory_id)
	);
	CREATE INDEX IF NOT EXISTS idx_keyword_tokens_token ON keyword_tokens(token);
	CREATE INDEX IF NOT EXISTS idx_keyword_tokens_namespace ON keyword_tokens(namespace);

	CREATE TABLE IF NOT EXISTS embeddings_pending (
		memory_id INTEGER PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// detectVecExtension probes for sqlite-vec by attempting to create a vec0
// virtual table, same approach used elsewhere for detectVecExtension.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

func (s *Store) initVecIndex(dim int) {
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d])", dim)
	if _, err := s.db.Exec(stmt); err != nil {
		logging.Get(logging.CategoryMemory).Warn("failed to create vec_index: %v", err)
		s.vectorExt = false
	}
}

func isAlreadyLocked(db *sql.DB) (bool, error) {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS _argus_lock_probe (id INTEGER)")
	return false, err
}

// Close closes the underlying database. Safe to call once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) lockNamespace(ns string) *sync.Mutex {
	v, _ := s.nsLocks.LoadOrStore(ns, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ctxDone is a small helper so write paths can bail out on cancellation
// without importing context in every file that doesn't otherwise need it.
func ctxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
