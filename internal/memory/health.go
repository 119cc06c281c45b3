package memory

import (
	"github.com/sony/gobreaker"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// Health reports the engine's self-diagnosis: db connectivity, ANN index
// state, and total memory count. The index is "unavailable" either
// because sqlite-vec never loaded or because the embedding provider's
// circuit breaker has tripped open.
func (s *Store) Health() types.Health {
	h := types.Health{DB: types.DBOk, Index: types.IndexOK}

	if err := s.db.Ping(); err != nil {
		h.DB = types.DBDown
	}

	switch {
	case !s.vectorExt:
		h.Index = types.IndexUnavailable
	case s.embedBreaker != nil && s.embedBreaker.State() == gobreaker.StateOpen:
		h.Index = types.IndexUnavailable
	case s.rebuilding.Load():
		h.Index = types.IndexRebuilding
	}

	count, err := s.Count("")
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("health: count failed: %v", err)
		h.DB = types.DBDegraded
	}
	h.MemoryCount = count
	return h
}
