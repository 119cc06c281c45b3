package memory

import (
	"context"

	"github.com/argus-scan/argus/internal/logging"
)

// recoverCrashedWrites re-embeds any row recorded in embeddings_pending
// (a write that appended its row but crashed before the vector made it
// into vec_index) and, separately, any row present in memories but
// missing from vec_index entirely — the same invariant, reached either
// by a tracked pending-write crash or untracked index corruption.
func (s *Store) recoverCrashedWrites() error {
	if s.embeddingEngine == nil {
		return nil
	}

	s.mu.RLock()
	rows, err := s.db.Query("SELECT memory_id FROM embeddings_pending")
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	var pending []uint64
	seen := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err == nil && !seen[id] {
			seen[id] = true
			pending = append(pending, id)
		}
	}
	rows.Close()
	if s.vectorExt {
		if missing, err := s.db.Query("SELECT id FROM memories WHERE id NOT IN (SELECT rowid FROM vec_index)"); err == nil {
			for missing.Next() {
				var id uint64
				if err := missing.Scan(&id); err == nil && !seen[id] {
					seen[id] = true
					pending = append(pending, id)
				}
			}
			missing.Close()
		}
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	logging.Memory("crash recovery: re-embedding %d pending rows", len(pending))
	s.rebuilding.Store(true)
	defer s.rebuilding.Store(false)

	ctx := context.Background()
	for _, id := range pending {
		mem, err := s.Get(id)
		if err != nil || mem == nil {
			continue
		}
		if err := s.embedAndIndex(ctx, id, mem.Content); err != nil {
			logging.Get(logging.CategoryMemory).Warn("crash recovery: re-embed failed for id=%d: %v", id, err)
			continue
		}
	}
	return nil
}

// RebuildIndex rebuilds vec_index from the persisted memories table;
// queries continue in keyword mode while this runs. No startup path
// calls it: the open path runs recoverCrashedWrites instead.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if !s.vectorExt || s.embeddingEngine == nil {
		return nil
	}

	s.rebuilding.Store(true)
	defer s.rebuilding.Store(false)

	s.mu.Lock()
	_, _ = s.db.Exec("DELETE FROM vec_index")
	rows, err := s.db.Query("SELECT id, content FROM memories")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	type row struct {
		id      uint64
		content string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.content); err == nil {
			all = append(all, r)
		}
	}
	rows.Close()
	s.mu.Unlock()

	logging.Memory("rebuilding vec_index from %d persisted rows", len(all))
	for _, r := range all {
		if err := s.embedAndIndex(ctx, r.id, r.content); err != nil {
			logging.Get(logging.CategoryMemory).Warn("index rebuild: failed for id=%d: %v", r.id, err)
		}
	}
	return nil
}
