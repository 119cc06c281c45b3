package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/argus-scan/argus/internal/logging"
	"github.com/argus-scan/argus/internal/types"
)

// Store persists content under namespace, computing an embedding via the
// configured provider (which may be disabled). The row is appended and
// the vector added to the ANN index under the same id; on crash between
// the two steps, recovery re-embeds any row missing from the index.
func (s *Store) StoreMemory(ctx context.Context, namespace, content string, metadata map[string]interface{}) (uint64, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "StoreMemory")
	defer timer.Stop()

	if len(content) > s.maxContentBytes {
		return 0, types.Wrap(types.KindMemory, "memory.store", types.ErrContentTooLarge)
	}

	// Writes serialize per namespace only: two StoreMemory calls into
	// different namespaces take different *sync.Mutex values from
	// nsLocks and proceed concurrently, including through the embedding
	// call below. s.mu stays reserved for store-wide state (Close).
	lock := s.lockNamespace(namespace)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, types.Wrap(types.KindMemory, "memory.store", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO memories (namespace, content, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		namespace, content, string(metaJSON), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		logging.Get(logging.CategoryMemory).Error("store write failed: %v", err)
		return 0, types.Wrap(types.KindMemory, "memory.store", fmt.Errorf("%w: %v", types.ErrStoreFailed, err))
	}

	id64, err := res.LastInsertId()
	if err != nil {
		return 0, types.Wrap(types.KindMemory, "memory.store", err)
	}
	id := uint64(id64)

	if err := s.indexTokens(id, namespace, content); err != nil {
		logging.Get(logging.CategoryMemory).Warn("keyword indexing failed for id=%d: %v", id, err)
	}

	if s.embeddingEngine != nil {
		if err := s.embedAndIndex(ctx, id, content); err != nil {
			logging.Get(logging.CategoryMemory).Warn("embedding failed for id=%d, marking pending: %v", id, err)
			_, _ = s.db.Exec("INSERT OR REPLACE INTO embeddings_pending (memory_id) VALUES (?)", id)
		}
	}

	logging.MemoryDebug("stored memory id=%d namespace=%s bytes=%d", id, namespace, len(content))
	return id, nil
}

// embedAndIndex computes an embedding (through the circuit breaker) and
// writes it into vec_index when available.
func (s *Store) embedAndIndex(ctx context.Context, id uint64, content string) error {
	vec, err := s.embedBreaker.Execute(func() (interface{}, error) {
		return s.embeddingEngine.Embed(ctx, content)
	})
	if err != nil {
		return err
	}
	embeddingVec := vec.([]float32)

	if s.vectorExt {
		blob := encodeFloat32Slice(embeddingVec)
		if _, err := s.db.Exec("INSERT INTO vec_index (rowid, embedding) VALUES (?, ?)", id, blob); err != nil {
			return fmt.Errorf("failed to index vector: %w", err)
		}
	}
	_, _ = s.db.Exec("DELETE FROM embeddings_pending WHERE memory_id = ?", id)
	return nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// indexTokens tokenizes content into lowercase words and records them for
// keyword search, replacing any existing tokens for this id.
func (s *Store) indexTokens(id uint64, namespace, content string) error {
	tokens := tokenize(content)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for token := range tokens {
		if _, err := tx.Exec("INSERT OR IGNORE INTO keyword_tokens (token, memory_id, namespace) VALUES (?, ?, ?)", token, id, namespace); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func tokenize(content string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = struct{}{}
		}
	}
	return set
}

// Get returns a single memory by id, or nil if absent.
func (s *Store) Get(id uint64) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT id, namespace, content, metadata, created_at, updated_at FROM memories WHERE id = ?", id)
	return scanMemory(row)
}

// Update mutates content and/or metadata of an existing memory,
// recomputing its embedding and keyword tokens.
func (s *Store) Update(ctx context.Context, id uint64, content *string, metadata map[string]interface{}) error {
	var namespace, curContent, curMeta string
	if err := s.db.QueryRow("SELECT namespace, content, metadata FROM memories WHERE id = ?", id).
		Scan(&namespace, &curContent, &curMeta); err != nil {
		return types.Wrap(types.KindMemory, "memory.update", err)
	}

	// Locked per the row's own namespace, same as StoreMemory, so an
	// Update in namespace A never blocks a concurrent write in B.
	lock := s.lockNamespace(namespace)
	lock.Lock()
	defer lock.Unlock()

	newContent := curContent
	if content != nil {
		newContent = *content
	}
	metaJSON := curMeta
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return types.Wrap(types.KindMemory, "memory.update", err)
		}
		metaJSON = string(b)
	}

	now := time.Now().UnixMilli()
	if _, err := s.db.Exec("UPDATE memories SET content = ?, metadata = ?, updated_at = ? WHERE id = ?",
		newContent, metaJSON, now, id); err != nil {
		return types.Wrap(types.KindMemory, "memory.update", fmt.Errorf("%w: %v", types.ErrStoreFailed, err))
	}

	if content != nil {
		_, _ = s.db.Exec("DELETE FROM keyword_tokens WHERE memory_id = ?", id)
		if err := s.indexTokens(id, namespace, newContent); err != nil {
			logging.Get(logging.CategoryMemory).Warn("re-indexing tokens failed for id=%d: %v", id, err)
		}
		if s.embeddingEngine != nil {
			if s.vectorExt {
				_, _ = s.db.Exec("DELETE FROM vec_index WHERE rowid = ?", id)
			}
			if err := s.embedAndIndex(ctx, id, newContent); err != nil {
				logging.Get(logging.CategoryMemory).Warn("re-embedding failed for id=%d: %v", id, err)
			}
		}
	}
	return nil
}

// Delete removes the given memory ids along with their keyword and
// vector index entries.
func (s *Store) Delete(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	namespaces, err := s.namespacesForIDs(ids)
	if err != nil {
		return types.Wrap(types.KindMemory, "memory.delete", err)
	}
	// Locked per the namespace(s) the ids actually belong to, in sorted
	// order so a Delete spanning multiple namespaces can never deadlock
	// against another Delete/Update that acquires the same set in a
	// different order.
	for _, ns := range namespaces {
		lock := s.lockNamespace(ns)
		lock.Lock()
		defer lock.Unlock()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.Wrap(types.KindMemory, "memory.delete", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM memories WHERE id = ?", id); err != nil {
			tx.Rollback()
			return types.Wrap(types.KindMemory, "memory.delete", err)
		}
		if _, err := tx.Exec("DELETE FROM keyword_tokens WHERE memory_id = ?", id); err != nil {
			tx.Rollback()
			return types.Wrap(types.KindMemory, "memory.delete", err)
		}
		if s.vectorExt {
			_, _ = tx.Exec("DELETE FROM vec_index WHERE rowid = ?", id)
		}
	}
	return tx.Commit()
}

// namespacesForIDs returns the distinct, sorted set of namespaces the
// given ids currently belong to, so Delete can lock exactly those
// namespaces rather than every namespace in the store.
func (s *Store) namespacesForIDs(ids []uint64) ([]string, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("SELECT DISTINCT namespace FROM memories WHERE id IN (%s)", strings.Join(placeholders, ","))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err == nil {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Clear removes every memory in namespace.
func (s *Store) Clear(namespace string) error {
	ids, err := s.idsInNamespace(namespace)
	if err != nil {
		return types.Wrap(types.KindMemory, "memory.clear", err)
	}
	return s.Delete(ids)
}

func (s *Store) idsInNamespace(namespace string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id FROM memories WHERE namespace = ?", namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of memories, optionally scoped to namespace.
func (s *Store) Count(namespace string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	var err error
	if namespace == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM memories WHERE namespace = ?", namespace).Scan(&n)
	}
	if err != nil {
		return 0, types.Wrap(types.KindMemory, "memory.count", err)
	}
	return n, nil
}

// AllInNamespace returns every memory row in namespace, embedding
// included when the ANN index is active. Used by the pruning system's
// redundancy/quality/age strategies, which need full rows rather than a
// ranked top-k.
func (s *Store) AllInNamespace(namespace string) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, namespace, content, metadata, created_at, updated_at FROM memories WHERE namespace = ?", namespace)
	if err != nil {
		return nil, types.Wrap(types.KindMemory, "memory.all_in_namespace", err)
	}
	defer rows.Close()

	var out []types.Memory
	for rows.Next() {
		var m types.Memory
		var metaJSON sql.NullString
		var createdMs, updatedMs int64
		if err := rows.Scan(&m.ID, &m.Namespace, &m.Content, &metaJSON, &createdMs, &updatedMs); err != nil {
			continue
		}
		m.CreatedAt = time.UnixMilli(createdMs)
		m.UpdatedAt = time.UnixMilli(updatedMs)
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
		}
		out = append(out, m)
	}

	if s.vectorExt {
		for i := range out {
			var blob []byte
			if err := s.db.QueryRow("SELECT embedding FROM vec_index WHERE rowid = ?", out[i].ID).Scan(&blob); err == nil {
				out[i].Embedding = decodeFloat32Slice(blob)
			}
		}
	}
	return out, nil
}

// ListNamespaces returns every distinct namespace currently in use.
func (s *Store) ListNamespaces() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT DISTINCT namespace FROM memories")
	if err != nil {
		return nil, types.Wrap(types.KindMemory, "memory.list_namespaces", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err == nil {
			out = append(out, ns)
		}
	}
	return out, nil
}
