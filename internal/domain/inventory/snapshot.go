package inventory

import (
	"context"
	"sync"

	"pharmadesk/internal/core/apperror"
)

// SnapshotIndex is an in-memory Index over a fixed set of batches.
// Used for fixtures, tests and warm-up of offline counters.
type SnapshotIndex struct {
	mu      sync.RWMutex
	batches map[BatchKey]Batch
}

// NewSnapshotIndex builds an index from batches; later entries win on duplicate keys.
func NewSnapshotIndex(batches ...Batch) *SnapshotIndex {
	idx := &SnapshotIndex{batches: make(map[BatchKey]Batch, len(batches))}
	for _, b := range batches {
		idx.batches[b.Key().Normalize()] = b
	}
	return idx
}

// Lookup implements Index.
func (s *SnapshotIndex) Lookup(ctx context.Context, key BatchKey) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[key.Normalize()]
	if !ok {
		return Batch{}, apperror.NewNotFound("inventory batch", key.String())
	}
	return b, nil
}

// Put replaces the snapshot of a batch.
func (s *SnapshotIndex) Put(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.Key().Normalize()] = b
}

var _ Index = (*SnapshotIndex)(nil)
