package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Store is an in-process chunk store with the same replace-all semantics as
// the Postgres store. Visibility is tracked per document so tests and
// single-binary deployments can mirror catalog enable/disable.
type Store struct {
	mu     sync.RWMutex
	byDoc  map[string][]domain.Chunk
	hidden map[string]bool
}

func NewStore() *Store {
	return &Store{
		byDoc:  make(map[string][]domain.Chunk),
		hidden: make(map[string]bool),
	}
}

func (s *Store) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	copied := make([]domain.Chunk, len(chunks))
	copy(copied, chunks)
	sort.Slice(copied, func(i, j int) bool { return copied[i].ChunkIndex < copied[j].ChunkIndex })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDoc[documentID] = copied
	return nil
}

func (s *Store) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byDoc, documentID)
	return nil
}

func (s *Store) EligibleChunks(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docIDs := make([]string, 0, len(s.byDoc))
	for docID := range s.byDoc {
		if !s.hidden[docID] {
			docIDs = append(docIDs, docID)
		}
	}
	sort.Strings(docIDs)

	var out []domain.Chunk
	for _, docID := range docIDs {
		out = append(out, s.byDoc[docID]...)
	}
	return out, nil
}

// SetHidden mirrors catalog visibility for a document's chunks.
func (s *Store) SetHidden(documentID string, hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[documentID] = hidden
}
