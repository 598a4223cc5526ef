package retrieval

import (
	"context"
	"testing"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/chunkstore/memory"
)

// seedStore loads chunks into an in-process chunk store, grouped by
// document, so tests run against the same replace-all semantics the
// pipeline writes with.
func seedStore(t *testing.T, chunks ...domain.Chunk) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	byDoc := make(map[string][]domain.Chunk)
	for _, c := range chunks {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	for doc, docChunks := range byDoc {
		if err := store.ReplaceChunks(context.Background(), doc, docChunks); err != nil {
			t.Fatalf("seed chunks for %s: %v", doc, err)
		}
	}
	return store
}

// stubEmbedder returns a fixed query vector; chunk embeddings are seeded
// directly on the chunks.
type stubEmbedder struct {
	queryVector []float32
	err         error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.queryVector
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.queryVector, nil
}

// listRetriever replays a pre-ranked result list, honoring k.
type listRetriever struct {
	results []domain.RetrievalResult
	err     error
	calls   int
}

func (r *listRetriever) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievalResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := append([]domain.RetrievalResult(nil), r.results...)
	out = truncate(out, k)
	assignRanks(out)
	return out, nil
}

func chunk(doc string, index int, text string, meta map[string]string) domain.Chunk {
	return domain.Chunk{
		DocumentID: doc,
		ChunkIndex: index,
		Text:       text,
		Metadata:   meta,
	}
}

func result(doc string, index int, source string) domain.RetrievalResult {
	c := domain.Chunk{DocumentID: doc, ChunkIndex: index}
	return domain.RetrievalResult{
		ChunkID:         c.ID(),
		DocumentID:      doc,
		ChunkIndex:      index,
		SourceRetriever: source,
	}
}
