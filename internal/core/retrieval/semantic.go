package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
)

// Semantic ranks chunks by exact cosine similarity between the query vector
// and each stored chunk vector.
type Semantic struct {
	store    ports.ChunkStore
	embedder ports.Embedder
}

func NewSemantic(store ports.ChunkStore, embedder ports.Embedder) *Semantic {
	return &Semantic{store: store, embedder: embedder}
}

func (r *Semantic) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) == 0 {
		return nil, nil
	}

	chunks, err := r.store.EligibleChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load eligible chunks: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(queryVector) {
			continue
		}
		results = append(results, domain.RetrievalResult{
			ChunkID:         chunk.ID(),
			DocumentID:      chunk.DocumentID,
			ChunkIndex:      chunk.ChunkIndex,
			Text:            chunk.Text,
			Score:           cosineSimilarity(queryVector, chunk.Embedding),
			SourceRetriever: string(domain.StrategySemantic),
			Metadata:        chunk.Metadata,
		})
	}

	sortDeterministic(results)
	results = truncate(results, k)
	assignRanks(results)
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
