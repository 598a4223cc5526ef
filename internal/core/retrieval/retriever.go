package retrieval

import (
	"context"
	"sort"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Retriever ranks eligible chunks for a query. Implementations must be
// deterministic: equal scores resolve by ascending chunk id.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error)
}

func sortDeterministic(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func assignRanks(results []domain.RetrievalResult) {
	for i := range results {
		results[i].Rank = i + 1
	}
}

func truncate(results []domain.RetrievalResult, k int) []domain.RetrievalResult {
	if k <= 0 || len(results) <= k {
		return results
	}
	return results[:k]
}
