package retrieval

import (
	"context"
	"sort"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Hybrid fuses the lexical and semantic rankings with reciprocal rank
// fusion. Both retrievers are over-fetched so the fusion step has enough
// candidates, and fusion operates purely on rank position, never on the
// incomparable raw scores.
type Hybrid struct {
	lexical   Retriever
	semantic  Retriever
	rrfK      int
	overfetch int
}

func NewHybrid(lexical, semantic Retriever, rrfK, overfetch int) *Hybrid {
	if rrfK <= 0 {
		rrfK = 60
	}
	if overfetch < 1 {
		overfetch = 2
	}
	return &Hybrid{
		lexical:   lexical,
		semantic:  semantic,
		rrfK:      rrfK,
		overfetch: overfetch,
	}
}

type fusedResult struct {
	result domain.RetrievalResult
	inBoth bool
}

func (r *Hybrid) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	fused, err := r.fuse(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, len(fused))
	for i, f := range fused {
		results[i] = f.result
	}
	results = truncate(results, k)
	assignRanks(results)
	return results, nil
}

// fuse returns the full fused candidate list, sorted but not yet truncated.
// Ties resolve first toward chunks present in both lists, then by ascending
// chunk id.
func (r *Hybrid) fuse(ctx context.Context, query string, k int) ([]fusedResult, error) {
	if k <= 0 {
		k = 5
	}
	candidates := k * r.overfetch

	lexical, err := r.lexical.Retrieve(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	semantic, err := r.semantic.Retrieve(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		result  domain.RetrievalResult
		score   float64
		sources int
	}
	acc := make(map[string]*accumulator, len(lexical)+len(semantic))
	addList := func(results []domain.RetrievalResult) {
		for _, res := range results {
			entry, ok := acc[res.ChunkID]
			if !ok {
				entry = &accumulator{result: res}
				acc[res.ChunkID] = entry
			}
			entry.score += 1.0 / float64(r.rrfK+res.Rank)
			entry.sources++
		}
	}
	addList(lexical)
	addList(semantic)

	fused := make([]fusedResult, 0, len(acc))
	for _, entry := range acc {
		result := entry.result
		result.Score = entry.score
		result.Rank = 0
		if entry.sources > 1 {
			result.SourceRetriever = string(domain.StrategyLexical) + "+" + string(domain.StrategySemantic)
		}
		fused = append(fused, fusedResult{result: result, inBoth: entry.sources > 1})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].result.Score != fused[j].result.Score {
			return fused[i].result.Score > fused[j].result.Score
		}
		if fused[i].inBoth != fused[j].inBoth {
			return fused[i].inBoth
		}
		return fused[i].result.ChunkID < fused[j].result.ChunkID
	})
	return fused, nil
}
