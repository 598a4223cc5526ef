package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
)

// Lexical ranks chunks with BM25 over their stored text. Document
// frequencies and average length are computed over the eligible corpus at
// query time, so disabled resources never influence scoring.
type Lexical struct {
	store ports.ChunkStore
	k1    float64
	b     float64
}

func NewLexical(store ports.ChunkStore, k1, b float64) *Lexical {
	if k1 <= 0 {
		k1 = 1.2
	}
	// b = 0 is a legitimate setting (no length normalization).
	if b < 0 || b > 1 {
		b = 0.75
	}
	return &Lexical{store: store, k1: k1, b: b}
}

func (r *Lexical) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	queryTerms := uniqueTerms(Tokenize(query))
	if len(queryTerms) == 0 {
		return nil, nil
	}

	chunks, err := r.store.EligibleChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load eligible chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	type chunkTerms struct {
		freq   map[string]int
		length int
	}

	corpus := make([]chunkTerms, len(chunks))
	df := make(map[string]int, len(queryTerms))
	totalLen := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		corpus[i] = chunkTerms{freq: freq, length: len(tokens)}
		totalLen += len(tokens)
		for term := range queryTerms {
			if freq[term] > 0 {
				df[term]++
			}
		}
	}
	avgdl := float64(totalLen) / float64(len(chunks))
	if avgdl <= 0 {
		return nil, nil
	}

	n := float64(len(chunks))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		if count == 0 {
			continue
		}
		idf[term] = math.Log(1 + (n-float64(count)+0.5)/(float64(count)+0.5))
	}

	results := make([]domain.RetrievalResult, 0, len(chunks))
	for i, chunk := range chunks {
		score := 0.0
		matched := false
		for term := range queryTerms {
			tf := float64(corpus[i].freq[term])
			if tf == 0 {
				continue
			}
			matched = true
			norm := tf + r.k1*(1-r.b+r.b*float64(corpus[i].length)/avgdl)
			score += idf[term] * (tf * (r.k1 + 1)) / norm
		}
		if !matched {
			continue
		}
		results = append(results, domain.RetrievalResult{
			ChunkID:         chunk.ID(),
			DocumentID:      chunk.DocumentID,
			ChunkIndex:      chunk.ChunkIndex,
			Text:            chunk.Text,
			Score:           score,
			SourceRetriever: string(domain.StrategyLexical),
			Metadata:        chunk.Metadata,
		})
	}

	sortDeterministic(results)
	results = truncate(results, k)
	assignRanks(results)
	return results, nil
}

func uniqueTerms(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		out[tok] = struct{}{}
	}
	return out
}
