package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/retrieval"
)

// RetrieveUseCase dispatches queries to the configured retrieval strategy.
// Retrieval is read-only and never reflects ingestion failures: resources
// that are failed, mid-embedding or disabled simply contribute no chunks.
type RetrieveUseCase struct {
	strategies map[domain.Strategy]retrieval.Retriever
	defaultK   int
}

func NewRetrieveUseCase(
	lexical retrieval.Retriever,
	semantic retrieval.Retriever,
	hybrid retrieval.Retriever,
	grading retrieval.Retriever,
	defaultK int,
) *RetrieveUseCase {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &RetrieveUseCase{
		strategies: map[domain.Strategy]retrieval.Retriever{
			domain.StrategyLexical:  lexical,
			domain.StrategySemantic: semantic,
			domain.StrategyHybrid:   hybrid,
			domain.StrategyGrading:  grading,
		},
		defaultK: defaultK,
	}
}

func (uc *RetrieveUseCase) Query(
	ctx context.Context,
	strategy domain.Strategy,
	text string,
	k int,
) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieval query", errors.New("empty query text"))
	}
	retriever, ok := uc.strategies[strategy]
	if !ok || retriever == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieval query",
			fmt.Errorf("unknown strategy %q", strategy))
	}
	if k <= 0 {
		k = uc.defaultK
	}
	return retriever.Retrieve(ctx, text, k)
}
