package ports

import (
	"context"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// ResourceIngestor is the inbound contract collectors submit resources to.
type ResourceIngestor interface {
	Register(ctx context.Context, res *domain.Resource) (*domain.CatalogEntry, bool, error)
}

// EmbeddingProcessor drives one resource through the chunk/embed pipeline.
type EmbeddingProcessor interface {
	ProcessByHash(ctx context.Context, contentHash string) error
}

// RetrievalService answers queries with one of the configured strategies.
type RetrievalService interface {
	Query(ctx context.Context, strategy domain.Strategy, text string, k int) ([]domain.RetrievalResult, error)
}

// CatalogAdmin is the operational surface over the catalog.
type CatalogAdmin interface {
	GetStatus(ctx context.Context, contentHash string) (*domain.CatalogEntry, error)
	Retry(ctx context.Context, contentHash string) error
	ForceReset(ctx context.Context, contentHash string) error
	SetEnabled(ctx context.Context, contentHash string, enabled bool) error
	Purge(ctx context.Context, contentHash string) error
	ListDocuments(ctx context.Context, filter domain.DocumentFilter, limit, offset int) (*domain.DocumentPage, error)
	GroupedStatus(ctx context.Context) (*domain.GroupedStatus, error)
}
