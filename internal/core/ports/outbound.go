package ports

import (
	"context"
	"time"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Catalog is the authoritative lifecycle table for every known resource.
// ClaimForEmbedding is the single serialization point: it must be an atomic
// conditional update so concurrent workers never double-process a resource.
type Catalog interface {
	Register(ctx context.Context, entry *domain.CatalogEntry) (isNew bool, err error)
	GetByHash(ctx context.Context, contentHash string) (*domain.CatalogEntry, error)
	ClaimForEmbedding(ctx context.Context, contentHash string) (bool, error)
	MarkEmbedded(ctx context.Context, contentHash string, chunkCount int) error
	MarkFailed(ctx context.Context, contentHash string, message string) error
	Retry(ctx context.Context, contentHash string) error
	ForceReset(ctx context.Context, contentHash string, message string) error
	SetEnabled(ctx context.Context, contentHash string, enabled bool) error
	DisableOthersForOrigin(ctx context.Context, originURI, keepHash string) (int, error)
	List(ctx context.Context, filter domain.DocumentFilter, limit, offset int) (*domain.DocumentPage, error)
	GroupedStatus(ctx context.Context) (*domain.GroupedStatus, error)
}

// BlobStore keeps raw resource bytes on a content-addressed path.
type BlobStore interface {
	Store(ctx context.Context, contentHash string, content []byte) (path string, err error)
	Read(ctx context.Context, contentHash string) ([]byte, error)
	Delete(ctx context.Context, contentHash string) error
}

// ChunkStore owns chunk rows and their vectors. ReplaceChunks has
// replace-all semantics: a resource's chunk set is never partially updated.
// EligibleChunks returns only chunks whose catalog entry is enabled and
// embedded.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	DeleteChunks(ctx context.Context, documentID string) error
	EligibleChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Chunker splits extracted text deterministically into overlapping chunks.
type Chunker interface {
	Split(text string) []domain.Chunk
}

// Embedder produces fixed-dimension vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor turns raw resource bytes into indexable text.
type TextExtractor interface {
	Extract(ctx context.Context, entry *domain.CatalogEntry, content []byte) (string, error)
}

// MessageQueue decouples registration from embedding. The publish time is
// carried with each message so consumers can measure queue lag.
type MessageQueue interface {
	PublishResourceRegistered(ctx context.Context, contentHash string) error
	SubscribeResourceRegistered(ctx context.Context, handler func(ctx context.Context, contentHash string, publishedAt time.Time) error) error
}
