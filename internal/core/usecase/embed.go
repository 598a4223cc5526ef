package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/resilience"
)

type EmbedResourceUseCase struct {
	catalog    ports.Catalog
	blobs      ports.BlobStore
	extractor  ports.TextExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	chunkStore ports.ChunkStore
	executor   *resilience.Executor
	errLimit   int
	logger     *slog.Logger
}

func NewEmbedResourceUseCase(
	catalog ports.Catalog,
	blobs ports.BlobStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	chunkStore ports.ChunkStore,
	executor *resilience.Executor,
	errLimit int,
	logger *slog.Logger,
) *EmbedResourceUseCase {
	if errLimit <= 0 {
		errLimit = 512
	}
	return &EmbedResourceUseCase{
		catalog:    catalog,
		blobs:      blobs,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		chunkStore: chunkStore,
		executor:   executor,
		errLimit:   errLimit,
		logger:     logger,
	}
}

// ProcessByHash drives one resource through claim -> extract -> chunk ->
// embed -> replace-chunks -> embedded. The claim is the only gate against
// concurrent workers; losing it is not an error. Any pipeline failure
// removes partially written chunks and records a bounded error message.
func (uc *EmbedResourceUseCase) ProcessByHash(ctx context.Context, contentHash string) error {
	claimed, err := uc.catalog.ClaimForEmbedding(ctx, contentHash)
	if err != nil {
		return fmt.Errorf("claim for embedding: %w", err)
	}
	if !claimed {
		uc.logger.Info("claim_skipped", "content_hash", contentHash)
		return nil
	}

	chunkCount, err := uc.runPipeline(ctx, contentHash)
	if err != nil {
		uc.failResource(ctx, contentHash, err)
		return err
	}

	if err := uc.catalog.MarkEmbedded(ctx, contentHash, chunkCount); err != nil {
		if domain.IsKind(err, domain.ErrInvalidTransition) {
			// A concurrent reset raced ahead; the completed work is stale.
			uc.logger.Warn("stale_completion_discarded", "content_hash", contentHash, "error", err)
			return nil
		}
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}

func (uc *EmbedResourceUseCase) runPipeline(ctx context.Context, contentHash string) (int, error) {
	entry, err := uc.catalog.GetByHash(ctx, contentHash)
	if err != nil {
		return 0, fmt.Errorf("load catalog entry: %w", err)
	}

	raw, err := uc.blobs.Read(ctx, contentHash)
	if err != nil {
		return 0, fmt.Errorf("read resource bytes: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, entry, raw)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("no extractable text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk resource", errors.New("zero chunks produced"))
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].DocumentID = contentHash
		chunks[i].Metadata = mergeMetadata(entry.Metadata, chunks[i].Metadata)
		texts[i] = chunks[i].Text
	}

	var vectors [][]float32
	embed := func(callCtx context.Context) error {
		var embedErr error
		vectors, embedErr = uc.embedder.Embed(callCtx, texts)
		return embedErr
	}
	if err := uc.executor.Execute(ctx, "embedder.embed", embed, classifyEmbeddingError); err != nil {
		if resilience.IsCircuitOpen(err) {
			// An open breaker signals backend health, not bad content; the
			// entry must stay retryable once the backend recovers.
			err = domain.WrapError(domain.ErrTemporary, "embedding backend unavailable", err)
		}
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}
	for i := range chunks {
		if len(vectors[i]) == 0 {
			return 0, domain.WrapError(domain.ErrInvalidInput, "embed chunks",
				fmt.Errorf("empty vector for chunk %d", i))
		}
		chunks[i].Embedding = vectors[i]
	}

	if err := uc.chunkStore.ReplaceChunks(ctx, contentHash, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}
	return len(chunks), nil
}

// failResource must succeed even when the job context that caused the
// failure is already expired, otherwise a per-resource timeout strands the
// entry in embedding. Cleanup runs on a detached context with its own
// deadline so the entry always lands in failed and stays retryable.
func (uc *EmbedResourceUseCase) failResource(ctx context.Context, contentHash string, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := uc.chunkStore.DeleteChunks(cleanupCtx, contentHash); err != nil {
		uc.logger.Error("cleanup_chunks_failed", "content_hash", contentHash, "error", err)
	}
	msg := domain.TruncateError(cause.Error(), uc.errLimit)
	if err := uc.catalog.MarkFailed(cleanupCtx, contentHash, msg); err != nil {
		uc.logger.Error("mark_failed_error", "content_hash", contentHash, "error", err)
	}
}

// classifyEmbeddingError treats backend/timeout failures as retryable and
// everything else (malformed content, contract violations) as permanent.
func classifyEmbeddingError(err error) resilience.ErrorClassification {
	retryable := domain.IsKind(err, domain.ErrTemporary) ||
		errors.Is(err, context.DeadlineExceeded)
	return resilience.ErrorClassification{
		Retryable:     retryable,
		RecordFailure: retryable,
	}
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
