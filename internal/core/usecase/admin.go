package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
)

// CatalogAdminUseCase is the operational surface over the catalog: status
// lookups, retries, stuck-claim resets, visibility toggles and purge.
type CatalogAdminUseCase struct {
	catalog    ports.Catalog
	blobs      ports.BlobStore
	chunkStore ports.ChunkStore
	logger     *slog.Logger
}

func NewCatalogAdminUseCase(
	catalog ports.Catalog,
	blobs ports.BlobStore,
	chunkStore ports.ChunkStore,
	logger *slog.Logger,
) *CatalogAdminUseCase {
	return &CatalogAdminUseCase{
		catalog:    catalog,
		blobs:      blobs,
		chunkStore: chunkStore,
		logger:     logger,
	}
}

func (uc *CatalogAdminUseCase) GetStatus(ctx context.Context, contentHash string) (*domain.CatalogEntry, error) {
	return uc.catalog.GetByHash(ctx, contentHash)
}

func (uc *CatalogAdminUseCase) Retry(ctx context.Context, contentHash string) error {
	return uc.catalog.Retry(ctx, contentHash)
}

// ForceReset moves a stuck embedding entry back to failed so it becomes
// retryable. Safe to run while a worker is still alive: if the worker
// completes first the guarded update matches nothing and the embedded
// result is kept.
func (uc *CatalogAdminUseCase) ForceReset(ctx context.Context, contentHash string) error {
	return uc.catalog.ForceReset(ctx, contentHash, "reset by operator")
}

func (uc *CatalogAdminUseCase) SetEnabled(ctx context.Context, contentHash string, enabled bool) error {
	return uc.catalog.SetEnabled(ctx, contentHash, enabled)
}

// Purge permanently removes a superseded resource: raw bytes and chunks.
// Only disabled entries may be purged; plain disable never deletes data.
func (uc *CatalogAdminUseCase) Purge(ctx context.Context, contentHash string) error {
	entry, err := uc.catalog.GetByHash(ctx, contentHash)
	if err != nil {
		return err
	}
	if entry.Enabled {
		return domain.WrapError(domain.ErrInvalidInput, "purge resource",
			errors.New("entry is still enabled"))
	}
	if err := uc.chunkStore.DeleteChunks(ctx, contentHash); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := uc.blobs.Delete(ctx, contentHash); err != nil {
		return fmt.Errorf("delete resource bytes: %w", err)
	}
	uc.logger.Info("resource_purged", "content_hash", contentHash)
	return nil
}

func (uc *CatalogAdminUseCase) ListDocuments(
	ctx context.Context,
	filter domain.DocumentFilter,
	limit, offset int,
) (*domain.DocumentPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uc.catalog.List(ctx, filter, limit, offset)
}

func (uc *CatalogAdminUseCase) GroupedStatus(ctx context.Context) (*domain.GroupedStatus, error) {
	return uc.catalog.GroupedStatus(ctx)
}
