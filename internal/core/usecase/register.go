package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
)

type RegisterResourceUseCase struct {
	catalog ports.Catalog
	blobs   ports.BlobStore
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewRegisterResourceUseCase(
	catalog ports.Catalog,
	blobs ports.BlobStore,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *RegisterResourceUseCase {
	return &RegisterResourceUseCase{
		catalog: catalog,
		blobs:   blobs,
		queue:   queue,
		logger:  logger,
	}
}

// Register computes the content hash, persists the raw bytes and inserts a
// pending catalog entry. Calling it again with identical bytes is a no-op
// that returns the existing entry. New content for an already-known origin
// disables the older entries for that origin.
func (uc *RegisterResourceUseCase) Register(
	ctx context.Context,
	res *domain.Resource,
) (*domain.CatalogEntry, bool, error) {
	if res == nil || len(res.Content) == 0 {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "register resource", errors.New("empty content"))
	}
	if !validSourceType(res.SourceType) {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "register resource",
			fmt.Errorf("unknown source type %q", res.SourceType))
	}

	hash := domain.HashContent(res.Content)
	if _, err := uc.blobs.Store(ctx, hash, res.Content); err != nil {
		return nil, false, fmt.Errorf("store resource bytes: %w", err)
	}

	now := time.Now().UTC()
	entry := &domain.CatalogEntry{
		ContentHash: hash,
		DisplayName: displayName(res),
		SourceType:  res.SourceType,
		OriginURI:   res.OriginURI,
		MediaType:   res.MediaType,
		SizeBytes:   int64(len(res.Content)),
		Metadata:    res.Metadata,
		Status:      domain.StatusPending,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	isNew, err := uc.catalog.Register(ctx, entry)
	if err != nil {
		return nil, false, fmt.Errorf("register catalog entry: %w", err)
	}
	if !isNew {
		// Pending entries are driven only by the queue. If the original
		// event was lost (publish failed, no subscriber at the time), this
		// duplicate submission is the one chance to get it moving again.
		if entry.Status == domain.StatusPending {
			if err := uc.queue.PublishResourceRegistered(ctx, hash); err != nil {
				return nil, false, fmt.Errorf("republish registration event: %w", err)
			}
			uc.logger.Info("pending_registration_republished", "content_hash", hash)
		}
		return entry, false, nil
	}

	if res.OriginURI != "" {
		superseded, err := uc.catalog.DisableOthersForOrigin(ctx, res.OriginURI, hash)
		if err != nil {
			return nil, false, fmt.Errorf("supersede origin entries: %w", err)
		}
		if superseded > 0 {
			uc.logger.Info("superseded_entries_disabled",
				"origin_uri", res.OriginURI, "content_hash", hash, "count", superseded)
		}
	}

	if err := uc.queue.PublishResourceRegistered(ctx, hash); err != nil {
		return nil, false, fmt.Errorf("publish registration event: %w", err)
	}

	return entry, true, nil
}

func validSourceType(st domain.SourceType) bool {
	switch st {
	case domain.SourceLocalFile, domain.SourceWeb, domain.SourceGit, domain.SourceTicket:
		return true
	}
	return false
}

func displayName(res *domain.Resource) string {
	if name := strings.TrimSpace(res.DisplayName); name != "" {
		return name
	}
	if base := path.Base(strings.TrimRight(res.OriginURI, "/")); base != "" && base != "." && base != "/" {
		return base
	}
	return "resource"
}
