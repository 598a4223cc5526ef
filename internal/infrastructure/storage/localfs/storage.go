package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// BlobStore keeps raw resource bytes under a content-addressed path:
// base/<first two hash chars>/<hash>. Writes go through a temp file and a
// rename so readers never observe partial content.
type BlobStore struct {
	basePath string
}

func New(basePath string) (*BlobStore, error) {
	if basePath == "" {
		basePath = "./data/blobs"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobStore{basePath: basePath}, nil
}

// Store writes content under its hash. Re-storing identical bytes is a
// no-op; different bytes under an existing hash is a collision and an
// error for this write only.
func (s *BlobStore) Store(_ context.Context, contentHash string, content []byte) (string, error) {
	path := s.pathFor(contentHash)

	existing, err := os.ReadFile(path)
	if err == nil {
		if bytes.Equal(existing, content) {
			return path, nil
		}
		return "", domain.WrapError(domain.ErrDuplicateContent, "store blob",
			fmt.Errorf("hash %s maps to different bytes", contentHash))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read existing blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create fan-out dir: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("write blob temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return path, nil
}

func (s *BlobStore) Read(_ context.Context, contentHash string) ([]byte, error) {
	raw, err := os.ReadFile(s.pathFor(contentHash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "read blob",
				fmt.Errorf("content hash %s", contentHash))
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return raw, nil
}

// Delete removes the stored bytes. Missing blobs are not an error so purge
// stays idempotent.
func (s *BlobStore) Delete(_ context.Context, contentHash string) error {
	err := os.Remove(s.pathFor(contentHash))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *BlobStore) pathFor(contentHash string) string {
	fanOut := contentHash
	if len(fanOut) > 2 {
		fanOut = fanOut[:2]
	}
	return filepath.Join(s.basePath, fanOut, contentHash)
}
