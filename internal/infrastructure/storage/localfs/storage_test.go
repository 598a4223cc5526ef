package localfs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

func newStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStoreAndReadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := []byte("raw resource bytes")
	hash := domain.HashContent(content)

	path, err := store.Store(ctx, hash, content)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != hash[:2] {
		t.Fatalf("blob not fanned out by hash prefix: %s", path)
	}

	got, err := store.Read(ctx, hash)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("read bytes differ from stored bytes")
	}
}

func TestStoreIdenticalBytesIsNoOp(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := []byte("same content")
	hash := domain.HashContent(content)

	first, err := store.Store(ctx, hash, content)
	if err != nil {
		t.Fatalf("first store: %v", err)
	}
	second, err := store.Store(ctx, hash, content)
	if err != nil {
		t.Fatalf("second store: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %s vs %s", first, second)
	}
}

func TestStoreDetectsHashCollision(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	hash := domain.HashContent([]byte("original"))

	if _, err := store.Store(ctx, hash, []byte("original")); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, err := store.Store(ctx, hash, []byte("different bytes"))
	if !domain.IsKind(err, domain.ErrDuplicateContent) {
		t.Fatalf("expected duplicate content error, got %v", err)
	}

	// The earlier write must be untouched.
	got, err := store.Read(ctx, hash)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("collision overwrote stored bytes: %q", got)
	}
}

func TestReadUnknownHash(t *testing.T) {
	store := newStore(t)
	if _, err := store.Read(context.Background(), "deadbeef"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := []byte("to be deleted")
	hash := domain.HashContent(content)

	if _, err := store.Store(ctx, hash, content); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Delete(ctx, hash); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, hash); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, err := store.Read(ctx, hash); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatal("blob still readable after delete")
	}
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	content := []byte("payload")
	hash := domain.HashContent(content)
	if _, err := store.Store(context.Background(), hash, content); err != nil {
		t.Fatalf("store: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, hash[:2]))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != hash {
			t.Fatalf("unexpected file left behind: %s", e.Name())
		}
	}
}
