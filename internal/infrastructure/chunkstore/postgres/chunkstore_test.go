package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewStore(db), mock
}

func TestReplaceChunksRunsInOneTransaction(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunks := []domain.Chunk{
		{DocumentID: "doc1", ChunkIndex: 0, Text: "a", Embedding: []float32{1}},
		{DocumentID: "doc1", ChunkIndex: 1, Text: "b", Embedding: []float32{2}},
	}
	if err := store.ReplaceChunks(context.Background(), "doc1", chunks); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestReplaceChunksRollsBackOnInsertFailure(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.ReplaceChunks(context.Background(), "doc1", []domain.Chunk{
		{DocumentID: "doc1", ChunkIndex: 0, Text: "a", Embedding: []float32{1}},
	})
	if err == nil {
		t.Fatal("expected insert failure to surface")
	}
}

func TestDeleteChunks(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.DeleteChunks(context.Background(), "doc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestEligibleChunksJoinsOnCatalogVisibility(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("JOIN catalog_entries").
		WillReturnRows(sqlmock.NewRows([]string{
			"document_id", "chunk_index", "text", "start_char", "end_char", "embedding", "metadata",
		}).
			AddRow("doc1", 0, "alpha", 0, 5, []byte(`[0.1,0.2]`), []byte(`{"team":"platform"}`)).
			AddRow("doc1", 1, "beta", 5, 9, []byte(`[0.3,0.4]`), []byte(`{}`)))

	chunks, err := store.EligibleChunks(context.Background())
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "alpha" || len(chunks[0].Embedding) != 2 {
		t.Fatalf("unexpected first chunk %+v", chunks[0])
	}
	if chunks[0].Metadata["team"] != "platform" {
		t.Fatalf("metadata lost: %+v", chunks[0].Metadata)
	}
}
