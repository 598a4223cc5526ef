package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Store owns the chunk table. A resource's chunk set is replaced as a whole
// inside one transaction; readers either see the old set or the new one.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	embedding JSONB NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (document_id, chunk_index)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		metadataJSON, err := json.Marshal(orEmpty(chunk.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, start_char, end_char, embedding, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, documentID, chunk.ChunkIndex, chunk.Text, chunk.StartChar, chunk.EndChar, embeddingJSON, metadataJSON); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// EligibleChunks returns the chunks visible to retrieval: owning entry
// enabled and fully embedded.
func (s *Store) EligibleChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.document_id, c.chunk_index, c.text, c.start_char, c.end_char, c.embedding, c.metadata
FROM chunks c
JOIN catalog_entries e ON e.content_hash = c.document_id
WHERE e.enabled AND e.status = 'embedded'
ORDER BY c.document_id, c.chunk_index
`)
	if err != nil {
		return nil, fmt.Errorf("query eligible chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingRaw, metadataRaw []byte
		if err := rows.Scan(
			&chunk.DocumentID, &chunk.ChunkIndex, &chunk.Text,
			&chunk.StartChar, &chunk.EndChar, &embeddingRaw, &metadataRaw,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal(embeddingRaw, &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		if err := json.Unmarshal(metadataRaw, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
