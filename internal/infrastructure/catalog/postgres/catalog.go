package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Catalog is the Postgres-backed lifecycle table. ClaimForEmbedding is a
// single conditional UPDATE, so the at-most-one-claim guarantee holds
// across any number of worker processes.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	content_hash TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	origin_uri TEXT NOT NULL,
	media_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	ingestion_error TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_status ON catalog_entries(status);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_origin ON catalog_entries(origin_uri);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_created_at ON catalog_entries(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Register inserts a pending entry for an unseen hash. If the hash already
// exists the stored row is loaded into entry unchanged and isNew is false.
func (c *Catalog) Register(ctx context.Context, entry *domain.CatalogEntry) (bool, error) {
	metadataJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx, `
INSERT INTO catalog_entries (
	content_hash, display_name, source_type, origin_uri, media_type, size_bytes,
	metadata, status, ingestion_error, enabled, chunk_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',TRUE,0,$9,$10)
ON CONFLICT (content_hash) DO NOTHING
`,
		entry.ContentHash, entry.DisplayName, string(entry.SourceType), entry.OriginURI,
		entry.MediaType, entry.SizeBytes, metadataJSON, string(entry.Status),
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert catalog entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	existing, err := c.GetByHash(ctx, entry.ContentHash)
	if err != nil {
		return false, err
	}
	*entry = *existing
	return false, nil
}

func (c *Catalog) GetByHash(ctx context.Context, contentHash string) (*domain.CatalogEntry, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT content_hash, display_name, source_type, origin_uri, media_type, size_bytes,
	metadata, status, ingestion_error, enabled, chunk_count, created_at, updated_at
FROM catalog_entries
WHERE content_hash = $1
`, contentHash)

	var entry domain.CatalogEntry
	var metadataRaw []byte
	var sourceType, status string

	err := row.Scan(
		&entry.ContentHash, &entry.DisplayName, &sourceType, &entry.OriginURI,
		&entry.MediaType, &entry.SizeBytes, &metadataRaw, &status,
		&entry.IngestionError, &entry.Enabled, &entry.ChunkCount,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get catalog entry",
				fmt.Errorf("content hash %s", contentHash))
		}
		return nil, fmt.Errorf("scan catalog entry: %w", err)
	}

	if err := json.Unmarshal(metadataRaw, &entry.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	entry.SourceType = domain.SourceType(sourceType)
	entry.Status = domain.IngestionStatus(status)
	return &entry, nil
}

// ClaimForEmbedding atomically moves one pending or failed entry to
// embedding. Returns false when another worker holds the claim or the
// entry is gone.
func (c *Catalog) ClaimForEmbedding(ctx context.Context, contentHash string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET status = 'embedding', ingestion_error = '', updated_at = $2
WHERE content_hash = $1 AND status IN ('pending', 'failed')
`, contentHash, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkEmbedded completes the pipeline for one resource. The status guard
// rejects stale completions: only an entry still in embedding is updated.
func (c *Catalog) MarkEmbedded(ctx context.Context, contentHash string, chunkCount int) error {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET status = 'embedded', chunk_count = $2, ingestion_error = '', updated_at = $3
WHERE content_hash = $1 AND status = 'embedding'
`, contentHash, chunkCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return c.requireTransition(ctx, res, contentHash, domain.StatusEmbedded)
}

func (c *Catalog) MarkFailed(ctx context.Context, contentHash string, message string) error {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET status = 'failed', chunk_count = 0, ingestion_error = $2, updated_at = $3
WHERE content_hash = $1 AND status = 'embedding'
`, contentHash, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return c.requireTransition(ctx, res, contentHash, domain.StatusFailed)
}

// Retry moves a failed entry back to pending and clears its error.
func (c *Catalog) Retry(ctx context.Context, contentHash string) error {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET status = 'pending', ingestion_error = '', updated_at = $2
WHERE content_hash = $1 AND status = 'failed'
`, contentHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("retry update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	entry, err := c.GetByHash(ctx, contentHash)
	if err != nil {
		return err
	}
	return domain.WrapError(domain.ErrNotFailed, "retry",
		fmt.Errorf("entry %s is %s", contentHash, entry.Status))
}

// ForceReset moves a stuck embedding entry to failed. Idempotent and safe
// against a live worker: when the worker finishes first the guard matches
// nothing and the embedded result stands.
func (c *Catalog) ForceReset(ctx context.Context, contentHash string, message string) error {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET status = 'failed', chunk_count = 0, ingestion_error = $2, updated_at = $3
WHERE content_hash = $1 AND status = 'embedding'
`, contentHash, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("force reset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing was embedding; confirm the entry exists and leave it alone.
	if _, err := c.GetByHash(ctx, contentHash); err != nil {
		return err
	}
	return nil
}

func (c *Catalog) SetEnabled(ctx context.Context, contentHash string, enabled bool) error {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET enabled = $2, updated_at = $3
WHERE content_hash = $1
`, contentHash, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "set enabled",
			fmt.Errorf("content hash %s", contentHash))
	}
	return nil
}

func (c *Catalog) DisableOthersForOrigin(ctx context.Context, originURI, keepHash string) (int, error) {
	res, err := c.db.ExecContext(ctx, `
UPDATE catalog_entries
SET enabled = FALSE, updated_at = $3
WHERE origin_uri = $1 AND content_hash <> $2 AND enabled
`, originURI, keepHash, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("disable superseded entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (c *Catalog) List(
	ctx context.Context,
	filter domain.DocumentFilter,
	limit, offset int,
) (*domain.DocumentPage, error) {
	where, args := buildListFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM catalog_entries" + where
	if err := c.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count catalog entries: %w", err)
	}

	pageQuery := fmt.Sprintf(`
SELECT content_hash, display_name, source_type, origin_uri, media_type, size_bytes,
	metadata, status, ingestion_error, enabled, chunk_count, created_at, updated_at
FROM catalog_entries%s
ORDER BY created_at DESC, content_hash
LIMIT $%d OFFSET $%d
`, where, len(args)+1, len(args)+2)
	rows, err := c.db.QueryContext(ctx, pageQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()

	page := &domain.DocumentPage{Total: total, Documents: make([]domain.CatalogEntry, 0, limit)}
	for rows.Next() {
		var entry domain.CatalogEntry
		var metadataRaw []byte
		var sourceType, status string
		if err := rows.Scan(
			&entry.ContentHash, &entry.DisplayName, &sourceType, &entry.OriginURI,
			&entry.MediaType, &entry.SizeBytes, &metadataRaw, &status,
			&entry.IngestionError, &entry.Enabled, &entry.ChunkCount,
			&entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		if err := json.Unmarshal(metadataRaw, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		entry.SourceType = domain.SourceType(sourceType)
		entry.Status = domain.IngestionStatus(status)
		page.Documents = append(page.Documents, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return page, nil
}

func (c *Catalog) GroupedStatus(ctx context.Context) (*domain.GroupedStatus, error) {
	out := &domain.GroupedStatus{StatusCounts: make(map[domain.IngestionStatus]int)}

	statusRows, err := c.db.QueryContext(ctx, `
SELECT status, COUNT(*) FROM catalog_entries GROUP BY status
`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out.StatusCounts[domain.IngestionStatus(status)] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	groupRows, err := c.db.QueryContext(ctx, `
SELECT source_type,
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'embedding'),
	COUNT(*) FILTER (WHERE status = 'embedded'),
	COUNT(*) FILTER (WHERE status = 'failed')
FROM catalog_entries
GROUP BY source_type
ORDER BY source_type
`)
	if err != nil {
		return nil, fmt.Errorf("grouped counts: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var group domain.SourceGroup
		if err := groupRows.Scan(
			&group.SourceName, &group.Total,
			&group.Pending, &group.Embedding, &group.Embedded, &group.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out.Groups = append(out.Groups, group)
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return out, nil
}

func (c *Catalog) requireTransition(
	ctx context.Context,
	res sql.Result,
	contentHash string,
	target domain.IngestionStatus,
) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	entry, err := c.GetByHash(ctx, contentHash)
	if err != nil {
		return err
	}
	return domain.WrapError(domain.ErrInvalidTransition, "catalog update",
		fmt.Errorf("%s -> %s for %s", entry.Status, target, contentHash))
}

func buildListFilter(filter domain.DocumentFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SourceType != "" {
		args = append(args, string(filter.SourceType))
		clauses = append(clauses, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if filter.SearchText != "" {
		args = append(args, "%"+filter.SearchText+"%")
		clauses = append(clauses, fmt.Sprintf("(display_name ILIKE $%d OR origin_uri ILIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}
