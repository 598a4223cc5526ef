package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type SourceType string

const (
	SourceLocalFile SourceType = "local_file"
	SourceWeb       SourceType = "web"
	SourceGit       SourceType = "git"
	SourceTicket    SourceType = "ticket"
)

type IngestionStatus string

const (
	StatusPending   IngestionStatus = "pending"
	StatusEmbedding IngestionStatus = "embedding"
	StatusEmbedded  IngestionStatus = "embedded"
	StatusFailed    IngestionStatus = "failed"
)

// Resource is what a collector hands over: raw content plus metadata.
// Identity is derived from the content, never assigned.
type Resource struct {
	DisplayName string            `json:"display_name"`
	SourceType  SourceType        `json:"source_type"`
	OriginURI   string            `json:"origin_uri"`
	MediaType   string            `json:"media_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Content     []byte            `json:"-"`
}

// CatalogEntry is the authoritative lifecycle row for one content hash.
type CatalogEntry struct {
	ContentHash    string            `json:"content_hash"`
	DisplayName    string            `json:"display_name"`
	SourceType     SourceType        `json:"source_type"`
	OriginURI      string            `json:"origin_uri"`
	MediaType      string            `json:"media_type,omitempty"`
	SizeBytes      int64             `json:"size_bytes"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         IngestionStatus   `json:"status"`
	IngestionError string            `json:"ingestion_error,omitempty"`
	Enabled        bool              `json:"enabled"`
	ChunkCount     int               `json:"chunk_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// HashContent derives the content-addressed identity of a byte sequence.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CanTransition reports whether a status change is permitted. Claiming a
// failed entry jumps straight to embedding; everything else moves forward
// one step at a time.
func CanTransition(from, to IngestionStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusEmbedding
	case StatusEmbedding:
		return to == StatusEmbedded || to == StatusFailed
	case StatusFailed:
		return to == StatusPending || to == StatusEmbedding
	default:
		return false
	}
}
