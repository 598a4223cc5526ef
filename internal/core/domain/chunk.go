package domain

import "fmt"

// Chunk is a contiguous slice of one resource's text, the unit of retrieval.
// (DocumentID, ChunkIndex) is unique; indices are contiguous from zero.
type Chunk struct {
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	StartChar  int               `json:"start_char"`
	EndChar    int               `json:"end_char"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ID is the stable chunk identifier used for deterministic tie-breaking.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%06d", c.DocumentID, c.ChunkIndex)
}

type Strategy string

const (
	StrategyLexical  Strategy = "lexical"
	StrategySemantic Strategy = "semantic"
	StrategyHybrid   Strategy = "hybrid"
	StrategyGrading  Strategy = "grading"
)

// RetrievalResult is the ephemeral per-query ranking output.
type RetrievalResult struct {
	ChunkID         string            `json:"chunk_id"`
	DocumentID      string            `json:"document_id"`
	ChunkIndex      int               `json:"chunk_index"`
	Text            string            `json:"text"`
	Score           float64           `json:"score"`
	Rank            int               `json:"rank"`
	SourceRetriever string            `json:"source_retriever"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}
