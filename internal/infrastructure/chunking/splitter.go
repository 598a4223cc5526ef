package chunking

import (
	"strings"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Splitter cuts text into fixed-size overlapping rune windows. Splitting is
// purely positional, so the same input and settings always reproduce the
// same chunk set.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split returns chunks with contiguous indices from zero and rune offsets
// into the input text. Whitespace-only windows are dropped without leaving
// index gaps.
func (s *Splitter) Split(text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			out = append(out, domain.Chunk{
				ChunkIndex: len(out),
				Text:       segment,
				StartChar:  start,
				EndChar:    end,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
