package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, entry *domain.CatalogEntry, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract plaintext",
			fmt.Errorf("%s is not valid UTF-8", entry.DisplayName))
	}
	return strings.TrimSpace(string(content)), nil
}
