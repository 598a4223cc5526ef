package pdftext

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, _ *domain.CatalogEntry, content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open pdf", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "read pdf text", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
