package xlsxtext

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Extractor flattens spreadsheet resources row by row, tab-separating
// cells so lexical retrieval keeps column values as separate tokens.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, _ *domain.CatalogEntry, content []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open xlsx", err)
	}
	defer file.Close()

	var b strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", domain.WrapError(domain.ErrInvalidInput, "read xlsx sheet", err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
