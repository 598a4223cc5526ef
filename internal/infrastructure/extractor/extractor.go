package extractor

import (
	"context"
	"path"
	"strings"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/extractor/htmltext"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/extractor/pdftext"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/extractor/plaintext"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/extractor/xlsxtext"
)

// Composite routes raw resource bytes to a format extractor based on the
// declared media type, falling back to the origin's file extension and then
// to plaintext. Extraction failures are permanent: re-running the pipeline
// on the same bytes cannot succeed.
type Composite struct {
	plain ports.TextExtractor
	html  ports.TextExtractor
	pdf   ports.TextExtractor
	xlsx  ports.TextExtractor
}

func NewComposite() *Composite {
	return &Composite{
		plain: plaintext.New(),
		html:  htmltext.New(),
		pdf:   pdftext.New(),
		xlsx:  xlsxtext.New(),
	}
}

func (c *Composite) Extract(ctx context.Context, entry *domain.CatalogEntry, content []byte) (string, error) {
	return c.pick(entry).Extract(ctx, entry, content)
}

func (c *Composite) pick(entry *domain.CatalogEntry) ports.TextExtractor {
	mediaType := strings.ToLower(entry.MediaType)
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return c.html
	case "application/pdf":
		return c.pdf
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return c.xlsx
	case "":
	default:
		return c.plain
	}

	switch strings.ToLower(path.Ext(extensionSource(entry))) {
	case ".html", ".htm":
		return c.html
	case ".pdf":
		return c.pdf
	case ".xlsx":
		return c.xlsx
	default:
		return c.plain
	}
}

func extensionSource(entry *domain.CatalogEntry) string {
	if entry.DisplayName != "" {
		return entry.DisplayName
	}
	return entry.OriginURI
}
