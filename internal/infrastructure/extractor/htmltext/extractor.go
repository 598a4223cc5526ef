package htmltext

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

// Extractor flattens crawled HTML pages to whitespace-normalized text.
// Script and style subtrees carry no indexable content and are skipped.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, _ *domain.CatalogEntry, content []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse html", err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return strings.Join(parts, " "), nil
}
