package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/ivmaltsev/corpus-engine/internal/core/domain"
)

func TestCompositeRoutesByMediaType(t *testing.T) {
	c := NewComposite()
	cases := []struct {
		mediaType string
		want      interface{}
	}{
		{"text/html", c.html},
		{"text/html; charset=utf-8", c.html},
		{"application/xhtml+xml", c.html},
		{"application/pdf", c.pdf},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", c.xlsx},
		{"text/plain", c.plain},
		{"application/json", c.plain},
	}
	for _, tc := range cases {
		entry := &domain.CatalogEntry{MediaType: tc.mediaType}
		if got := c.pick(entry); got != tc.want {
			t.Errorf("media type %q routed to %T", tc.mediaType, got)
		}
	}
}

func TestCompositeFallsBackToExtension(t *testing.T) {
	c := NewComposite()
	cases := []struct {
		name string
		want interface{}
	}{
		{"page.html", c.html},
		{"page.HTM", c.html},
		{"report.pdf", c.pdf},
		{"sheet.xlsx", c.xlsx},
		{"notes.txt", c.plain},
		{"README", c.plain},
	}
	for _, tc := range cases {
		entry := &domain.CatalogEntry{DisplayName: tc.name}
		if got := c.pick(entry); got != tc.want {
			t.Errorf("file %q routed to %T", tc.name, got)
		}
	}
}

func TestCompositeUsesOriginWhenDisplayNameEmpty(t *testing.T) {
	c := NewComposite()
	entry := &domain.CatalogEntry{OriginURI: "https://example.com/docs/manual.pdf"}
	if got := c.pick(entry); got != c.pdf {
		t.Errorf("origin extension routed to %T", got)
	}
}

func TestCompositeExtractsPlaintext(t *testing.T) {
	c := NewComposite()
	entry := &domain.CatalogEntry{DisplayName: "notes.txt", MediaType: "text/plain"}

	text, err := c.Extract(context.Background(), entry, []byte("  plain body  "))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "plain body" {
		t.Fatalf("text %q", text)
	}
}

func TestCompositeExtractsHTML(t *testing.T) {
	c := NewComposite()
	entry := &domain.CatalogEntry{DisplayName: "page.html", MediaType: "text/html"}
	page := `<html><head><style>.x{color:red}</style><script>alert(1)</script></head>` +
		`<body><h1>Title</h1><p>First paragraph.</p></body></html>`

	text, err := c.Extract(context.Background(), entry, []byte(page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "Title") || !strings.Contains(text, "First paragraph.") {
		t.Fatalf("visible text missing: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color") {
		t.Fatalf("script/style content leaked: %q", text)
	}
}
