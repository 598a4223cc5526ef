package retrieval

import (
	"strings"
	"unicode"
)

// Tokenize lowercases and splits on anything that is not a letter or digit.
// The same function is applied to queries and to stored chunk text so
// lexical scoring sees one vocabulary.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
