package highlight

import (
	"sort"
	"strings"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/muesli/termenv"
)

// Style maps token kinds to colours. It is immutable once built and is
// passed explicitly wherever fragments are rendered.
type Style struct {
	colors map[domain.TokenKind]string
}

// NewStyle builds a style from hex colours such as "#2aa198".
func NewStyle(colors map[domain.TokenKind]string) Style {
	c := make(map[domain.TokenKind]string, len(colors))
	for k, v := range colors {
		c[k] = v
	}
	return Style{colors: c}
}

// DefaultStyle uses the Solarized accent colours.
func DefaultStyle() Style {
	return NewStyle(map[domain.TokenKind]string{
		domain.KindString:  "#2aa198", // cyan
		domain.KindNumber:  "#d33682", // magenta
		domain.KindKeyword: "#859900", // green
		domain.KindComment: "#586e75", // base01
	})
}

// Color returns the colour for kind.
func (s Style) Color(kind domain.TokenKind) (string, bool) {
	c, ok := s.colors[kind]
	return c, ok
}

// With returns a copy of s with kind coloured c.
func (s Style) With(kind domain.TokenKind, c string) Style {
	next := NewStyle(s.colors)
	next.colors[kind] = c
	return next
}

// RenderANSI colours text for a terminal with the given profile.
// Overlapping or out-of-range tokens are skipped.
func RenderANSI(text string, tokens []domain.Token, style Style, profile termenv.Profile) string {
	if profile == termenv.Ascii || len(tokens) == 0 {
		return text
	}
	sorted := append([]domain.Token(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })

	var b strings.Builder
	pos := 0
	for _, tok := range sorted {
		r := tok.Range
		if r.Start < pos || r.End > len(text) || r.End <= r.Start {
			continue
		}
		hex, ok := style.Color(tok.Kind)
		if !ok {
			continue
		}
		b.WriteString(text[pos:r.Start])
		b.WriteString(termenv.String(text[r.Start:r.End]).Foreground(profile.Color(hex)).String())
		pos = r.End
	}
	b.WriteString(text[pos:])
	return b.String()
}
