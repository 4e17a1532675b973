package tui

import (
	"strings"
	"unicode"
)

// Sanitize strips control characters from interpreter output before it
// reaches the terminal. Newline, tab and carriage return are preserved; escape
// sequences, NUL and BEL are removed so a block cannot repaint the screen.
func Sanitize(s string) string {
	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range s {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
