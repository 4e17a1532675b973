package domain

// Fragment is a unit of source text subject to evaluation and highlighting,
// typically one fenced code block of a markdown document.
//
// Identity is the exact text plus the language tag, never the position: an
// unedited fragment keeps its cached tokens and its recorded error when the
// text around it moves.
type Fragment struct {
	// Text is the literal content of the block.
	Text string `json:"text"`

	// Language is the first word of the fence info string (may be empty).
	Language string `json:"language,omitempty"`

	// Range is caller-opaque; the document coordinator stores the byte range
	// of the block content in the source.
	Range Range `json:"range"`

	// Error holds the last stderr output recorded for this fragment.
	Error string `json:"error,omitempty"`
}

// Key returns the identity of the fragment.
func (f Fragment) Key() string {
	return FragmentKey(f.Language, f.Text)
}

// FragmentKey builds the identity used by caches and error state.
func FragmentKey(language, text string) string {
	return language + "\x00" + text
}
