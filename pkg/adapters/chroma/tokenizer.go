// Package chroma adapts the chroma lexer library to ports.Tokenizer.
package chroma

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	backend "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/aretw0/scribe/pkg/domain"
)

// Tokenizer classifies source text with chroma's lexers, in process.
// It is safe for concurrent use.
type Tokenizer struct {
	aliases map[string]string
}

// Option configures the tokenizer.
type Option func(*Tokenizer)

// WithAlias makes the fence tag language use the lexer named lexer,
// e.g. WithAlias("swift-example", "swift").
func WithAlias(language, lexer string) Option {
	return func(t *Tokenizer) {
		t.aliases[strings.ToLower(language)] = lexer
	}
}

// New creates a chroma tokenizer.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{aliases: make(map[string]string)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tokenizer) lexer(language string) backend.Lexer {
	name := strings.ToLower(language)
	if alias, ok := t.aliases[name]; ok {
		name = alias
	}
	if name == "" {
		return nil
	}
	if l := lexers.Get(name); l != nil {
		return l
	}
	// Illustrative blocks such as swift-example are highlighted as their base language.
	if base, ok := strings.CutSuffix(name, "-example"); ok && base != "" {
		return lexers.Get(base)
	}
	return nil
}

// Supports reports whether a lexer exists for language.
func (t *Tokenizer) Supports(language string) bool {
	return t.lexer(language) != nil
}

// Tokenize lexes source and keeps the spans that map to a token kind.
// Offsets are byte offsets into source. chroma lexes runes, so invalid UTF-8
// comes back as U+FFFD; positions are advanced over source itself, one rune
// per rune of the token value.
func (t *Tokenizer) Tokenize(ctx context.Context, language, source string) ([]domain.Token, error) {
	lexer := t.lexer(language)
	if lexer == nil {
		return nil, fmt.Errorf("%w: no lexer for %q", domain.ErrUnknownLanguage, language)
	}
	lexer = backend.Coalesce(lexer)

	iter, err := lexer.Tokenise(&backend.TokeniseOptions{State: "root", EnsureLF: false}, source)
	if err != nil {
		return nil, fmt.Errorf("lexing %s: %w", language, err)
	}

	var tokens []domain.Token
	pos := 0
	for tok := iter(); tok != backend.EOF; tok = iter() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := pos
		pos = advance(source, pos, utf8.RuneCountInString(tok.Value))
		kind, ok := Kind(tok.Type)
		if !ok {
			continue
		}
		end := min(pos, len(source))
		if end <= start {
			continue
		}
		// Merge with the previous token when chroma splits one span in two.
		if n := len(tokens); n > 0 && tokens[n-1].Kind == kind && tokens[n-1].Range.End == start {
			tokens[n-1].Range.End = end
			continue
		}
		tokens = append(tokens, domain.Token{Range: domain.Range{Start: start, End: end}, Kind: kind})
	}
	if tokens == nil {
		tokens = []domain.Token{}
	}
	return tokens, nil
}

// advance moves pos forward by n runes of source. An invalid byte counts as one rune.
func advance(source string, pos, n int) int {
	for ; n > 0 && pos < len(source); n-- {
		_, size := utf8.DecodeRuneInString(source[pos:])
		pos += size
	}
	return pos
}

// Kind maps a chroma token type to the kinds the notebook colours.
func Kind(tt backend.TokenType) (domain.TokenKind, bool) {
	switch {
	case tt.InCategory(backend.Keyword):
		return domain.KindKeyword, true
	case tt.InCategory(backend.Comment):
		return domain.KindComment, true
	case tt.InSubCategory(backend.LiteralString):
		return domain.KindString, true
	case tt.InSubCategory(backend.LiteralNumber):
		return domain.KindNumber, true
	}
	return 0, false
}
