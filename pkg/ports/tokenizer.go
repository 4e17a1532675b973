package ports

import (
	"context"

	"github.com/aretw0/scribe/pkg/domain"
)

// Tokenizer classifies spans of source text.
type Tokenizer interface {
	// Tokenize returns tokens for source with half-open byte ranges into source.
	// Unsupported languages return an error wrapping domain.ErrUnknownLanguage.
	Tokenize(ctx context.Context, language, source string) ([]domain.Token, error)
}

// TokenizerFunc adapts a function to the Tokenizer interface.
type TokenizerFunc func(ctx context.Context, language, source string) ([]domain.Token, error)

// Tokenize calls f.
func (f TokenizerFunc) Tokenize(ctx context.Context, language, source string) ([]domain.Token, error) {
	return f(ctx, language, source)
}
