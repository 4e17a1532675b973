package highlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/scribe/internal/logging"
	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/observability"
	"github.com/aretw0/scribe/pkg/ports"
)

// DefaultDelimiter separates fragments in a batched tokenizer input.
const DefaultDelimiter = "\n\n"

// Result is the outcome for one input fragment.
type Result struct {
	Fragment domain.Fragment
	// Tokens are relative to Fragment.Text. Nil means tokenization failed.
	Tokens []domain.Token
	// Cached is true when no tokenizer call was needed for this fragment.
	Cached bool
}

// Highlighter tokenizes fragments with a shared cache.
// It is safe for concurrent use.
type Highlighter struct {
	tokenizer ports.Tokenizer
	cache     *Cache
	store     ports.TokenStore
	delimiter string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithCache replaces the default in-memory cache.
func WithCache(c *Cache) Option {
	return func(h *Highlighter) {
		h.cache = c
	}
}

// WithStore adds a persistent second-level cache.
func WithStore(s ports.TokenStore) Option {
	return func(h *Highlighter) {
		h.store = s
	}
}

// WithDelimiter sets the separator placed between fragments of a batch.
func WithDelimiter(d string) Option {
	return func(h *Highlighter) {
		if d != "" {
			h.delimiter = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Highlighter) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records cache lookups and tokenizer calls.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Highlighter) {
		h.metrics = m
	}
}

// New creates a Highlighter around tokenizer.
func New(tokenizer ports.Tokenizer, opts ...Option) *Highlighter {
	h := &Highlighter{
		tokenizer: tokenizer,
		delimiter: DefaultDelimiter,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cache == nil {
		h.cache, _ = NewCache(4096, 32<<20)
	}
	h.cache.setMetrics(h.metrics)
	return h
}

// Cache returns the in-memory cache.
func (h *Highlighter) Cache() *Cache {
	return h.cache
}

// batch is the concatenated input for one language.
type batch struct {
	language string
	texts    []string
	starts   []int
	source   strings.Builder
}

func (b *batch) add(text, delimiter string) {
	if len(b.texts) > 0 {
		b.source.WriteString(delimiter)
	}
	b.starts = append(b.starts, b.source.Len())
	b.texts = append(b.texts, text)
	b.source.WriteString(text)
}

// Highlight returns tokens for every fragment, in input order.
// Fragments whose language batch failed come back with nil Tokens and the
// returned error wraps domain.ErrTokenizerFailure; other fragments are still filled.
func (h *Highlighter) Highlight(ctx context.Context, fragments []domain.Fragment) ([]Result, error) {
	results := make([]Result, len(fragments))

	// 1. Split into hits and misses.
	misses := make(map[string][]int) // key -> indexes into fragments
	var order []string
	for i, f := range fragments {
		results[i].Fragment = f
		key := f.Key()
		if tokens, ok := h.lookup(ctx, key); ok {
			results[i].Tokens = tokens
			results[i].Cached = true
			continue
		}
		if _, seen := misses[key]; !seen {
			order = append(order, key)
		}
		misses[key] = append(misses[key], i)
	}

	// 2. Nothing to do.
	if len(order) == 0 {
		return results, nil
	}

	// 3. Group unique texts per language.
	batches := make(map[string]*batch)
	var languages []string
	for _, key := range order {
		f := fragments[misses[key][0]]
		b, ok := batches[f.Language]
		if !ok {
			b = &batch{language: f.Language}
			batches[f.Language] = b
			languages = append(languages, f.Language)
		}
		b.add(f.Text, h.delimiter)
	}

	// 4-6. One tokenizer call per language, then attribute and store.
	var errs []error
	for _, lang := range languages {
		b := batches[lang]
		perText, err := h.tokenize(ctx, b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for j, text := range b.texts {
			key := domain.FragmentKey(lang, text)
			tokens := perText[j]
			h.cache.Put(key, tokens)
			h.save(ctx, key, tokens)
			for _, i := range misses[key] {
				results[i].Tokens = cloneTokens(tokens)
			}
		}
	}

	return results, errors.Join(errs...)
}

func (h *Highlighter) lookup(ctx context.Context, key string) ([]domain.Token, bool) {
	if tokens, ok := h.cache.Get(key); ok {
		h.metrics.RecordCacheLookup("hit")
		return tokens, true
	}
	if h.store != nil {
		tokens, err := h.store.Load(ctx, key)
		switch {
		case err == nil:
			h.metrics.RecordCacheLookup("store_hit")
			h.cache.Put(key, tokens)
			return cloneTokens(tokens), true
		case !errors.Is(err, domain.ErrTokensNotFound):
			h.logger.Warn("token store load failed", "err", err)
		}
	}
	h.metrics.RecordCacheLookup("miss")
	return nil, false
}

func (h *Highlighter) save(ctx context.Context, key string, tokens []domain.Token) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(ctx, key, tokens); err != nil {
		h.logger.Warn("token store save failed", "err", err)
	}
}

// tokenize runs one tokenizer call for b and splits the result per text.
func (h *Highlighter) tokenize(ctx context.Context, b *batch) ([][]domain.Token, error) {
	source := b.source.String()
	start := time.Now()
	tokens, err := h.tokenizer.Tokenize(ctx, b.language, source)
	h.metrics.RecordTokenizerCall(b.language, err, time.Since(start))
	if err != nil {
		h.logger.Warn("tokenizer failed", "language", b.language, "fragments", len(b.texts), "err", err)
		return nil, fmt.Errorf("%w: language %q: %w", domain.ErrTokenizerFailure, b.language, err)
	}
	h.logger.Debug("tokenized batch", "language", b.language, "fragments", len(b.texts), "tokens", len(tokens))
	return attribute(tokens, b.starts, b.texts), nil
}

// attribute maps batch-relative tokens back to the fragment each one starts
// in. Tokens starting inside a delimiter are dropped; ends are clamped to the
// fragment length.
func attribute(tokens []domain.Token, starts []int, texts []string) [][]domain.Token {
	out := make([][]domain.Token, len(texts))
	for i := range out {
		out[i] = []domain.Token{}
	}
	for _, tok := range tokens {
		idx := sort.Search(len(starts), func(i int) bool { return starts[i] > tok.Range.Start }) - 1
		if idx < 0 {
			continue
		}
		length := len(texts[idx])
		rel := tok.Range.Shift(-starts[idx])
		if rel.Start < 0 || rel.Start >= length {
			continue
		}
		if rel.End > length {
			rel.End = length
		}
		if rel.End <= rel.Start {
			continue
		}
		out[idx] = append(out[idx], domain.Token{Range: rel, Kind: tok.Kind})
	}
	return out
}
