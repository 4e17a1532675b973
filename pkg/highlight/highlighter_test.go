package highlight

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer is a deliberately small lexer: keywords, integers and
// double-quoted strings. It counts invocations per language.
type wordTokenizer struct {
	mu      sync.Mutex
	calls   map[string]int
	sources []string
	fail    map[string]error
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{calls: make(map[string]int), fail: make(map[string]error)}
}

var keywords = map[string]bool{"let": true, "var": true, "print": true, "func": true}

func (w *wordTokenizer) Tokenize(ctx context.Context, language, source string) ([]domain.Token, error) {
	w.mu.Lock()
	w.calls[language]++
	w.sources = append(w.sources, source)
	err := w.fail[language]
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var tokens []domain.Token
	for i := 0; i < len(source); {
		c := rune(source[i])
		switch {
		case c == '"':
			j := strings.IndexByte(source[i+1:], '"')
			end := len(source)
			if j >= 0 {
				end = i + 1 + j + 1
			}
			tokens = append(tokens, domain.Token{Range: domain.Range{Start: i, End: end}, Kind: domain.KindString})
			i = end
		case unicode.IsDigit(c):
			j := i
			for j < len(source) && unicode.IsDigit(rune(source[j])) {
				j++
			}
			tokens = append(tokens, domain.Token{Range: domain.Range{Start: i, End: j}, Kind: domain.KindNumber})
			i = j
		case unicode.IsLetter(c):
			j := i
			for j < len(source) && unicode.IsLetter(rune(source[j])) {
				j++
			}
			if keywords[source[i:j]] {
				tokens = append(tokens, domain.Token{Range: domain.Range{Start: i, End: j}, Kind: domain.KindKeyword})
			}
			i = j
		default:
			i++
		}
	}
	return tokens, nil
}

func (w *wordTokenizer) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.calls {
		n += c
	}
	return n
}

func swift(text string, start int) domain.Fragment {
	return domain.Fragment{Text: text, Language: "swift", Range: domain.Range{Start: start, End: start + len(text)}}
}

func TestHighlight_BatchRemap(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)

	results, err := h.Highlight(context.Background(), []domain.Fragment{
		swift("let x = 1", 0),
		swift(`"hello".count`, 20),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, tok.total(), "one tokenizer call for the whole language group")
	assert.Equal(t, "let x = 1\n\n\"hello\".count", tok.sources[0])

	assert.Equal(t, []domain.Token{
		{Range: domain.Range{Start: 0, End: 3}, Kind: domain.KindKeyword},
		{Range: domain.Range{Start: 8, End: 9}, Kind: domain.KindNumber},
	}, results[0].Tokens)
	assert.Equal(t, []domain.Token{
		{Range: domain.Range{Start: 0, End: 7}, Kind: domain.KindString},
	}, results[1].Tokens)

	for _, r := range results {
		for _, token := range r.Tokens {
			assert.GreaterOrEqual(t, token.Range.Start, 0)
			assert.LessOrEqual(t, token.Range.End, len(r.Fragment.Text))
		}
		assert.False(t, r.Cached)
	}
}

func TestHighlight_Idempotent(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)
	frags := []domain.Fragment{swift("let a = 42", 0), swift(`print("x")`, 15)}

	first, err := h.Highlight(context.Background(), frags)
	require.NoError(t, err)
	calls := tok.total()

	second, err := h.Highlight(context.Background(), frags)
	require.NoError(t, err)
	assert.Equal(t, calls, tok.total(), "no extra tokenizer invocations")
	for i := range frags {
		assert.Equal(t, first[i].Tokens, second[i].Tokens)
		assert.True(t, second[i].Cached)
	}
}

func TestHighlight_IdentityOverPosition(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)

	_, err := h.Highlight(context.Background(), []domain.Fragment{
		{Text: "print(1)", Language: "swift", Range: domain.Range{Start: 10, End: 18}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, tok.total())

	results, err := h.Highlight(context.Background(), []domain.Fragment{
		{Text: "print(1)", Language: "swift", Range: domain.Range{Start: 50, End: 58}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tok.total(), "moved but unedited fragment is a cache hit")
	assert.True(t, results[0].Cached)
	assert.Equal(t, domain.Range{Start: 50, End: 58}, results[0].Fragment.Range)
	assert.Len(t, results[0].Tokens, 2)
}

func TestHighlight_DedupesAndGroupsByLanguage(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)

	results, err := h.Highlight(context.Background(), []domain.Fragment{
		swift("let a = 1", 0),
		{Text: "let a = 1", Language: "python"},
		swift("let a = 1", 40),
		swift("var b = 2", 60),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tok.calls["swift"])
	assert.Equal(t, 1, tok.calls["python"])
	assert.Equal(t, "let a = 1\n\nvar b = 2", tok.sources[0], "identical texts are tokenized once")
	assert.Equal(t, results[0].Tokens, results[2].Tokens)
	assert.Len(t, results[1].Tokens, 2)
}

func TestHighlight_TokenizerFailureIsBatchLocal(t *testing.T) {
	tok := newWordTokenizer()
	tok.fail["broken"] = errors.New("lexer crashed")
	h := New(tok)

	results, err := h.Highlight(context.Background(), []domain.Fragment{
		{Text: "let a = 1", Language: "broken"},
		swift("let b = 2", 0),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTokenizerFailure)
	assert.Contains(t, err.Error(), "lexer crashed")

	assert.Nil(t, results[0].Tokens)
	assert.NotEmpty(t, results[1].Tokens)

	// Nothing was cached for the failed batch, so the next call retries.
	tok.mu.Lock()
	delete(tok.fail, "broken")
	tok.mu.Unlock()
	results, err = h.Highlight(context.Background(), []domain.Fragment{{Text: "let a = 1", Language: "broken"}})
	require.NoError(t, err)
	assert.Equal(t, 2, tok.calls["broken"])
	assert.NotEmpty(t, results[0].Tokens)
}

func TestHighlight_EmptyFragmentIsCachedAsEmpty(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)

	results, err := h.Highlight(context.Background(), []domain.Fragment{swift("x + y", 0)})
	require.NoError(t, err)
	assert.NotNil(t, results[0].Tokens)
	assert.Empty(t, results[0].Tokens)

	results, err = h.Highlight(context.Background(), []domain.Fragment{swift("x + y", 0)})
	require.NoError(t, err)
	assert.True(t, results[0].Cached)
	assert.Equal(t, 1, tok.total())
}

func TestHighlight_NoFragments(t *testing.T) {
	tok := newWordTokenizer()
	results, err := New(tok).Highlight(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, tok.total())
}

// mapStore is an in-memory ports.TokenStore.
type mapStore struct {
	mu    sync.Mutex
	data  map[string][]domain.Token
	saves int
}

func (m *mapStore) Save(ctx context.Context, key string, tokens []domain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[key] = cloneTokens(tokens)
	return nil
}

func (m *mapStore) Load(ctx context.Context, key string) ([]domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[key]
	if !ok {
		return nil, domain.ErrTokensNotFound
	}
	return cloneTokens(t), nil
}

func (m *mapStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestHighlight_StoreIsSecondLevel(t *testing.T) {
	store := &mapStore{data: make(map[string][]domain.Token)}
	tok := newWordTokenizer()

	first := New(tok, WithStore(store))
	_, err := first.Highlight(context.Background(), []domain.Fragment{swift("let z = 3", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)

	// A fresh highlighter (empty L1) is served by the store.
	second := New(tok, WithStore(store))
	results, err := second.Highlight(context.Background(), []domain.Fragment{swift("let z = 3", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, tok.total())
	assert.True(t, results[0].Cached)
	assert.Equal(t, 1, second.Cache().Len(), "store hits are promoted to the in-memory cache")
}

func TestHighlight_CustomDelimiter(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok, WithDelimiter("\n// ---\n"))

	results, err := h.Highlight(context.Background(), []domain.Fragment{swift("let a = 1", 0), swift("let b = 2", 0)})
	require.NoError(t, err)
	assert.Equal(t, "let a = 1\n// ---\nlet b = 2", tok.sources[0])
	assert.Len(t, results[1].Tokens, 2)
}

func TestAttribute(t *testing.T) {
	texts := []string{"abc", "defgh"}
	starts := []int{0, 5} // "abc" + "\n\n" + "defgh"

	out := attribute([]domain.Token{
		{Range: domain.Range{Start: 1, End: 7}, Kind: domain.KindString},  // spills over the delimiter
		{Range: domain.Range{Start: 3, End: 5}, Kind: domain.KindComment}, // inside the delimiter
		{Range: domain.Range{Start: 5, End: 6}, Kind: domain.KindKeyword},
		{Range: domain.Range{Start: 9, End: 20}, Kind: domain.KindNumber}, // past the end
		{Range: domain.Range{Start: 4, End: 4}, Kind: domain.KindNumber},  // empty
	}, starts, texts)

	assert.Equal(t, []domain.Token{{Range: domain.Range{Start: 1, End: 3}, Kind: domain.KindString}}, out[0])
	assert.Equal(t, []domain.Token{
		{Range: domain.Range{Start: 0, End: 1}, Kind: domain.KindKeyword},
		{Range: domain.Range{Start: 4, End: 5}, Kind: domain.KindNumber},
	}, out[1])
}

func TestHighlight_Concurrent(t *testing.T) {
	tok := newWordTokenizer()
	h := New(tok)
	frags := []domain.Fragment{swift("let a = 1", 0), swift(`"s"`, 0), swift("func f", 0)}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := h.Highlight(context.Background(), frags)
			assert.NoError(t, err)
			assert.Len(t, results, 3)
			assert.Len(t, results[0].Tokens, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, h.Cache().Len())
}
