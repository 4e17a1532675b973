package highlight

import (
	"testing"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/aretw0/scribe/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toks(n int) []domain.Token {
	out := make([]domain.Token, n)
	for i := range out {
		out[i] = domain.Token{Range: domain.Range{Start: i, End: i + 1}, Kind: domain.KindNumber}
	}
	return out
}

func TestCache_EntryBound(t *testing.T) {
	c, err := NewCache(2, 0)
	require.NoError(t, err)

	c.Put("a", toks(1))
	c.Put("b", toks(1))
	_, _ = c.Get("a") // a becomes most recent
	c.Put("c", toks(1))

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry is evicted")
	assert.True(t, okC)
	assert.Equal(t, 2, c.Len())
}

func TestCache_ByteBound(t *testing.T) {
	// Each entry: 1 byte key + 2 tokens.
	entry := 1 + 2*TokenCost
	c, err := NewCache(100, 2*entry)
	require.NoError(t, err)

	c.Put("a", toks(2))
	c.Put("b", toks(2))
	assert.Equal(t, 2*entry, c.Bytes())

	c.Put("c", toks(2))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2*entry, c.Bytes())
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("huge", toks(100))
	_, ok = c.Get("huge")
	assert.False(t, ok, "entries larger than the budget are not stored")
	assert.Equal(t, 2, c.Len())
}

func TestCache_OverwriteAccounting(t *testing.T) {
	c, err := NewCache(10, 0)
	require.NoError(t, err)

	c.Put("k", toks(3))
	c.Put("k", toks(1))
	assert.Equal(t, 1+TokenCost, c.Bytes())
	assert.Equal(t, 1, c.Len())

	c.Remove("k")
	assert.Equal(t, 0, c.Bytes())

	c.Put("x", toks(2))
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Bytes())
}

func TestCache_CopiesAreIsolated(t *testing.T) {
	c, err := NewCache(10, 0)
	require.NoError(t, err)

	in := toks(2)
	c.Put("k", in)
	in[0].Kind = domain.KindComment

	out, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, domain.KindNumber, out[0].Kind)

	out[1].Kind = domain.KindComment
	again, _ := c.Get("k")
	assert.Equal(t, domain.KindNumber, again[1].Kind)
}

func TestCache_InvalidSize(t *testing.T) {
	_, err := NewCache(0, 0)
	assert.Error(t, err)
}

func TestCache_Metrics(t *testing.T) {
	m := observability.NewMetrics()
	h := New(newWordTokenizer(), WithMetrics(m))

	h.Cache().Put("k", toks(2))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEntries))
	assert.Equal(t, float64(1+2*TokenCost), testutil.ToFloat64(m.CacheBytes))
}
