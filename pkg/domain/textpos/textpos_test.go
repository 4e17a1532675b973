package textpos

import (
	"testing"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{
		"":       Bytes,
		"byte":   Bytes,
		"UTF16":  UTF16,
		"utf-16": UTF16,
		"rune":   Runes,
	} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseUnit("parsec")
	assert.Error(t, err)
}

func TestIndex_UTF16(t *testing.T) {
	// "a" (1 byte, 1 unit), "é" (2 bytes, 1 unit), "😀" (4 bytes, 2 units), "b".
	text := "aé😀b"
	idx := NewIndex(text, UTF16)

	t.Run("ToByte", func(t *testing.T) {
		assert.Equal(t, 0, idx.ToByte(0))
		assert.Equal(t, 1, idx.ToByte(1))
		assert.Equal(t, 3, idx.ToByte(2))
		assert.Equal(t, 3, idx.ToByte(3)) // second surrogate half
		assert.Equal(t, 7, idx.ToByte(4))
		assert.Equal(t, 8, idx.ToByte(5))
		assert.Equal(t, 8, idx.ToByte(99), "clamped")
		assert.Equal(t, 0, idx.ToByte(-3), "clamped")
	})

	t.Run("FromByte", func(t *testing.T) {
		assert.Equal(t, 0, idx.FromByte(0))
		assert.Equal(t, 1, idx.FromByte(1))
		assert.Equal(t, 1, idx.FromByte(2), "inside é")
		assert.Equal(t, 2, idx.FromByte(3))
		assert.Equal(t, 2, idx.FromByte(5), "inside emoji")
		assert.Equal(t, 4, idx.FromByte(7))
		assert.Equal(t, 5, idx.FromByte(8))
		assert.Equal(t, 5, idx.FromByte(100))
	})
}

func TestIndex_Runes(t *testing.T) {
	text := "é😀b"
	idx := NewIndex(text, Runes)
	assert.Equal(t, 2, idx.ToByte(1))
	assert.Equal(t, 6, idx.ToByte(2))
	assert.Equal(t, 7, idx.ToByte(3))
	assert.Equal(t, 2, idx.FromByte(6))
}

func TestIndex_InvalidUTF8(t *testing.T) {
	text := "a\xffb"
	idx := NewIndex(text, UTF16)
	assert.Equal(t, 1, idx.ToByte(1))
	assert.Equal(t, 2, idx.ToByte(2))
	assert.Equal(t, 3, idx.ToByte(3))
}

func TestTokensRoundTrip(t *testing.T) {
	text := `let s = "😀"`
	byteTokens := []domain.Token{
		{Range: domain.Range{Start: 0, End: 3}, Kind: domain.KindKeyword},
		{Range: domain.Range{Start: 8, End: 14}, Kind: domain.KindString},
	}

	units := TokensFromBytes(text, UTF16, byteTokens)
	assert.Equal(t, domain.Range{Start: 8, End: 12}, units[1].Range)

	back := TokensToBytes(text, UTF16, units)
	assert.Equal(t, byteTokens, back)

	assert.Equal(t, byteTokens, TokensToBytes(text, Bytes, byteTokens))
}
