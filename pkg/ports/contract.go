package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/scribe/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTokenStoreContract runs a suite of tests to verify that a TokenStore implementation
// adheres to the defined interface contract.
func RunTokenStoreContract(t *testing.T, store TokenStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	key := domain.FragmentKey("swift", "let x = 1 // "+suffix)

	tokens := []domain.Token{
		{Range: domain.Range{Start: 0, End: 3}, Kind: domain.KindKeyword},
		{Range: domain.Range{Start: 8, End: 9}, Kind: domain.KindNumber},
		{Range: domain.Range{Start: 10, End: 12 + len(suffix)}, Kind: domain.KindComment},
	}

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Save
		err := store.Save(ctx, key, tokens)
		require.NoError(t, err, "Save should not return error")

		// 2. Load
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, tokens, loaded)
	})

	t.Run("Empty List Is A Hit", func(t *testing.T) {
		emptyKey := domain.FragmentKey("swift", "   "+suffix)
		require.NoError(t, store.Save(ctx, emptyKey, []domain.Token{}))
		defer func() { _ = store.Delete(ctx, emptyKey) }()

		loaded, err := store.Load(ctx, emptyKey)
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrTokensNotFound)
	})

	t.Run("Stored Copy Is Isolated", func(t *testing.T) {
		mutable := append([]domain.Token(nil), tokens...)
		require.NoError(t, store.Save(ctx, key, mutable))
		mutable[0].Kind = domain.KindComment

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.KindKeyword, loaded[0].Kind)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, tokens))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrTokensNotFound, "Load after Delete should return ErrTokensNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Delete of a missing key is a no-op")
	})
}
