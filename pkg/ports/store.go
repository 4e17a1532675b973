package ports

import (
	"context"

	"github.com/aretw0/scribe/pkg/domain"
)

// TokenStore persists token lists keyed by fragment identity (domain.Fragment.Key).
// Entries are written whole; a reader never sees a partially saved list.
type TokenStore interface {
	// Save persists tokens for key, replacing any previous entry.
	Save(ctx context.Context, key string, tokens []domain.Token) error

	// Load retrieves the tokens for key.
	// Returns domain.ErrTokensNotFound if nothing is stored.
	Load(ctx context.Context, key string) ([]domain.Token, error)

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
