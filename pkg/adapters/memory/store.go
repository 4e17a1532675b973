package memory

import (
	"context"
	"sync"

	"github.com/aretw0/scribe/pkg/domain"
)

// Store implements ports.TokenStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]domain.Token
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]domain.Token),
	}
}

// Save stores a copy of tokens.
func (s *Store) Save(ctx context.Context, key string, tokens []domain.Token) error {
	copied := make([]domain.Token, len(tokens))
	copy(copied, tokens)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = copied
	return nil
}

// Load retrieves a copy of the stored tokens.
func (s *Store) Load(ctx context.Context, key string) ([]domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens, ok := s.data[key]
	if !ok {
		return nil, domain.ErrTokensNotFound
	}

	// Copy on read so callers can't mutate the stored slice.
	ret := make([]domain.Token, len(tokens))
	copy(ret, tokens)
	return ret, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
