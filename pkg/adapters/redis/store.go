package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/scribe/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces token entries.
const DefaultPrefix = "scribe:tokens:"

// Store implements ports.TokenStore using Redis.
// Fragment keys are hashed, so arbitrary fragment text never reaches a Redis key.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *Store) key(hashed string) string {
	return s.prefix + hashed
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the tokens to Redis.
func (s *Store) Save(ctx context.Context, key string, tokens []domain.Token) error {
	if tokens == nil {
		tokens = []domain.Token{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	hashed := hashKey(key)
	pipe := s.client.TxPipeline()

	// 1. Save JSON with TTL (0 means no expiration).
	pipe.Set(ctx, s.key(hashed), data, s.ttl)

	// 2. Add to Index (ZSET), scored by expiry.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: hashed,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the tokens from Redis.
func (s *Store) Load(ctx context.Context, key string) ([]domain.Token, error) {
	val, err := s.client.Get(ctx, s.key(hashKey(key))).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTokensNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var tokens []domain.Token
	if err := json.Unmarshal(val, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	if tokens == nil {
		tokens = []domain.Token{}
	}
	return tokens, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	hashed := hashKey(key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(hashed))
	pipe.ZRem(ctx, s.indexKey(), hashed)
	_, err := pipe.Exec(ctx)
	return err
}

// Len returns the number of live entries, pruning expired ones from the index.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.prune(ctx); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

// Purge removes every entry recorded in the index and returns how many there were.
func (s *Store) Purge(ctx context.Context) (int, error) {
	hashes, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, s.key(h))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to purge entries: %w", err)
	}
	return len(hashes), nil
}

// prune is the lazy cleanup of expired members from the index.
func (s *Store) prune(ctx context.Context) error {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return fmt.Errorf("failed to prune expired entries: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
