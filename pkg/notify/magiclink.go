package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrTokenNotFound indicates an unknown or expired magic-link token.
var ErrTokenNotFound = errors.New("magic link token not found")

// DefaultTokenTTL bounds how long an unused magic link stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// MagicLinkStore issues and resolves tokens letting an unauthenticated
// contact act on their assigned step.
type MagicLinkStore interface {
	// Issue creates a token for a step execution.
	Issue(ctx context.Context, stepExecutionID string) (string, error)

	// Resolve returns the step execution id behind a token.
	Resolve(ctx context.Context, token string) (string, error)

	// Revoke invalidates a token after use.
	Revoke(ctx context.Context, token string) error
}

const tokenKeyPrefix = "flowdesk:magiclink:"

// RedisMagicLinkStore stores tokens in Redis with a TTL.
type RedisMagicLinkStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisMagicLinkStore creates a Redis-backed token store. A zero ttl
// falls back to DefaultTokenTTL.
func NewRedisMagicLinkStore(client redis.UniversalClient, ttl time.Duration) *RedisMagicLinkStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &RedisMagicLinkStore{client: client, ttl: ttl}
}

func (s *RedisMagicLinkStore) Issue(ctx context.Context, stepExecutionID string) (string, error) {
	token := uuid.NewString()

	err := s.client.Set(ctx, tokenKeyPrefix+token, stepExecutionID, s.ttl).Err()
	if err != nil {
		return "", fmt.Errorf("failed to store magic link token: %w", err)
	}

	return token, nil
}

func (s *RedisMagicLinkStore) Resolve(ctx context.Context, token string) (string, error) {
	stepExecutionID, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}

		return "", fmt.Errorf("failed to resolve magic link token: %w", err)
	}

	return stepExecutionID, nil
}

func (s *RedisMagicLinkStore) Revoke(ctx context.Context, token string) error {
	err := s.client.Del(ctx, tokenKeyPrefix+token).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke magic link token: %w", err)
	}

	return nil
}

// MemoryMagicLinkStore is an in-process token store for tests and local
// development. Tokens never expire.
type MemoryMagicLinkStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryMagicLinkStore creates an empty in-memory token store.
func NewMemoryMagicLinkStore() *MemoryMagicLinkStore {
	return &MemoryMagicLinkStore{tokens: make(map[string]string)}
}

func (s *MemoryMagicLinkStore) Issue(_ context.Context, stepExecutionID string) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = stepExecutionID
	s.mu.Unlock()

	return token, nil
}

func (s *MemoryMagicLinkStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	stepExecutionID, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return "", ErrTokenNotFound
	}

	return stepExecutionID, nil
}

func (s *MemoryMagicLinkStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()

	return nil
}
