package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowdesk/pkg/notify"
)

// NewMagicLinkStore creates the magic link token store. With a Redis URL
// tokens survive restarts and are shared across instances; without one an
// in-memory store serves single-process setups.
func NewMagicLinkStore(redisURL string, logger *slog.Logger) notify.MagicLinkStore {
	if redisURL == "" {
		logger.Warn("No redis URL configured, magic link tokens are in-memory only")

		return notify.NewMemoryMagicLinkStore()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return notify.NewRedisMagicLinkStore(redis.NewClient(opts), 0)
}
