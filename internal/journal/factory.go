package journal

import (
	"context"
	"strings"
	"time"
)

// NewStore picks the journal backend: postgres when a database URL is
// configured, redis when only a redis URL is, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, redisURL string, redisTTL time.Duration) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(redisURL) != "" {
		return NewRedisStore(redisURL, redisTTL)
	}
	return NewInMemoryStore(), nil
}
