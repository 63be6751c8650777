package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	journalKeyPrefix = "journal:"
	defaultTTL       = 24 * time.Hour
	maxListLength    = 1000
)

// RedisStore keeps the conversation journal in per-session Redis lists with a
// rolling TTL. Suited to deployments that want the log to age out on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (s *RedisStore) key(sessionID string) string {
	return journalKeyPrefix + sessionID
}

func (s *RedisStore) SaveMessage(ctx context.Context, record MessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	val, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.key(record.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, val)
	pipe.LTrim(ctx, key, -maxListLength, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	vals, err := s.client.LRange(ctx, s.key(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}

	items := make([]MessageRecord, 0, len(vals))
	for _, v := range vals {
		var r MessageRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		items = append(items, r)
	}
	return items, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
