package journal

import (
	"context"
	"time"
)

// MessageRecord stores a single user or assistant message of a voice turn.
type MessageRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	TurnID      string    `json:"turn_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves the durable conversation log.
type Store interface {
	SaveMessage(ctx context.Context, record MessageRecord) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error)
	Close() error
}
