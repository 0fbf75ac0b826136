package repo

import (
	"context"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// MessageRepo is the durable message log
type MessageRepo interface {
	// SaveMessage appends a message and returns its id
	SaveMessage(ctx context.Context, msg *domain.Message) (string, error)

	// GetMessagesByTimeRange returns messages with start <= time < end, oldest first
	GetMessagesByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Message, error)
}

// ChatRepo sends messages to the host chat platform
type ChatRepo interface {
	// SendText sends a message to a group; markup is rendered by the platform adapter
	SendText(ctx context.Context, groupID, text string) error

	// SendTextWithMention sends a message that @mentions userID
	SendTextWithMention(ctx context.Context, groupID, text, userID string) error
}
