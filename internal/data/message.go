package data

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
)

// messageRepo implements the message log repository
type messageRepo struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *sql.DB) repo.MessageRepo {
	return &messageRepo{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *messageRepo) newID(t time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), r.entropy).String()
}

func (r *messageRepo) SaveMessage(ctx context.Context, msg *domain.Message) (string, error) {
	t := msg.Time
	if t.IsZero() {
		t = time.Now()
	}
	id := r.newID(t)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, source_id, group_id, user_id, bot_id, raw_message, is_plain_text, plain_text, keywords, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, msg.SourceID, msg.GroupID, msg.UserID, msg.BotID, msg.RawMessage,
		msg.IsPlainText, msg.PlainText, msg.Keywords, t.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to save message: %w", err)
	}
	return id, nil
}

func (r *messageRepo) GetMessagesByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, group_id, user_id, bot_id, raw_message, is_plain_text, plain_text, keywords, time
		FROM messages
		WHERE time >= ? AND time < ?
		ORDER BY time, id
	`, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var m domain.Message
		var sourceID sql.NullString
		var t int64
		if err := rows.Scan(&m.ID, &sourceID, &m.GroupID, &m.UserID, &m.BotID, &m.RawMessage,
			&m.IsPlainText, &m.PlainText, &m.Keywords, &t); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SourceID = sourceID.String
		m.Time = time.Unix(t, 0)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
