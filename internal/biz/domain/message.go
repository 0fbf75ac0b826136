package domain

import "time"

// Message represents a learned chat message, cached in memory and flushed to storage
type Message struct {
	ID          string
	SourceID    string // platform message id
	GroupID     string
	UserID      string
	BotID       string
	RawMessage  string
	IsPlainText bool
	PlainText   string
	Keywords    string
	Time        time.Time
}

// IsFrom checks if the message was sent by the given user
func (m *Message) IsFrom(userID string) bool {
	return m.UserID == userID
}

// IsAfter checks if the message is after the specified time
func (m *Message) IsAfter(t time.Time) bool {
	return m.Time.After(t)
}

// RepeatKey is the text compared when detecting repeated messages
func (m *Message) RepeatKey() string {
	if m.IsPlainText {
		return m.PlainText
	}
	return m.RawMessage
}
