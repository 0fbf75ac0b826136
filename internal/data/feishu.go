package data

import (
	"context"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
	"github.com/chatimitate/feishu-chatimitate/internal/infra/feishu"
)

// markupSender is the part of feishu.Client used for delivery
type markupSender interface {
	Send(ctx context.Context, chatID, text string) error
}

// feishuRepo implements ChatRepo over the Feishu client
type feishuRepo struct {
	client markupSender
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.ChatRepo {
	return &feishuRepo{client: client}
}

// SendText sends markup text to a group
func (r *feishuRepo) SendText(ctx context.Context, groupID, text string) error {
	return r.client.Send(ctx, groupID, text)
}

// SendTextWithMention sends markup text prefixed with a mention of userID
func (r *feishuRepo) SendTextWithMention(ctx context.Context, groupID, text, userID string) error {
	if userID == "" {
		return r.SendText(ctx, groupID, text)
	}
	return r.client.Send(ctx, groupID, feishu.AtMarkup(userID)+" "+text)
}
