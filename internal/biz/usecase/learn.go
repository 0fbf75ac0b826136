package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Learn records the message and reinforces the association from the group's
// previous message to it. Returns false when nothing was learned.
func (uc *ChatUsecase) Learn(ctx context.Context, f *domain.Feature) bool {
	if strings.TrimSpace(f.RawMessage) == "" {
		return false
	}
	if uc.contexts == nil {
		uc.log.Warn("context storage unavailable, skipping learn", "group", f.GroupID)
		return false
	}

	prev, ownPrev := uc.previousMessages(f)
	if prev != nil {
		uc.contextInsert(ctx, prev, f)
	}
	if ownPrev != nil {
		uc.contextInsert(ctx, ownPrev, f)
	}

	uc.messageInsert(f)
	uc.checkpoint(ctx, f.GroupID, f.Time)
	return true
}

// previousMessages returns the group's last message and, when someone else
// spoke last, the sender's own message among the last two.
func (uc *ChatUsecase) previousMessages(f *domain.Feature) (prev, own *domain.Message) {
	uc.msgMu.Lock()
	defer uc.msgMu.Unlock()

	msgs := uc.groupMsg[f.GroupID]
	if len(msgs) == 0 {
		return nil, nil
	}
	prev = msgs[len(msgs)-1]
	if prev.IsFrom(f.UserID) {
		return prev, nil
	}
	for i := len(msgs) - 1; i >= 0 && i >= len(msgs)-2; i-- {
		if msgs[i].IsFrom(f.UserID) {
			return prev, msgs[i]
		}
	}
	return prev, nil
}

func (uc *ChatUsecase) contextInsert(ctx context.Context, pre *domain.Message, f *domain.Feature) {
	// same plain text never becomes an edge, so two pictures in a row are not learned
	if pre.PlainText == f.PlainText {
		return
	}
	// a quote reply answers the quoted message, not the previous one
	if strings.Contains(f.RawMessage, domain.MarkupReply) {
		return
	}

	c, err := uc.contexts.GetContext(ctx, pre.Keywords)
	if err != nil {
		uc.log.Warn("failed to load context", "keywords", pre.Keywords, "error", err)
		return
	}
	if c == nil {
		c = &domain.Context{Keywords: pre.Keywords}
	}
	c.Observe(f.GroupID, f.Keywords, f.RawMessage, f.IsPlainText, f.Time)

	if err := uc.contexts.SaveContext(ctx, c); err != nil {
		uc.log.Warn("failed to save context", "keywords", pre.Keywords, "error", err)
	}
}

func (uc *ChatUsecase) messageInsert(f *domain.Feature) {
	uc.msgMu.Lock()
	uc.groupMsg[f.GroupID] = append(uc.groupMsg[f.GroupID], f.ToMessage())
	uc.msgMu.Unlock()

	if f.IsPlainText && len(f.KeywordList) > 0 {
		uc.topicsMu.Lock()
		uc.pushTopicsLocked(f.GroupID, f.KeywordList...)
		uc.topicsMu.Unlock()
	}
}

// checkpoint flushes the message cache once it grows or ages past its thresholds
func (uc *ChatUsecase) checkpoint(ctx context.Context, groupID string, cur time.Time) {
	uc.msgMu.Lock()
	if uc.lastSave.IsZero() {
		uc.lastSave = cur.Add(-time.Second)
		uc.msgMu.Unlock()
		return
	}
	due := len(uc.groupMsg[groupID]) > uc.config.SaveCountThreshold ||
		cur.Sub(uc.lastSave) > uc.config.SaveTimeThreshold
	uc.msgMu.Unlock()

	if due {
		uc.flushMessages(ctx, cur)
	}
}
