package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Sync flushes the message cache and writes the blacklists to storage
func (uc *ChatUsecase) Sync(ctx context.Context) {
	uc.flushMessages(ctx, uc.now())
	uc.syncBlacklist(ctx)
}

// flushMessages persists every cached message newer than the last flush and
// trims each group's cache to SaveReservedSize.
func (uc *ChatUsecase) flushMessages(ctx context.Context, cur time.Time) {
	if uc.messages == nil {
		uc.log.Warn("message storage unavailable, skipping flush")
		return
	}

	uc.msgMu.Lock()
	var pending []*domain.Message
	for _, msgs := range uc.groupMsg {
		for _, m := range msgs {
			if m.IsAfter(uc.lastSave) {
				pending = append(pending, m)
			}
		}
	}
	if len(pending) == 0 {
		uc.msgMu.Unlock()
		return
	}
	for groupID, msgs := range uc.groupMsg {
		uc.groupMsg[groupID] = append([]*domain.Message(nil), tail(msgs, uc.config.SaveReservedSize)...)
	}
	uc.lastSave = cur
	uc.msgMu.Unlock()

	saved := 0
	for _, m := range pending {
		if _, err := uc.messages.SaveMessage(ctx, m); err != nil {
			uc.log.Warn("failed to save message", "group", m.GroupID, "error", err)
			continue
		}
		saved++
	}
	uc.log.Info("flushed message cache", "saved", saved, "pending", len(pending))
}

// ClearupContext prunes contexts nobody triggered within ContextExpiration and
// trims low-value answers of heavily used contexts. It is the one engine
// operation that reports storage failures.
func (uc *ChatUsecase) ClearupContext(ctx context.Context) (*domain.PruneResult, error) {
	if uc.contexts == nil {
		uc.log.Warn("context storage unavailable, skipping clearup")
		return &domain.PruneResult{}, nil
	}

	now := uc.now()
	res, err := uc.contexts.PruneContexts(ctx, domain.PruneOptions{
		Expiration:        now.Add(-uc.config.ContextExpiration),
		TriggerThreshold:  uc.config.AnswerThreshold,
		HeavyTriggerCount: uc.config.HeavyTriggerCount,
		Now:               now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear up contexts: %w", err)
	}
	uc.log.Info("cleared up contexts",
		"contexts_deleted", res.ContextsDeleted,
		"answers_deleted", res.AnswersDeleted,
		"contexts_cleared", res.ContextsCleared)
	return res, nil
}

// Stats is a snapshot of the working set
type Stats struct {
	Groups         int       `json:"groups"`
	CachedMessages int       `json:"cached_messages"`
	LedgerEntries  int       `json:"ledger_entries"`
	ActiveBans     int       `json:"active_bans"`
	ReserveBans    int       `json:"reserve_bans"`
	GlobalBans     int       `json:"global_bans"`
	StoredContexts int       `json:"stored_contexts"`
	LastSave       time.Time `json:"last_save"`
}

// Stats reports the size of the in-memory caches
func (uc *ChatUsecase) Stats(ctx context.Context) Stats {
	var s Stats

	uc.msgMu.Lock()
	s.Groups = len(uc.groupMsg)
	for _, msgs := range uc.groupMsg {
		s.CachedMessages += len(msgs)
	}
	s.LastSave = uc.lastSave
	uc.msgMu.Unlock()

	uc.replyMu.Lock()
	for _, bots := range uc.replies {
		for _, entries := range bots {
			s.LedgerEntries += len(entries)
		}
	}
	uc.replyMu.Unlock()

	uc.blacklistMu.Lock()
	for g, set := range uc.blackActive {
		if g == domain.GlobalGroupID {
			s.GlobalBans = len(set)
			continue
		}
		s.ActiveBans += len(set)
	}
	for _, set := range uc.blackReserve {
		s.ReserveBans += len(set)
	}
	uc.blacklistMu.Unlock()

	if uc.contexts != nil {
		n, err := uc.contexts.CountContexts(ctx)
		if err != nil {
			uc.log.Debug("failed to count contexts", "error", err)
		}
		s.StoredContexts = n
	}
	return s
}

// SampleMessages returns one recent message per group. Messages whose keywords
// or author recur more often are more likely to be drawn.
func (uc *ChatUsecase) SampleMessages() map[string]*domain.Message {
	uc.msgMu.Lock()
	snapshot := make(map[string][]*domain.Message, len(uc.groupMsg))
	for g, msgs := range uc.groupMsg {
		if len(msgs) > 0 {
			snapshot[g] = append([]*domain.Message(nil), msgs...)
		}
	}
	uc.msgMu.Unlock()

	result := make(map[string]*domain.Message, len(snapshot))
	for g, msgs := range snapshot {
		keywordCount := make(map[string]int)
		userCount := make(map[string]int)
		for _, m := range msgs {
			keywordCount[m.Keywords]++
			userCount[m.UserID]++
		}
		weights := make([]int, len(msgs))
		for i, m := range msgs {
			weights[i] = 1 + keywordCount[m.Keywords] + userCount[m.UserID]
		}
		result[g], _ = weightedPick(uc.rnd, msgs, weights)
	}
	return result
}
