package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// syntheticUserID authors the lines fed back through Answer when chaining
const syntheticUserID = "0"

// Speak looks for a group that has gone quiet for longer than usual and picks
// something to say there. Returns nil if no group qualifies.
func (uc *ChatUsecase) Speak(ctx context.Context) *domain.SpeakResult {
	uc.msgMu.Lock()
	groups := make([]groupSnapshot, 0, len(uc.groupMsg))
	for id, msgs := range uc.groupMsg {
		if len(msgs) == 0 {
			continue
		}
		groups = append(groups, groupSnapshot{id: id, msgs: append([]*domain.Message(nil), msgs...)})
	}
	uc.msgMu.Unlock()

	minMsgs := uc.config.SpeakMinMessages
	sort.SliceStable(groups, func(i, j int) bool {
		return morePopular(groups[i].msgs, groups[j].msgs, minMsgs)
	})

	now := uc.now()
	for _, g := range groups {
		if len(g.msgs) < minMsgs {
			continue
		}
		frontBot, lastReply, bots := uc.replyState(g.id)
		if len(bots) == 0 {
			continue
		}

		latest := g.msgs[len(g.msgs)-1].Time
		if !lastReply.Before(latest) {
			continue
		}
		avgInterval := latest.Sub(g.msgs[0].Time) / time.Duration(len(g.msgs))
		if now.Sub(latest) < avgInterval*time.Duration(uc.config.SpeakThreshold)+uc.config.SpeakBaseDelay {
			continue
		}

		// mark the group so a busy group with nothing usable is not rescanned every pass
		uc.appendReply(g.id, frontBot, &domain.ReplyRecord{
			Time:          now,
			PreRawMessage: domain.SpeakFlag,
			PreKeywords:   domain.SpeakFlag,
			Reply:         domain.SpeakFlag,
			ReplyKeywords: domain.SpeakFlag,
		})

		botID, _ := uniformPick(uc.rnd, bots)
		picked, ok := uc.pickSpeakLine(ctx, g, botID)
		if !ok {
			continue
		}
		line := picked.RawMessage

		uc.topicsMu.Lock()
		ring := uc.spoken[g.id]
		if ring == nil {
			ring = domain.NewRing[string](uc.config.DuplicateReply)
			uc.spoken[g.id] = ring
		}
		ring.Push(line)
		uc.topicsMu.Unlock()

		uc.appendReply(g.id, botID, &domain.ReplyRecord{
			Time:          now,
			PreRawMessage: domain.SpeakFlag,
			PreKeywords:   domain.SpeakFlag,
			Reply:         line,
			ReplyKeywords: picked.Keywords,
		})

		result := &domain.SpeakResult{BotID: botID, GroupID: g.id, Messages: []string{line}}
		for len(result.Messages) < uc.config.SpeakContinuouslyMaxLen &&
			uc.rnd.Float64() < uc.config.SpeakContinuouslyProbability {
			pre := result.Messages[len(result.Messages)-1]
			f := uc.Extract(domain.ChatEvent{
				GroupID:    g.id,
				UserID:     syntheticUserID,
				BotID:      botID,
				RawMessage: pre,
				PlainText:  pre,
				Time:       now,
			})
			more := uc.Answer(ctx, f)
			if len(more) == 0 {
				break
			}
			result.Messages = append(result.Messages, more...)
		}

		if uc.rnd.Float64() < uc.config.SpeakPokeProbability {
			users := make([]string, 0, len(g.msgs))
			for _, m := range g.msgs {
				if m.UserID != "" && m.UserID != syntheticUserID {
					users = append(users, m.UserID)
				}
			}
			result.PokeTarget, _ = uniformPick(uc.rnd, users)
		}

		uc.log.Info("speaking", "group", g.id, "bot", botID, "segments", len(result.Messages))
		return result
	}
	return nil
}

type groupSnapshot struct {
	id   string
	msgs []*domain.Message
}

// morePopular orders groups by cached message count while either is small,
// otherwise by message rate.
func morePopular(lhs, rhs []*domain.Message, minMsgs int) bool {
	if len(lhs) < minMsgs || len(rhs) < minMsgs {
		return len(lhs) > len(rhs)
	}
	lDur := lhs[len(lhs)-1].Time.Sub(lhs[0].Time).Seconds()
	rDur := rhs[len(rhs)-1].Time.Sub(rhs[0].Time).Seconds()
	if lDur <= 0 || rDur <= 0 {
		return len(lhs) > len(rhs)
	}
	return float64(len(lhs))/lDur > float64(len(rhs))/rDur
}

// replyState returns the bot that replied most recently in the group, the time
// of that reply, and every bot with a non-empty ledger there.
func (uc *ChatUsecase) replyState(groupID string) (front string, last time.Time, bots []string) {
	uc.replyMu.Lock()
	defer uc.replyMu.Unlock()

	for botID, entries := range uc.replies[groupID] {
		if botID == "" || len(entries) == 0 {
			continue
		}
		bots = append(bots, botID)
		if t := entries[len(entries)-1].Time; front == "" || t.After(last) {
			front, last = botID, t
		}
	}
	sort.Strings(bots)
	return front, last, bots
}

// pickSpeakLine chooses a cached message to repeat, preferring the bot's persona
func (uc *ChatUsecase) pickSpeakLine(ctx context.Context, g groupSnapshot, botID string) (*domain.Message, bool) {
	banned := uc.findBanKeywords(nil, g.id)

	uc.topicsMu.Lock()
	var recently []string
	if ring := uc.spoken[g.id]; ring != nil {
		recently = ring.Items()
	}
	uc.topicsMu.Unlock()
	spoken := domain.NewKeywordSet(recently...)

	var available []*domain.Message
	for _, m := range g.msgs {
		raw := m.RawMessage
		switch {
		case banned.Has(m.Keywords), spoken.Has(raw):
		case uc.config.CallPrefix != "" && strings.HasPrefix(raw, uc.config.CallPrefix):
		case strings.HasPrefix(raw, domain.MarkupXML), strings.Contains(raw, "\n"):
		case !domain.HasMarkup(raw) && domain.IsBareDigits(strings.TrimSpace(raw)):
		default:
			available = append(available, m)
		}
	}
	if len(available) == 0 {
		return nil, false
	}

	if persona := uc.persona(ctx, botID, g.id); persona != "" {
		for _, m := range available {
			if m.IsFrom(persona) {
				return m, true
			}
		}
	}
	return available[0], true
}

func (uc *ChatUsecase) persona(ctx context.Context, botID, groupID string) string {
	if uc.botConfigs == nil {
		return ""
	}
	cfg, err := uc.botConfigs.GetBotConfig(ctx, botID)
	if err != nil {
		uc.log.Debug("failed to load bot config", "bot", botID, "error", err)
		return ""
	}
	return cfg.PersonaFor(groupID)
}
