package usecase

import (
	"context"
	"strings"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Ban forbids the reply matching target that botID recently sent in groupID.
// An empty target bans the most recent reply. Returns false if no reply matched.
func (uc *ChatUsecase) Ban(ctx context.Context, groupID, botID, target, reason string) bool {
	uc.replyMu.Lock()
	_, known := uc.replies[groupID]
	uc.replyMu.Unlock()
	if !known {
		return false
	}

	ledger := uc.ledger(groupID, botID)
	banned := findReply(ledger, func(reply string) bool {
		return target == "" || strings.Contains(reply, target)
	})
	// markup metadata can differ between send time and receipt time
	if banned == nil {
		if tag := domain.MarkupType(target); tag != "" {
			banned = findReply(ledger, func(reply string) bool {
				return strings.Contains(reply, tag)
			})
		}
	}
	if banned == nil {
		return false
	}

	if uc.contexts == nil {
		uc.log.Debug("context storage unavailable, skipping ban", "group", groupID)
		return false
	}

	keywords := banned.ReplyKeywords
	// spoken lines have no triggering context, only the blacklist applies
	if banned.PreKeywords != domain.SpeakFlag {
		uc.banOnContext(ctx, banned.PreKeywords, keywords, groupID, reason)
	}

	uc.blacklistMu.Lock()
	defer uc.blacklistMu.Unlock()
	if setFor(uc.blackReserve, groupID).Has(keywords) {
		setFor(uc.blackActive, groupID).Add(keywords)
		if setFor(uc.blackReserve, domain.GlobalGroupID).Has(keywords) {
			setFor(uc.blackActive, domain.GlobalGroupID).Add(keywords)
		}
	} else {
		setFor(uc.blackReserve, groupID).Add(keywords)
	}

	uc.log.Info("banned reply", "group", groupID, "bot", botID, "keywords", keywords, "reason", reason)
	return true
}

func (uc *ChatUsecase) banOnContext(ctx context.Context, preKeywords, keywords, groupID, reason string) {
	c, err := uc.contexts.GetContext(ctx, preKeywords)
	if err != nil {
		uc.log.Warn("failed to load context for ban", "keywords", preKeywords, "error", err)
		return
	}
	if c == nil {
		return
	}
	c.Bans = append(c.Bans, &domain.Ban{
		Keywords: keywords,
		GroupID:  groupID,
		Reason:   reason,
		Time:     uc.now(),
	})
	if err := uc.contexts.SaveContext(ctx, c); err != nil {
		uc.log.Warn("failed to save ban", "keywords", preKeywords, "error", err)
	}
}

// findReply walks the ledger newest first, skipping bare speak markers
func findReply(ledger []*domain.ReplyRecord, match func(reply string) bool) *domain.ReplyRecord {
	for i := len(ledger) - 1; i >= 0; i-- {
		if ledger[i].IsSpeakMarker() {
			continue
		}
		if match(ledger[i].Reply) {
			return ledger[i]
		}
	}
	return nil
}

// findBanKeywords returns the keywords that must not be offered in groupID.
// c may be nil when no specific context is involved.
func (uc *ChatUsecase) findBanKeywords(c *domain.Context, groupID string) domain.KeywordSet {
	banned := domain.NewKeywordSet()

	uc.blacklistMu.Lock()
	banned.Merge(uc.blackActive[domain.GlobalGroupID])
	banned.Merge(uc.blackActive[groupID])
	uc.blacklistMu.Unlock()

	if c == nil {
		return banned
	}

	groups := make(map[string]domain.KeywordSet)
	for _, b := range c.Bans {
		if b.GroupID == groupID || b.GroupID == domain.GlobalGroupID {
			banned.Add(b.Keywords)
			continue
		}
		seen := groups[b.Keywords]
		if seen == nil {
			seen = domain.NewKeywordSet()
			groups[b.Keywords] = seen
		}
		seen.Add(b.GroupID)
		if len(seen) >= uc.config.CrossGroupThreshold {
			banned.Add(b.Keywords)
		}
	}
	return banned
}

// UpdateGlobalBlacklist reloads stored blacklists and globalizes every keyword
// blacklisted by at least CrossGroupThreshold distinct groups.
func (uc *ChatUsecase) UpdateGlobalBlacklist(ctx context.Context) {
	uc.selectBlacklist(ctx)

	uc.blacklistMu.Lock()
	defer uc.blacklistMu.Unlock()

	groups := make(map[string]domain.KeywordSet)
	count := func(sets map[string]domain.KeywordSet) {
		for groupID, set := range sets {
			if groupID == domain.GlobalGroupID {
				continue
			}
			for k := range set {
				if groups[k] == nil {
					groups[k] = domain.NewKeywordSet()
				}
				groups[k].Add(groupID)
			}
		}
	}
	count(uc.blackActive)
	// reserve sets count too, so a keyword banned once in each of two groups
	// becomes global and reaches the second-stage promotion in Ban
	count(uc.blackReserve)

	global := setFor(uc.blackActive, domain.GlobalGroupID)
	for k, gs := range groups {
		if len(gs) >= uc.config.CrossGroupThreshold {
			global.Add(k)
		}
	}
}

// selectBlacklist merges every stored blacklist into memory
func (uc *ChatUsecase) selectBlacklist(ctx context.Context) {
	if uc.blacklists == nil {
		uc.log.Warn("blacklist storage unavailable, skipping load")
		return
	}
	lists, err := uc.blacklists.ListBlacklists(ctx)
	if err != nil {
		uc.log.Warn("failed to load blacklists", "error", err)
		return
	}

	uc.blacklistMu.Lock()
	defer uc.blacklistMu.Unlock()
	for _, b := range lists {
		for _, k := range b.Answers {
			setFor(uc.blackActive, b.GroupID).Add(k)
		}
		for _, k := range b.AnswersReserve {
			setFor(uc.blackReserve, b.GroupID).Add(k)
		}
	}
}

// syncBlacklist writes every group's blacklist, storing reserve entries that
// are not already active.
func (uc *ChatUsecase) syncBlacklist(ctx context.Context) {
	if uc.blacklists == nil {
		uc.log.Warn("blacklist storage unavailable, skipping sync")
		return
	}
	uc.selectBlacklist(ctx)

	uc.blacklistMu.Lock()
	var lists []*domain.Blacklist
	groups := domain.NewKeywordSet()
	for g := range uc.blackActive {
		groups.Add(g)
	}
	for g := range uc.blackReserve {
		groups.Add(g)
	}
	for _, g := range groups.Sorted() {
		active := uc.blackActive[g]
		reserve := uc.blackReserve[g].Without(active)
		if len(active) == 0 && len(reserve) == 0 {
			continue
		}
		lists = append(lists, &domain.Blacklist{
			GroupID:        g,
			Answers:        active.Sorted(),
			AnswersReserve: reserve.Sorted(),
		})
	}
	uc.blacklistMu.Unlock()

	for _, b := range lists {
		if err := uc.blacklists.SaveBlacklist(ctx, b); err != nil {
			uc.log.Warn("failed to save blacklist", "group", b.GroupID, "error", err)
		}
	}
}

// setFor returns the set for groupID, creating it on first use.
// Caller must hold blacklistMu.
func setFor(sets map[string]domain.KeywordSet, groupID string) domain.KeywordSet {
	s := sets[groupID]
	if s == nil {
		s = domain.NewKeywordSet()
		sets[groupID] = s
	}
	return s
}
