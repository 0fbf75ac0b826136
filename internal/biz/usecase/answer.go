package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// candidate is an answer under consideration for one query. Its topical score
// is computed per query and never persisted.
type candidate struct {
	answer  domain.Answer
	topical int
}

// Answer picks zero or more reply segments for the event. Each returned
// segment has already been recorded in the reply ledger.
func (uc *ChatUsecase) Answer(ctx context.Context, f *domain.Feature) []string {
	if segments, repeating := uc.repeatReply(f); repeating {
		if len(segments) == 0 {
			return nil
		}
		return uc.recordReplies(f, segments, f.Keywords)
	}

	// too short to carry meaning, mostly "?" and the like
	if f.IsPlainText && utf8.RuneCountInString(f.PlainText) < 2 {
		return nil
	}

	if uc.contexts == nil {
		uc.log.Debug("context storage unavailable, not answering", "group", f.GroupID)
		return nil
	}
	c, err := uc.contexts.GetContext(ctx, f.Keywords)
	if err != nil {
		uc.log.Warn("failed to load context", "keywords", f.Keywords, "error", err)
		return nil
	}
	if c == nil {
		return nil
	}

	chosen, ok := uc.selectAnswer(c, f)
	if !ok {
		return nil
	}

	text, _ := uniformPick(uc.rnd, chosen.Messages)
	text = strings.TrimPrefix(text, uc.config.CallPrefix)
	if text == "" {
		return nil
	}

	uc.log.Info("selected answer", "group", f.GroupID, "bot", f.BotID, "keywords", chosen.Keywords)
	return uc.recordReplies(f, uc.splitReply(text), chosen.Keywords)
}

// repeatReply mirrors a message the group keeps repeating, once.
// repeating reports whether the repeat branch decided the outcome.
func (uc *ChatUsecase) repeatReply(f *domain.Feature) (segments []string, repeating bool) {
	key := f.RepeatKey()
	n := uc.config.RepeatThreshold
	if key == "" || n < 1 {
		return nil, false
	}

	msgs := uc.groupMessages(f.GroupID)
	if len(msgs) < n {
		return nil, false
	}
	for _, m := range msgs[len(msgs)-n:] {
		if m.RepeatKey() != key {
			return nil, false
		}
	}

	ledger := uc.ledger(f.GroupID, f.BotID)
	if len(ledger) > 0 && ledger[len(ledger)-1].Reply == key {
		return nil, true
	}
	return []string{key}, true
}

func (uc *ChatUsecase) selectAnswer(c *domain.Context, f *domain.Feature) (domain.Answer, bool) {
	threshold, _ := weightedPick(uc.rnd, uc.config.answerThresholdChoices(), uc.config.AnswerThresholdWeights)
	if f.KeywordsLen() == uc.config.KeywordsSize {
		threshold--
	}

	crossGroupThreshold := uc.config.CrossGroupThreshold
	if f.ToMe {
		crossGroupThreshold = 1
	}

	banned := uc.findBanKeywords(c, f.GroupID)

	recentReplies := make(map[string]struct{})
	ledger := uc.ledger(f.GroupID, f.BotID)
	for _, r := range tail(ledger, uc.config.DuplicateReply) {
		recentReplies[r.ReplyKeywords] = struct{}{}
	}
	recentMessages := make(map[string]struct{})
	for _, m := range tail(uc.groupMessages(f.GroupID), uc.config.DuplicateReply) {
		recentMessages[m.RawMessage] = struct{}{}
	}

	uc.topicsMu.Lock()
	var topics *domain.Ring[string]
	if ring := uc.topics[f.GroupID]; ring != nil {
		topics = domain.NewRing[string](uc.config.TopicsSize)
		topics.Push(ring.Items()...)
	}
	uc.topicsMu.Unlock()

	var order []string
	candidates := make(map[string]*candidate)
	otherGroup := make(map[string]*candidate)
	crossCount := make(map[string]int)

	for _, a := range c.Answers {
		if a.Count < threshold {
			continue
		}
		if banned.Has(a.Keywords) || a.Keywords == f.Keywords {
			continue
		}
		if _, seen := recentReplies[a.Keywords]; seen {
			continue
		}
		if len(a.Messages) == 0 {
			continue
		}
		sample := a.Sample()
		if !uc.acceptableSample(f, a, sample, recentMessages) {
			continue
		}

		switch {
		case a.GroupID == f.GroupID:
			order = mergeCandidate(candidates, order, a, topics)
		case strings.Contains(sample, domain.MarkupAnyAt):
			// mentions only make sense in the group they were learned in
		default:
			crossCount[a.Keywords]++
			cur := crossCount[a.Keywords]
			switch {
			case cur < crossGroupThreshold:
				mergeCandidate(otherGroup, nil, a, topics)
			case cur == crossGroupThreshold:
				if staged, ok := otherGroup[a.Keywords]; ok && cur > 1 {
					order = mergeCandidate(candidates, order, &staged.answer, topics)
				}
				order = mergeCandidate(candidates, order, a, topics)
			default:
				order = mergeCandidate(candidates, order, a, topics)
			}
		}
	}

	if len(order) == 0 {
		return domain.Answer{}, false
	}

	items := make([]*candidate, 0, len(order))
	weights := make([]int, 0, len(order))
	for _, key := range order {
		cand := candidates[key]
		items = append(items, cand)
		weights = append(weights, min(cand.answer.Count, 10)+cand.topical*uc.config.TopicsImportance)
	}
	picked, _ := weightedPick(uc.rnd, items, weights)
	return picked.answer, true
}

// acceptableSample applies the content heuristics to an answer's sample text
func (uc *ChatUsecase) acceptableSample(f *domain.Feature, a *domain.Answer, sample string, recent map[string]struct{}) bool {
	// pictures are mostly stickers; text following them is noise
	if f.HasImage && !domain.HasMarkup(sample) {
		return false
	}
	if uc.config.CallPrefix != "" && strings.HasPrefix(sample, uc.config.CallPrefix) {
		// usually learned backwards from someone teaching "bot hello" -> "hello"
		if !f.ToMe || utf8.RuneCountInString(sample) <= 6 {
			return false
		}
	}
	if strings.HasPrefix(sample, domain.MarkupXML) || strings.Contains(sample, "\n") {
		return false
	}
	// reaction ids leaked as text
	if !domain.HasMarkup(sample) && domain.IsBareDigits(strings.TrimSpace(sample)) {
		return false
	}
	if _, ok := recent[sample]; ok && a.Count < 3 {
		return false
	}
	return true
}

// mergeCandidate adds a copy of a to dst, summing counts and bodies with an
// existing entry of the same keywords. order tracks first insertion.
func mergeCandidate(dst map[string]*candidate, order []string, a *domain.Answer, topics *domain.Ring[string]) []string {
	if pre, ok := dst[a.Keywords]; ok {
		pre.answer.Count += a.Count
		pre.answer.Messages = append(pre.answer.Messages, a.Messages...)
		return order
	}

	cand := &candidate{answer: *a}
	cand.answer.Messages = append([]string(nil), a.Messages...)
	if topics != nil && !domain.HasMarkup(a.Keywords) {
		for _, key := range strings.Split(a.Keywords, " ") {
			cand.topical += topics.Count(key)
		}
	}
	dst[a.Keywords] = cand
	return append(order, a.Keywords)
}

// splitReply sometimes breaks a multi-clause reply into separate messages
func (uc *ChatUsecase) splitReply(text string) []string {
	n := strings.Count(text, domain.ClauseSplitter)
	if n == 0 || n > 3 || domain.HasMarkup(text) || uc.rnd.Float64() >= uc.config.SplitProbability {
		return []string{text}
	}

	var segments []string
	for _, s := range strings.Split(text, domain.ClauseSplitter) {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return []string{text}
	}
	return segments
}

// recordReplies writes each segment to the ledger and folds keywords into the topics window
func (uc *ChatUsecase) recordReplies(f *domain.Feature, segments []string, answerKeywords string) []string {
	for _, seg := range segments {
		uc.appendReply(f.GroupID, f.BotID, &domain.ReplyRecord{
			Time:          uc.now(),
			PreRawMessage: f.RawMessage,
			PreKeywords:   f.Keywords,
			Reply:         seg,
			ReplyKeywords: answerKeywords,
		})

		uc.topicsMu.Lock()
		if !domain.HasMarkup(seg) {
			var keys []string
			for _, k := range strings.Split(answerKeywords, " ") {
				if uc.config.CallPrefix == "" || !strings.HasPrefix(k, uc.config.CallPrefix) {
					keys = append(keys, k)
				}
			}
			uc.pushTopicsLocked(f.GroupID, keys...)
		}
		uc.pushTopicsLocked(f.GroupID, f.KeywordList...)
		uc.topicsMu.Unlock()
	}
	return segments
}

func tail[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
