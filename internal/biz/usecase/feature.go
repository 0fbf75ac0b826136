package usecase

import (
	"strings"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
)

// Extract derives the feature record of an inbound event
func (uc *ChatUsecase) Extract(ev domain.ChatEvent) *domain.Feature {
	ev.RawMessage = domain.NormalizeRaw(ev.RawMessage)
	if ev.Time.IsZero() {
		ev.Time = uc.now()
	}

	f := &domain.Feature{ChatEvent: ev}
	f.IsPlainText = !domain.HasMarkup(ev.RawMessage) && ev.PlainText != ""
	f.HasImage = strings.Contains(ev.RawMessage, domain.MarkupImage) ||
		strings.Contains(ev.RawMessage, domain.MarkupFace)

	if !f.IsPlainText && ev.PlainText == "" {
		f.Keywords = ev.RawMessage
	} else {
		f.KeywordList = uc.topKeywords(ev.PlainText)
		if len(f.KeywordList) == 0 {
			f.Keywords = ev.PlainText
		} else {
			f.Keywords = strings.Join(f.KeywordList, " ")
		}
	}

	if uc.transliterator != nil {
		f.KeywordsPinyin = uc.transliterator.Transliterate(f.Keywords)
	}
	f.ToMe = domain.IsAddressedTo(ev.RawMessage, ev.PlainText, ev.BotID, uc.config.CallPrefix)
	return f
}

func (uc *ChatUsecase) topKeywords(text string) []string {
	if uc.tokenizer == nil {
		return nil
	}
	tags, err := uc.tokenizer.ExtractTopKeywords(text, uc.config.KeywordsSize)
	if err != nil {
		uc.log.Debug("tokenizer unavailable, using plain text", "error", err)
		return nil
	}
	return tags
}
