package domain

import (
	"regexp"
	"strings"
	"time"
)

// Rich content markup embedded in raw message text
const (
	MarkupPrefix   = "[CQ:"
	MarkupImage    = "[CQ:image,"
	MarkupFace     = "[CQ:face,"
	MarkupReply    = "[CQ:reply,"
	MarkupXML      = "[CQ:xml"
	MarkupAnyAt    = "[CQ:at,qq="
	MentionAllID   = "all"
	ClauseSplitter = "，"
)

var (
	imageSubtypeRe = regexp.MustCompile(`\.image,.+?\]`)
	markupTypeRe   = regexp.MustCompile(`(\[CQ:[a-zA-Z0-9-_.]+)`)
)

// ChatEvent is one inbound group message as delivered by the host platform
type ChatEvent struct {
	MessageID  string
	GroupID    string
	UserID     string
	BotID      string
	RawMessage string
	PlainText  string
	Time       time.Time
}

// NormalizeRaw drops image subtype metadata so the same picture compares equal
func NormalizeRaw(raw string) string {
	return imageSubtypeRe.ReplaceAllString(raw, ".image]")
}

// HasMarkup reports whether text carries any rich content marker
func HasMarkup(text string) bool {
	return strings.Contains(text, MarkupPrefix)
}

// MarkupType returns the leading "[CQ:<type>" tag of text, or "" if none
func MarkupType(text string) string {
	m := markupTypeRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// IsBareDigits reports whether text is a non-empty run of ASCII digits
func IsBareDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Feature is the derived record of one ChatEvent, computed once and reused
type Feature struct {
	ChatEvent

	IsPlainText    bool
	HasImage       bool
	KeywordList    []string
	Keywords       string
	KeywordsPinyin string
	ToMe           bool
}

// KeywordsLen returns the number of extracted keyword tags
func (f *Feature) KeywordsLen() int {
	return len(f.KeywordList)
}

// RepeatKey is the text compared when detecting repeated messages
func (f *Feature) RepeatKey() string {
	if f.IsPlainText {
		return f.PlainText
	}
	return f.RawMessage
}

// ToMessage converts the feature into a cacheable Message
func (f *Feature) ToMessage() *Message {
	return &Message{
		SourceID:    f.MessageID,
		GroupID:     f.GroupID,
		UserID:      f.UserID,
		BotID:       f.BotID,
		RawMessage:  f.RawMessage,
		IsPlainText: f.IsPlainText,
		PlainText:   f.PlainText,
		Keywords:    f.Keywords,
		Time:        f.Time,
	}
}

// IsAddressedTo reports whether raw mentions botID (or all), or plain starts with the call prefix
func IsAddressedTo(raw, plain, botID, callPrefix string) bool {
	for rest := raw; ; {
		i := strings.Index(rest, MarkupAnyAt)
		if i < 0 {
			break
		}
		rest = rest[i+len(MarkupAnyAt):]
		end := strings.IndexAny(rest, ",]")
		if end < 0 {
			break
		}
		if id := rest[:end]; id == MentionAllID || (botID != "" && id == botID) {
			return true
		}
	}
	if callPrefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(plain)), strings.ToLower(callPrefix))
}
