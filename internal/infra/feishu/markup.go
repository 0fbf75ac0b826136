package feishu

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Feishu message types handled by the converter
const (
	MsgTypeText    = "text"
	MsgTypePost    = "post"
	MsgTypeImage   = "image"
	MsgTypeSticker = "sticker"
)

const mentionAllKey = "@_all"

var (
	singleImageRe = regexp.MustCompile(`^\[CQ:image,file=([^,\]]+)[^\]]*\]$`)
	singleFaceRe  = regexp.MustCompile(`^\[CQ:face,id=([^,\]]+)\]$`)
	atMarkupRe    = regexp.MustCompile(`\[CQ:at,qq=([^,\]]+)[^\]]*\]`)
	anyMarkupRe   = regexp.MustCompile(`\[CQ:[^\]]*\]`)
)

// AtMarkup returns the mention marker for userID
func AtMarkup(userID string) string {
	return fmt.Sprintf("[CQ:at,qq=%s]", userID)
}

func imageMarkup(key string) string {
	return fmt.Sprintf("[CQ:image,file=%s]", key)
}

func faceMarkup(id string) string {
	return fmt.Sprintf("[CQ:face,id=%s]", id)
}

func replyMarkup(id string) string {
	return fmt.Sprintf("[CQ:reply,id=%s]", id)
}

// Converted is an inbound message expressed in bracket markup
type Converted struct {
	Raw   string
	Plain string
}

// ConvertContent turns a Feishu message body into markup.
// mentions maps placeholder keys (@_user_1) to open ids.
// ok is false for unsupported message types or malformed bodies.
func ConvertContent(msgType, content string, mentions map[string]string) (Converted, bool) {
	switch msgType {
	case MsgTypeText:
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return Converted{}, false
		}
		raw, plain := convertMentions(parsed.Text, mentions)
		return Converted{Raw: raw, Plain: plain}, true

	case MsgTypeImage:
		var parsed struct {
			ImageKey string `json:"image_key"`
		}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.ImageKey == "" {
			return Converted{}, false
		}
		return Converted{Raw: imageMarkup(parsed.ImageKey)}, true

	case MsgTypeSticker:
		var parsed struct {
			FileKey string `json:"file_key"`
		}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.FileKey == "" {
			return Converted{}, false
		}
		return Converted{Raw: faceMarkup(parsed.FileKey)}, true

	case MsgTypePost:
		return convertPost(content, mentions)
	}
	return Converted{}, false
}

// convertMentions rewrites placeholders into at markers; plain drops them
func convertMentions(text string, mentions map[string]string) (raw, plain string) {
	keys := make([]string, 0, len(mentions))
	for key := range mentions {
		keys = append(keys, key)
	}
	// @_user_1 is a prefix of @_user_10
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	raw = text
	plain = text
	for _, key := range keys {
		raw = strings.ReplaceAll(raw, key, AtMarkup(mentions[key]))
		plain = strings.ReplaceAll(plain, key, "")
	}
	raw = strings.ReplaceAll(raw, mentionAllKey, AtMarkup("all"))
	plain = strings.ReplaceAll(plain, mentionAllKey, "")
	return raw, strings.TrimSpace(plain)
}

func convertPost(content string, mentions map[string]string) (Converted, bool) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag       string `json:"tag"`
			Text      string `json:"text,omitempty"`
			ImageKey  string `json:"image_key,omitempty"`
			UserID    string `json:"user_id,omitempty"`
			EmojiType string `json:"emoji_type,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Converted{}, false
	}

	var rawLines, plainLines []string
	if parsed.Title != "" {
		rawLines = append(rawLines, parsed.Title)
		plainLines = append(plainLines, parsed.Title)
	}

	for _, line := range parsed.Content {
		var raw, plain strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text", "a":
				raw.WriteString(elem.Text)
				plain.WriteString(elem.Text)
			case "at":
				id := elem.UserID
				if openID, ok := mentions[id]; ok {
					id = openID
				}
				if id == mentionAllKey {
					id = "all"
				}
				if id != "" {
					raw.WriteString(AtMarkup(id))
				}
			case "img":
				if elem.ImageKey != "" {
					raw.WriteString(imageMarkup(elem.ImageKey))
				}
			case "emotion":
				if elem.EmojiType != "" {
					raw.WriteString(faceMarkup(elem.EmojiType))
				}
			}
		}
		if raw.Len() > 0 {
			rawLines = append(rawLines, raw.String())
		}
		if p := strings.TrimSpace(plain.String()); p != "" {
			plainLines = append(plainLines, p)
		}
	}

	return Converted{
		Raw:   strings.Join(rawLines, "\n"),
		Plain: strings.TrimSpace(strings.Join(plainLines, "\n")),
	}, true
}

// WithReply prefixes raw with a quote marker when parentID is set
func WithReply(raw, parentID string) string {
	if parentID == "" {
		return raw
	}
	return replyMarkup(parentID) + raw
}

// RenderOutgoing turns engine markup into a Feishu message type and body.
// A lone image marker becomes an image message and a lone face marker a
// sticker. Otherwise mentions become <at> tags and other markers are removed.
// An empty msgType means there is nothing left to send.
func RenderOutgoing(text string) (msgType, content string) {
	trimmed := strings.TrimSpace(text)

	if m := singleImageRe.FindStringSubmatch(trimmed); m != nil {
		return MsgTypeImage, mustJSON(map[string]string{"image_key": m[1]})
	}
	if m := singleFaceRe.FindStringSubmatch(trimmed); m != nil {
		return MsgTypeSticker, mustJSON(map[string]string{"file_key": m[1]})
	}

	body := atMarkupRe.ReplaceAllStringFunc(trimmed, func(s string) string {
		id := atMarkupRe.FindStringSubmatch(s)[1]
		return fmt.Sprintf(`<at user_id="%s"></at>`, id)
	})
	body = strings.TrimSpace(anyMarkupRe.ReplaceAllString(body, ""))
	if body == "" {
		return "", ""
	}
	return MsgTypeText, mustJSON(map[string]string{"text": body})
}

func mustJSON(v map[string]string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
