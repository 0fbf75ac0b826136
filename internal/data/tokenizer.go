package data

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-ego/gse"
	"github.com/go-ego/gse/hmm/idf"
	"github.com/mozillazg/go-pinyin"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/repo"
)

// gseTokenizer ranks segmented words by TF-IDF
type gseTokenizer struct {
	seg gse.Segmenter
	ext idf.TagExtracter
}

// NewTokenizer loads the segmenter dictionary and the bundled IDF table.
// An empty dictPath uses the bundled dictionary.
func NewTokenizer(dictPath string) (repo.Tokenizer, error) {
	t := &gseTokenizer{}

	var err error
	if dictPath != "" {
		err = t.seg.LoadDict(dictPath)
	} else {
		err = t.seg.LoadDict()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	if err := t.seg.LoadStop(); err != nil {
		slog.Default().With("component", "tokenizer").Warn("failed to load stop words", "error", err)
	}

	t.ext.WithGse(t.seg)
	if err := t.ext.LoadIdfStr(gse.ZhIdf); err != nil {
		return nil, fmt.Errorf("failed to load idf table: %w", err)
	}
	return t, nil
}

func (t *gseTokenizer) ExtractTopKeywords(text string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	// rank everything, then filter, so dropped words do not eat into k
	var tags []string
	for _, s := range t.ext.ExtractTags(text, math.MaxInt32) {
		if len(tags) == k {
			break
		}
		if !isKeyword(s.Text) || t.seg.IsStop(s.Text) {
			continue
		}
		tags = append(tags, s.Text)
	}
	return tags, nil
}

// isKeyword drops single runes and words made only of punctuation, symbols or digits
func isKeyword(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// pinyinTransliterator renders Han characters as toneless pinyin and keeps other runes
type pinyinTransliterator struct {
	args pinyin.Args
}

// NewTransliterator creates the phonetic transliterator
func NewTransliterator() repo.Transliterator {
	args := pinyin.NewArgs()
	args.Fallback = func(r rune, a pinyin.Args) []string {
		return []string{string(r)}
	}
	return &pinyinTransliterator{args: args}
}

func (p *pinyinTransliterator) Transliterate(text string) string {
	return strings.ToLower(strings.Join(pinyin.LazyPinyin(text, p.args), ""))
}
