package data

import "testing"

func TestPinyinTransliterator(t *testing.T) {
	p := NewTransliterator()

	tests := []struct {
		in   string
		want string
	}{
		{"你好", "nihao"},
		{"你好ABC", "nihaoabc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Transliterate(tt.in); got != tt.want {
			t.Errorf("Transliterate(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestIsKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"苹果", true},
		{"果", false},
		{"123", false},
		{"！！", false},
		{"go", true},
	}
	for _, tt := range tests {
		if got := isKeyword(tt.in); got != tt.want {
			t.Errorf("isKeyword(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestGseTokenizer_ExtractTopKeywords(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the full dictionary")
	}
	tok, err := NewTokenizer("")
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	tags, err := tok.ExtractTopKeywords("香蕉 苹果 苹果", 2)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Expected 2 tags, got %v", tags)
	}
	if tags[0] != "苹果" {
		t.Errorf("Expected most frequent word first, got %v", tags)
	}

	// equal term frequency, so the rarer word wins
	tags, err = tok.ExtractTopKeywords("苹果 草莓", 1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(tags) != 1 || tags[0] != "草莓" {
		t.Errorf("Expected higher idf word 草莓, got %v", tags)
	}

	tags, err = tok.ExtractTopKeywords("！！ 123 苹果", 2)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(tags) != 1 || tags[0] != "苹果" {
		t.Errorf("Expected only 苹果 after filtering, got %v", tags)
	}

	if tags, _ := tok.ExtractTopKeywords("苹果", 0); tags != nil {
		t.Errorf("Expected nil for k=0, got %v", tags)
	}
}
