package repo

// Tokenizer extracts salient keyword tags from free text
type Tokenizer interface {
	// ExtractTopKeywords returns at most k tags, most relevant first
	ExtractTopKeywords(text string, k int) ([]string, error)
}

// Transliterator renders text phonetically
type Transliterator interface {
	Transliterate(text string) string
}
