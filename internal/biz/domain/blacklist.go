package domain

import "sort"

// GlobalGroupID is the pseudo-group holding blacklist entries that apply everywhere
const GlobalGroupID = "*"

// Blacklist is the persisted form of one group's blacklist sets
type Blacklist struct {
	GroupID        string
	Answers        []string
	AnswersReserve []string
}

// KeywordSet is an unordered set of keyword strings
type KeywordSet map[string]struct{}

// NewKeywordSet builds a set from keywords
func NewKeywordSet(keywords ...string) KeywordSet {
	s := make(KeywordSet, len(keywords))
	for _, k := range keywords {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership
func (s KeywordSet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k
func (s KeywordSet) Add(k string) {
	s[k] = struct{}{}
}

// Merge inserts every member of o
func (s KeywordSet) Merge(o KeywordSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

// Without returns the members of s not in o
func (s KeywordSet) Without(o KeywordSet) KeywordSet {
	out := make(KeywordSet, len(s))
	for k := range s {
		if !o.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexical order
func (s KeywordSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
