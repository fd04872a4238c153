package safety

import "strings"

// BannedPhraseFilter rejects candidate text containing any configured
// banned phrase, matched case-insensitively as a substring -- deliberately
// simple, since spec.md treats this as a blunt safety net rather than an
// NLP classifier.
type BannedPhraseFilter struct {
	phrases []string
}

// NewBannedPhraseFilter builds a filter over the given phrase list.
func NewBannedPhraseFilter(phrases []string) *BannedPhraseFilter {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lowered = append(lowered, strings.ToLower(p))
	}
	return &BannedPhraseFilter{phrases: lowered}
}

// Check returns the first matching banned phrase and true if text contains
// one, or ("", false) if text is clean.
func (f *BannedPhraseFilter) Check(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range f.phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// MentionsKeyword reports whether text contains any of keywords as a
// case-insensitive substring, the same blunt matching BannedPhraseFilter
// uses. Used to decide the MentionsProduct flag the policy evaluator's
// product-mention ratio tracker (§4.4) keys off of, against the business
// section's product_keywords.
func MentionsKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ToLower(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
