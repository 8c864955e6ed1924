package services

import (
	"strings"
	"unicode"
)

// normalizeAnswer lowercases s and keeps only letters and digits.
func normalizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchAnswer is the lenient answer check used by game rounds: after
// normalization the submission is correct when it equals, contains, or is
// contained in the correct text. Short submissions like "a" can therefore
// match long answers; this is accepted scoring behaviour.
func MatchAnswer(submitted, correct string) bool {
	s, c := normalizeAnswer(submitted), normalizeAnswer(correct)
	if s == "" || c == "" {
		return false
	}
	return s == c || strings.Contains(s, c) || strings.Contains(c, s)
}
