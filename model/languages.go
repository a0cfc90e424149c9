package model

import "strings"

// LanguageSet is an insertion-ordered set of language codes. Blank and
// duplicate codes are ignored.
type LanguageSet struct {
	codes []string
}

// NewLanguageSet builds a set from codes, preserving first-seen order.
func NewLanguageSet(codes ...string) LanguageSet {
	var s LanguageSet
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add appends code if it is non-blank and not yet present. It reports whether
// the code was added.
func (s *LanguageSet) Add(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || s.Contains(code) {
		return false
	}
	s.codes = append(s.codes, code)
	return true
}

// Contains reports whether code is in the set.
func (s LanguageSet) Contains(code string) bool {
	for _, c := range s.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Len returns the number of codes.
func (s LanguageSet) Len() int { return len(s.codes) }

// Codes returns a copy of the codes in insertion order.
func (s LanguageSet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

// SameLanguage compares language codes ignoring case and region
// ("en-US" matches "en").
func SameLanguage(a, b string) bool {
	return baseLanguage(a) == baseLanguage(b)
}

func baseLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}
