package booking

import (
	"strings"
	"unicode"
)

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

// tokenize lower-cases text and splits it on everything that is not a letter,
// digit or apostrophe.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// phraseSet is a closed vocabulary of one or more word phrases.
type phraseSet map[string]struct{}

func phrases(ps ...string) phraseSet {
	s := make(phraseSet, len(ps))
	for _, p := range ps {
		s[strings.Join(tokenize(p), " ")] = struct{}{}
	}
	return s
}

const maxPhraseWords = 4

// find returns the phrases of s found in words, longest first at each
// position, in message order.
func (s phraseSet) find(words []string) []string {
	var out []string
	for i := 0; i < len(words); {
		matched := 0
		for n := min(maxPhraseWords, len(words)-i); n > 0; n-- {
			p := strings.Join(words[i:i+n], " ")
			if _, ok := s[p]; ok {
				out = append(out, p)
				matched = n
				break
			}
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return out
}

func (s phraseSet) any(words []string) bool {
	return len(s.find(words)) > 0
}
