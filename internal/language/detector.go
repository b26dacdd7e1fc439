// Package language detects the language of guest messages and renders the
// localized replies of the assistant.
package language

import (
	"regexp"
	"strings"

	"hostel-concierge/internal/phone"
)

// Code is an ISO 639-1 language code supported by the assistant.
type Code string

const (
	Spanish Code = "es"
	German  Code = "de"
	English Code = "en"

	// Default is used when neither the message nor the phone number decides.
	Default = Spanish
)

// Supported lists the detectable languages in scoring order.
var Supported = []Code{Spanish, German, English}

// Parse maps a stored or configured code onto a supported language.
func Parse(s string) (Code, bool) {
	c := Code(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range Supported {
		if l == c {
			return c, true
		}
	}
	return "", false
}

// wordSet matches any of words as a whole word. Boundaries are Unicode aware
// so that accented words such as "qué" are delimited correctly.
func wordSet(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}'])(?:` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}']|$)`)
}

var indicators = map[Code][]*regexp.Regexp{
	Spanish: {
		wordSet("hola", "gracias", "por favor", "qué", "cómo", "dónde", "cuándo", "por qué", "sí", "no",
			"buenos días", "buenas tardes", "buenas noches", "adiós", "hasta luego"),
		regexp.MustCompile(`[áéíóúñ]`),
		wordSet("el", "la", "los", "las", "un", "una", "de", "en", "con", "por", "para", "es", "son", "está", "están"),
	},
	German: {
		wordSet("hallo", "guten tag", "guten morgen", "guten abend", "danke", "bitte", "ja", "nein", "wie", "wo",
			"wann", "warum", "auf wiedersehen", "tschüss"),
		wordSet("haben", "wir", "heute", "frei", "zimmer", "gibt es", "verfügbar", "verfügbarkeit", "buchung",
			"reservierung", "reservieren", "buchen"),
		wordSet("habt", "hast", "hat", "seid", "bist", "werden", "wird", "kann", "können", "möchte", "möchten",
			"will", "wollen"),
		regexp.MustCompile(`[äöüß]`),
		wordSet("der", "die", "das", "ein", "eine", "von", "mit", "für", "ist", "sind"),
	},
	English: {
		wordSet("hello", "hi", "hey", "thanks", "thank you", "please", "yes", "how", "where", "when", "why",
			"what", "which", "goodbye", "bye", "see you", "good morning", "good afternoon", "good evening"),
		wordSet("the", "a", "an", "of", "on", "at", "is", "are", "was", "were", "do", "does", "did",
			"you", "your", "i", "me", "my", "we", "us", "our", "they", "them", "this", "that", "these", "those"),
		wordSet("can", "could", "would", "should", "want", "need", "show", "tell", "give", "get", "see",
			"book", "reserve", "reservation", "booking", "room", "rooms", "available", "availability",
			"tonight", "today", "tomorrow"),
		wordSet("do you have", "are there", "is there", "i want", "i need", "i would like", "i'd like",
			"looking for", "check in", "check out", "check-in", "check-out"),
		wordSet("and", "or", "but", "if", "then", "than", "because", "while", "until", "before", "after",
			"during", "although", "however"),
	},
}

var shortGreeting = regexp.MustCompile(`(?i)^(hi|hello|hey)$`)

// Detect scores text against every language's indicator patterns; each
// matching pattern is worth one point. The language with the strictly
// highest score wins. Ties, all-zero scores and blank text report false.
func Detect(text string) (Code, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if shortGreeting.MatchString(text) {
		return English, true
	}
	scores := Scores(text)

	best, bestScore, tied := Code(""), 0, false
	for _, l := range Supported {
		switch s := scores[l]; {
		case s > bestScore:
			best, bestScore, tied = l, s, false
		case s == bestScore && s > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return "", false
	}
	return best, true
}

// Scores returns the per-language indicator score of text.
func Scores(text string) map[Code]int {
	lower := strings.ToLower(text)
	out := make(map[Code]int, len(indicators))
	for l, patterns := range indicators {
		for _, p := range patterns {
			if p.MatchString(lower) {
				out[l]++
			}
		}
	}
	return out
}

// Resolve applies the fallback policy shared by every caller: message text
// first, the phone number's calling code second, fallback last.
func Resolve(text, phoneNumber string, fallback Code) Code {
	if l, ok := Detect(text); ok {
		return l
	}
	if l, ok := phone.CountryLanguage(phoneNumber); ok {
		if c, ok := Parse(l); ok {
			return c
		}
	}
	if fallback == "" {
		return Default
	}
	return fallback
}

// Name returns the English name of the language, used in model instructions.
func Name(c Code) string {
	switch c {
	case German:
		return "German"
	case English:
		return "English"
	default:
		return "Spanish"
	}
}
