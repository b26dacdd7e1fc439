package booking

import (
	"strings"
	"unicode/utf8"

	"hostel-concierge/internal/domain"
)

var articles = phrases("el", "la", "los", "las", "un", "una")

// categoryKeywords describe room categories independently of their names.
var categoryKeywords = []string{"doble", "basica", "basico", "estandar", "apartamento", "singular", "deluxe"}

// RoomMatch is a snapshot entry picked out of a message.
type RoomMatch struct {
	Name       string
	CategoryID int
	Type       domain.RoomType
}

// ResolveRoom finds the room offer named in text. When MatchRoom finds
// nothing and knownType is set, a category of that type is picked instead. A
// missing snapshot or blank text yields nil.
func ResolveRoom(text string, snap *domain.AvailabilitySnapshot, knownType domain.RoomType) *RoomMatch {
	if m := MatchRoom(text, snap); m != nil {
		return m
	}
	if knownType == "" || snap == nil || len(snap.Rooms) == 0 {
		return nil
	}
	msg := strings.Join(messageWords(text), " ")
	if msg == "" {
		return nil
	}
	return categoryFallback(msg, snap.Rooms, knownType)
}

// MatchRoom returns the first snapshot entry that text names exactly, by at
// least two name tokens, or after stripping inflection suffixes. It never
// falls back to a category.
func MatchRoom(text string, snap *domain.AvailabilitySnapshot) *RoomMatch {
	if snap == nil || len(snap.Rooms) == 0 {
		return nil
	}
	msgWords := messageWords(text)
	if len(msgWords) == 0 {
		return nil
	}
	msg := strings.Join(msgWords, " ")

	for _, room := range snap.Rooms {
		nameWords := tokenize(accentFolder.Replace(strings.ToLower(room.Name)))
		if len(nameWords) > 0 {
			if _, ok := articles[nameWords[0]]; ok {
				nameWords = nameWords[1:]
			}
		}
		if len(nameWords) == 0 {
			continue
		}
		if exactMatch(msg, nameWords) || partialMatch(msg, nameWords) || fuzzyMatch(msg, msgWords, nameWords) {
			return match(room)
		}
	}
	return nil
}

func messageWords(text string) []string {
	return stripArticles(tokenize(accentFolder.Replace(strings.ToLower(text))))
}

func match(r domain.RoomOffer) *RoomMatch {
	return &RoomMatch{Name: r.Name, CategoryID: r.CategoryID, Type: r.Type}
}

func stripArticles(words []string) []string {
	out := words[:0:0]
	for _, w := range words {
		if _, ok := articles[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}

func exactMatch(msg string, nameWords []string) bool {
	name := strings.Join(nameWords, " ")
	if strings.Contains(msg, name) {
		return true
	}
	return utf8.RuneCountInString(msg) > 2 && strings.Contains(name, msg)
}

func partialMatch(msg string, nameWords []string) bool {
	found := 0
	for _, w := range nameWords {
		if utf8.RuneCountInString(w) > 2 && strings.Contains(msg, w) {
			found++
		}
	}
	return found >= 2
}

// stem drops one trailing inflection character.
func stem(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case 'o', 'a', 'e', 's':
		return s[:len(s)-1]
	}
	return s
}

func fuzzyMatch(msg string, msgWords, nameWords []string) bool {
	name, m := stem(strings.Join(nameWords, " ")), stem(msg)
	if name != "" && strings.Contains(m, name) {
		return true
	}
	if utf8.RuneCountInString(m) > 2 && strings.Contains(name, m) {
		return true
	}

	hits := 0
	for _, nw := range nameWords {
		if utf8.RuneCountInString(nw) <= 3 {
			continue
		}
		ns := stem(nw)
		for _, mw := range msgWords {
			if utf8.RuneCountInString(mw) <= 3 {
				continue
			}
			ms := stem(mw)
			if strings.Contains(ms, ns) || strings.Contains(ns, ms) {
				hits++
				break
			}
		}
	}
	return hits >= 2
}

func categoryFallback(msg string, rooms []domain.RoomOffer, known domain.RoomType) *RoomMatch {
	var ofType []domain.RoomOffer
	for _, r := range rooms {
		if r.Type == known {
			ofType = append(ofType, r)
		}
	}
	switch len(ofType) {
	case 0:
		return nil
	case 1:
		return match(ofType[0])
	}
	for _, kw := range categoryKeywords {
		if !strings.Contains(msg, kw) {
			continue
		}
		for _, r := range ofType {
			if strings.Contains(accentFolder.Replace(strings.ToLower(r.Name)), kw) {
				return match(r)
			}
		}
	}
	return match(ofType[0])
}
