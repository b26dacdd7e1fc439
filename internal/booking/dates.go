package booking

import (
	"regexp"
	"strconv"
	"time"
)

// Relative date tokens stored in the booking context until execution.
const (
	Today            = "today"
	Tomorrow         = "tomorrow"
	DayAfterTomorrow = "day after tomorrow"
)

const isoLayout = "2006-01-02"

var relativeOffsets = map[string]int{Today: 0, Tomorrow: 1, DayAfterTomorrow: 2}

var relativeWords = map[string]string{
	"hoy": Today, "heute": Today, "today": Today, "tonight": Today, "esta noche": Today, "heute abend": Today,
	"mañana": Tomorrow, "manana": Tomorrow, "morgen": Tomorrow, "tomorrow": Tomorrow,
	"pasado mañana": DayAfterTomorrow, "pasado manana": DayAfterTomorrow, "übermorgen": DayAfterTomorrow,
	"day after tomorrow": DayAfterTomorrow, "the day after tomorrow": DayAfterTomorrow,
}

var relativeSet = func() phraseSet {
	ps := make([]string, 0, len(relativeWords))
	for p := range relativeWords {
		ps = append(ps, p)
	}
	return phrases(ps...)
}()

// greetings that contain a relative date word.
var greetingSet = phrases("guten morgen", "morgen früh")

var (
	numericDate = regexp.MustCompile(`(\d{1,2})([/.-])(\d{1,2})(?:[/.-](\d{2,4}))?`)
	dateRange   = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?\s*[-–—]\s*(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?`)
	wordRange   = regexp.MustCompile(`(?i)(?:von|from|desde)\s+(\S+)\s+(?:bis|to|hasta)\s+(\S+)`)
	checkInTag  = regexp.MustCompile(`(?i)check[-\s]?in\s*[:=]?\s*([^\s,;]+)`)
	checkOutTag = regexp.MustCompile(`(?i)check[-\s]?out\s*[:=]?\s*([^\s,;]+)`)
)

var nightUnits = phrases("noche", "noches", "nacht", "nächte", "naechte", "night", "nights")

var numberWords = map[string]int{
	"un": 1, "una": 1, "uno": 1, "ein": 1, "eine": 1, "one": 1, "a": 1,
	"dos": 2, "zwei": 2, "two": 2,
	"tres": 3, "drei": 3, "three": 3,
	"cuatro": 4, "vier": 4, "four": 4,
	"cinco": 5, "fünf": 5, "five": 5,
}

// AbsoluteDate resolves a stored date token against now. ISO dates pass
// through unchanged.
func AbsoluteDate(token string, now time.Time) (string, bool) {
	t, ok := dateOf(token, now)
	if !ok {
		return "", false
	}
	return t.Format(isoLayout), true
}

func dateOf(token string, now time.Time) (time.Time, bool) {
	if off, ok := relativeOffsets[token]; ok {
		return midnight(now).AddDate(0, 0, off), true
	}
	t, err := time.ParseInLocation(isoLayout, token, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addNights returns the check-out for a stay of n nights from checkIn. Short
// stays from a relative check-in stay relative.
func addNights(checkIn string, n int, now time.Time) string {
	if off, ok := relativeOffsets[checkIn]; ok {
		switch off + n {
		case 1:
			return Tomorrow
		case 2:
			return DayAfterTomorrow
		}
		return midnight(now).AddDate(0, 0, off+n).Format(isoLayout)
	}
	t, ok := dateOf(checkIn, now)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, n).Format(isoLayout)
}

// after reports whether a is strictly later than b. Unresolvable tokens
// compare as false.
func after(a, b string, now time.Time) bool {
	ta, ok := dateOf(a, now)
	if !ok {
		return false
	}
	tb, ok := dateOf(b, now)
	if !ok {
		return false
	}
	return ta.After(tb)
}

// calendarDate builds a date from day, month and an optional year. A two digit
// year is read as 20xx. Without a year the current year is used, rolled
// forward when the date already passed.
func calendarDate(day, month, year string, now time.Time) (time.Time, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	y := now.Year()
	explicitYear := year != ""
	if explicitYear {
		if y, err = strconv.Atoi(year); err != nil {
			return time.Time{}, false
		}
		switch len(year) {
		case 2:
			y += 2000
		case 3:
			return time.Time{}, false
		}
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, now.Location())
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	if !explicitYear && t.Before(midnight(now)) {
		t = t.AddDate(1, 0, 0)
	}
	return t, true
}

// parseDateToken reads a single token as a relative word or a numeric date.
func parseDateToken(tok string, now time.Time) (string, bool) {
	words := tokenize(tok)
	if len(words) == 1 {
		if rel, ok := relativeWords[words[0]]; ok {
			return rel, true
		}
	}
	m := numericDate.FindStringSubmatch(tok)
	if m == nil || m[0] != tok || !plausibleSeparator(m[2], m[3]) {
		return "", false
	}
	t, ok := calendarDate(m[1], m[3], m[4], now)
	if !ok {
		return "", false
	}
	return t.Format(isoLayout), true
}

// parseRange reads "19.12-22.12" style ranges. A check-out without a year
// inherits the check-in year and rolls over the year end.
func parseRange(text string, now time.Time) (checkIn, checkOut string, ok bool) {
	m := dateRange.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	in, ok := calendarDate(m[1], m[2], m[3], now)
	if !ok {
		return "", "", false
	}
	year := m[6]
	if year == "" {
		year = strconv.Itoa(in.Year())
	}
	out, ok := calendarDate(m[4], m[5], year, now)
	if !ok {
		return "", "", false
	}
	if m[6] == "" && !out.After(in) {
		out = out.AddDate(1, 0, 0)
	}
	return in.Format(isoLayout), out.Format(isoLayout), true
}

// numericDates returns the standalone D.M[.Y] dates in text, in order.
func numericDates(text string, now time.Time) []string {
	var out []string
	for _, idx := range numericDate.FindAllStringSubmatchIndex(text, -1) {
		start, end := idx[0], idx[1]
		if (start > 0 && isDigit(text[start-1])) || (end < len(text) && isDigit(text[end])) {
			continue
		}
		month := text[idx[6]:idx[7]]
		if !plausibleSeparator(text[idx[4]:idx[5]], month) {
			continue
		}
		year := ""
		if idx[8] >= 0 {
			year = text[idx[8]:idx[9]]
		}
		t, ok := calendarDate(text[idx[2]:idx[3]], month, year, now)
		if ok {
			out = append(out, t.Format(isoLayout))
		}
	}
	return out
}

// plausibleSeparator rejects "2-3" style counts. A dash only separates a
// date when the month has two digits.
func plausibleSeparator(sep, month string) bool {
	return sep != "-" || len(month) == 2
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// relativeDates returns the relative date words in words, in order.
func relativeDates(words []string) []string {
	var out []string
	for _, p := range relativeSet.find(stripGreetings(words)) {
		out = append(out, relativeWords[p])
	}
	return out
}

func stripGreetings(words []string) []string {
	if !greetingSet.any(words) {
		return words
	}
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			if _, ok := greetingSet[words[i]+" "+words[i+1]]; ok {
				i++
				continue
			}
		}
		out = append(out, words[i])
	}
	return out
}

// nightCount finds "<n> noches" style phrases. Zero means none.
func nightCount(words []string) int {
	for i := 1; i < len(words); i++ {
		if _, ok := nightUnits[words[i]]; !ok {
			continue
		}
		if n, err := strconv.Atoi(words[i-1]); err == nil && n > 0 {
			return n
		}
		if n, ok := numberWords[words[i-1]]; ok {
			return n
		}
	}
	return 0
}
