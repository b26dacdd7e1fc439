// Package phone canonicalizes sender phone numbers used as conversation keys.
package phone

import "strings"

var stripper = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\t", "")

// Normalize returns the canonical "+<digits>" form of raw. Transport prefixes
// such as "whatsapp:" and formatting characters are removed and an
// international "00" prefix becomes "+". Empty input yields "".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = stripper.Replace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}

// Variants lists the formats a stored phone number may have been saved in,
// de-duplicated and in lookup order.
func Variants(raw string) []string {
	n := Normalize(raw)
	candidates := []string{
		n,
		strings.TrimPrefix(n, "+"),
		raw,
		strings.NewReplacer(" ", "", "-", "").Replace(raw),
	}
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// callingCodes maps international calling codes to a language code.
var callingCodes = map[string]string{
	"49": "de", "43": "de", "41": "de", "423": "de",
	"34": "es", "52": "es", "53": "es", "54": "es", "56": "es", "57": "es",
	"58": "es", "51": "es", "502": "es", "503": "es", "504": "es", "505": "es",
	"506": "es", "507": "es", "591": "es", "593": "es", "595": "es", "598": "es",
	"1": "en", "44": "en", "61": "en", "64": "en", "353": "en", "27": "en",
}

// CountryLanguage returns the language associated with the number's calling
// code using the longest matching prefix. ok is false when no code matches.
func CountryLanguage(raw string) (lang string, ok bool) {
	digits := strings.TrimPrefix(Normalize(raw), "+")
	for n := 3; n >= 1; n-- {
		if len(digits) < n {
			continue
		}
		if l, found := callingCodes[digits[:n]]; found {
			return l, true
		}
	}
	return "", false
}
