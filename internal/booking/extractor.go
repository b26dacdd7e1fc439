// Package booking turns free-text guest messages into booking slots and
// decides when a reservation can be executed.
package booking

import (
	"regexp"
	"strings"
	"time"

	"hostel-concierge/internal/domain"
)

var (
	bookingIntent = phrases("reservar", "resérvame", "reservame", "quiero reservar", "buchen", "buche",
		"ich möchte buchen", "reservación", "reservacion", "reservierung", "reservation", "book it", "i want to book")
	confirmations = phrases("ja", "sí", "si", "yes", "ok", "okay", "genau", "correcto", "vale", "claro")
	negations     = phrases("no", "nein", "nicht", "not", "nope", "cancel", "cancelar", "abbrechen")
	sharedRoom    = phrases("compartida", "compartido", "dorm", "dormitorio", "cama", "bett", "mehrbettzimmer",
		"schlafsaal", "shared")
	privateRoom = phrases("privada", "privado", "habitación", "habitacion", "zimmer", "einzelzimmer",
		"doppelzimmer", "private")
	greetingWords = phrases("hola", "hallo", "hello", "hi", "hey", "buenos", "buenas", "guten", "good")
)

var (
	nameAfterMarker = regexp.MustCompile(`(?:^|[^\p{L}])(?i:a nombre de|mi nombre es|my name is|me llamo|ich heiße|ich heisse|nombre|name|für|para|ist|mit)\s+(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)+)`)
	bareName        = regexp.MustCompile(`^\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+){1,3}$`)
)

// Extraction is what a single message says about a booking.
type Extraction struct {
	Slots        domain.BookingSlots
	Nights       int
	Intent       bool
	Confirmation bool
}

// Extractor parses booking slots out of free text. Relative dates are kept as
// tokens; numeric dates are resolved against the clock.
type Extractor struct {
	now func() time.Time
}

// NewExtractor returns an Extractor reading the current date from now. A nil
// clock uses time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Extract parses text using prior as the running context. Only slots stated
// or inferred from this message are set on the result.
func (e *Extractor) Extract(text string, prior domain.BookingSlots) Extraction {
	words := tokenize(text)
	var out Extraction
	if len(words) == 0 {
		return out
	}
	out.Intent = bookingIntent.any(words)
	out.Confirmation = confirmations.any(words) && !negations.any(words)
	out.Nights = nightCount(words)

	out.Slots.CheckInDate, out.Slots.CheckOutDate = e.dates(text, words, out.Nights, prior)
	out.Slots.GuestName = guestName(text, words, prior)
	out.Slots.RoomType = roomType(words)
	return out
}

func (e *Extractor) dates(text string, words []string, nights int, prior domain.BookingSlots) (checkIn, checkOut string) {
	now := e.now()

	if in, out, ok := parseRange(text, now); ok {
		checkIn, checkOut = in, out
	} else if m := wordRange.FindStringSubmatch(text); m != nil {
		in, okIn := parseDateToken(m[1], now)
		out, okOut := parseDateToken(m[2], now)
		if okIn && okOut {
			checkIn, checkOut = in, out
		}
	}

	if checkIn == "" {
		mentioned := append(relativeDates(words), numericDates(text, now)...)
		switch {
		case len(mentioned) >= 2:
			checkIn, checkOut = mentioned[0], mentioned[1]
		case len(mentioned) == 1:
			d := mentioned[0]
			if prior.CheckInDate != "" && prior.CheckOutDate == "" && nights == 0 && after(d, prior.CheckInDate, now) {
				checkOut = d
			} else {
				checkIn = d
			}
		}
	}

	if nights > 0 && checkOut == "" {
		base := checkIn
		if base == "" {
			base = prior.CheckInDate
		}
		if base != "" {
			checkOut = addNights(base, nights, now)
		}
	}

	if m := checkInTag.FindStringSubmatch(text); m != nil {
		if d, ok := parseDateToken(m[1], now); ok {
			checkIn = d
		}
	}
	if m := checkOutTag.FindStringSubmatch(text); m != nil {
		if d, ok := parseDateToken(m[1], now); ok {
			checkOut = d
		}
	}
	return checkIn, checkOut
}

func guestName(text string, words []string, prior domain.BookingSlots) string {
	if m := nameAfterMarker.FindStringSubmatch(text); m != nil {
		return strings.Join(strings.Fields(m[1]), " ")
	}
	trimmed := strings.TrimSpace(text)
	if prior.IsEmpty() || !bareName.MatchString(trimmed) {
		return ""
	}
	if greetingWords.any(words[:1]) || bookingIntent.any(words) || confirmations.any(words) {
		return ""
	}
	if MatchRoom(trimmed, prior.LastAvailabilityCheck) != nil {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

func roomType(words []string) domain.RoomType {
	switch {
	case sharedRoom.any(words):
		return domain.RoomShared
	case privateRoom.any(words):
		return domain.RoomPrivate
	}
	return ""
}
