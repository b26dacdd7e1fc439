package statemachine

import (
	"fmt"
	"strings"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
)

const displayDate = "02/01/2006"

func reservationReply(lang language.Code, rt domain.RequestType, r domain.Reservation) string {
	if rt == domain.RequestTypePincode {
		return PinMessage(lang, r)
	}
	return StatusMessage(lang, r)
}

// StatusMessage greets the guest with what is still pending for the stay and
// the access code.
func StatusMessage(lang language.Code, r domain.Reservation) string {
	var b strings.Builder
	b.WriteString(language.Text(lang, language.KeyStatusGreeting, r.GuestName))
	b.WriteString("\n\n")

	paymentPending := r.NeedsPayment() && r.PaymentLink != ""
	if paymentPending {
		fmt.Fprintf(&b, "%s\n%s\n\n", language.Text(lang, language.KeyStatusPaymentPending), r.PaymentLink)
	}
	checkInPending := !r.OnlineCheckInCompleted && r.CheckInLink != ""
	if checkInPending {
		fmt.Fprintf(&b, "%s\n%s\n\n", language.Text(lang, language.KeyStatusCheckInPending), r.CheckInLink)
	}

	if code := r.AccessCode(); code != "" {
		fmt.Fprintf(&b, "%s %s\n\n", language.Text(lang, language.KeyStatusCode), code)
	} else {
		b.WriteString(language.Text(lang, language.KeyStatusNoCode))
		b.WriteString("\n\n")
	}
	if paymentPending && checkInPending {
		b.WriteString(language.Text(lang, language.KeyStatusBothPending))
		b.WriteString("\n\n")
	}
	b.WriteString(language.Text(lang, language.KeyStatusSeeYou))
	return b.String()
}

// PinMessage returns the door PIN of the reservation.
func PinMessage(lang language.Code, r domain.Reservation) string {
	greeting := language.Text(lang, language.KeyStatusGreeting, r.GuestName)
	if r.DoorPin == "" {
		return greeting + "\n\n" + language.Text(lang, language.KeyNoPincode)
	}
	return fmt.Sprintf("%s\n\n%s %s\n\n%s", greeting, language.Text(lang, language.KeyPincode), r.DoorPin,
		language.Text(lang, language.KeyStatusSeeYou))
}

func candidateList(lang language.Code, title language.Key, cs []domain.CandidateReservation) string {
	var b strings.Builder
	b.WriteString(language.Text(lang, title))
	b.WriteString("\n\n")
	for i, c := range cs {
		b.WriteString(language.Text(lang, language.KeyGuestCandidateLine, i+1,
			c.CheckInDate.Format(displayDate), c.CheckOutDate.Format(displayDate)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(language.Text(lang, language.KeyGuestCandidatesContact))
	return b.String()
}
