package usecase

import (
	"fmt"
	"strings"
	"time"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
)

const fallbackPrompt = "You are the friendly front-desk assistant of a hostel. Answer briefly and helpfully."

type promptContext struct {
	pinnedPrompt string
	language     language.Code
	user         *domain.User
	state        domain.State
	booking      domain.BookingSlots
	missing      []string
	today        time.Time
}

func buildFirstMessages(pc promptContext, history []domain.TranscriptEntry, text string) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: "system", Content: buildSystemPrompt(pc)}}
	messages = append(messages, historyMessages(history)...)
	return append(messages, domain.ChatMessage{Role: "user", Content: userContent(text)})
}

// buildFollowUpMessages replays the first exchange with the tool results and
// asks for the final answer in the guest's language. The system prompt leads
// with the language instruction in both calls.
func buildFollowUpMessages(pc promptContext, history []domain.TranscriptEntry, text string, calls []domain.ToolCall, results []domain.ChatMessage) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: "system", Content: buildSystemPrompt(pc)}}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages,
		domain.ChatMessage{Role: "user", Content: userContent(text)},
		domain.ChatMessage{Role: "assistant", ToolCalls: calls},
	)
	messages = append(messages, results...)
	return append(messages, domain.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("Answer the guest's last message using the function results above. Answer in %s.", language.Name(pc.language)),
	})
}

func historyMessages(history []domain.TranscriptEntry) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history))
	for _, e := range history {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		role := "user"
		if e.Speaker == domain.SpeakerAssistant {
			role = "assistant"
		}
		out = append(out, domain.ChatMessage{Role: role, Content: text})
	}
	return out
}

// userContent stands in for media-only messages.
func userContent(text string) string {
	if strings.TrimSpace(text) == "" {
		return "(the guest sent an attachment without text)"
	}
	return text
}

func buildSystemPrompt(pc promptContext) string {
	var b strings.Builder
	b.WriteString(languageInstruction(pc.language))
	b.WriteString("\n\n")
	if pc.pinnedPrompt != "" {
		b.WriteString(pc.pinnedPrompt)
	} else {
		b.WriteString(fallbackPrompt)
	}

	b.WriteString("\n\nToday is ")
	b.WriteString(pc.today.Format("Monday, 2006-01-02"))
	b.WriteString(".")

	b.WriteString("\n\nSender: ")
	if pc.user != nil {
		fmt.Fprintf(&b, "staff member %s (user id %d).", pc.user.FullName(), pc.user.ID)
	} else {
		b.WriteString("guest.")
	}
	if pc.state != "" && pc.state != domain.StateIdle {
		fmt.Fprintf(&b, "\nConversation state: %s.", pc.state)
	}

	if hint := bookingHint(pc.booking, pc.missing); hint != "" {
		b.WriteString("\n\n")
		b.WriteString(hint)
	}

	b.WriteString("\n\nAvailable functions:")
	b.WriteString("\n- check_room_availability(startDate, endDate, roomType): use it whenever the sender asks about free rooms. Never say you have no access.")
	b.WriteString("\n- create_room_reservation(checkInDate, checkOutDate, guestName, roomType, categoryId): book a room from the last availability check.")
	if pc.user != nil {
		b.WriteString("\n- get_requests(status): the staff member's requests.")
		b.WriteString("\n- get_todos(status): the staff member's to-dos.")
	}
	return b.String()
}

// bookingHint summarizes a booking in progress so the model asks only for
// what is still missing.
func bookingHint(slots domain.BookingSlots, missing []string) string {
	if slots.IsEmpty() {
		return ""
	}
	var known []string
	add := func(label, v string) {
		if v != "" {
			known = append(known, label+"="+v)
		}
	}
	add("checkIn", slots.CheckInDate)
	add("checkOut", slots.CheckOutDate)
	add("guestName", slots.GuestName)
	add("roomType", string(slots.RoomType))
	add("room", slots.RoomName)

	var b strings.Builder
	b.WriteString("Booking in progress")
	if len(known) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(known, ", "))
	}
	b.WriteString(".")
	if len(missing) > 0 {
		b.WriteString(" Still missing: ")
		b.WriteString(strings.Join(missing, ", "))
		b.WriteString(".")
	}
	if snap := slots.LastAvailabilityCheck; snap != nil && len(snap.Rooms) > 0 {
		names := make([]string, 0, len(snap.Rooms))
		for _, r := range snap.Rooms {
			names = append(names, fmt.Sprintf("%s (categoryId %d, %s)", r.Name, r.CategoryID, r.Type))
		}
		fmt.Fprintf(&b, " Rooms offered for %s to %s: %s.", snap.StartDate, snap.EndDate, strings.Join(names, "; "))
	}
	return b.String()
}

func languageInstruction(c language.Code) string {
	switch c {
	case language.German:
		return "WICHTIG: Antworte IMMER auf Deutsch, unabhängig von der Sprache dieser Anweisungen."
	case language.English:
		return "IMPORTANT: Always answer in English, regardless of the language of these instructions."
	default:
		return "IMPORTANTE: Responde SIEMPRE en español, sin importar el idioma de estas instrucciones."
	}
}
