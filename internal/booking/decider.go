package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostel-concierge/internal/domain"
)

// GuestNamePlaceholder stands in for a guest name that was never given.
const GuestNamePlaceholder = "Gast"

// Slot names reported in Decision.Missing.
const (
	SlotCheckInDate  = "checkInDate"
	SlotCheckOutDate = "checkOutDate"
	SlotGuestName    = "guestName"
	SlotRoomType     = "roomType"
	SlotCategoryID   = "categoryId"
)

// ConversationStore persists the booking region of a conversation.
type ConversationStore interface {
	Update(ctx context.Context, conv domain.Conversation, patch domain.Patch) (domain.Conversation, error)
}

// PendingReservations finds a reservation created for the sender but not yet
// confirmed.
type PendingReservations interface {
	FindPotentialReservation(ctx context.Context, phone string, branchID int) (*domain.Reservation, error)
}

// Decision is the outcome of one evaluation.
type Decision struct {
	ShouldBook   bool
	Trigger      bool
	Booking      domain.BookingSlots
	Data         *domain.BookingData
	Missing      []string
	Conversation domain.Conversation
}

// Decider merges message slots into the conversation and decides whether a
// reservation should be executed now.
type Decider struct {
	store     ConversationStore
	pending   PendingReservations
	extractor *Extractor
	now       func() time.Time
}

// Option configures a Decider.
type Option func(*Decider)

// WithClock sets the clock used for date parsing.
func WithClock(now func() time.Time) Option {
	return func(d *Decider) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDecider returns a Decider. pending may be nil when the backend has no
// notion of unconfirmed reservations.
func NewDecider(store ConversationStore, pending PendingReservations, opts ...Option) (*Decider, error) {
	if store == nil {
		return nil, errors.New("booking: store must not be nil")
	}
	d := &Decider{store: store, pending: pending, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.extractor = NewExtractor(d.now)
	return d, nil
}

// Evaluate runs one message through slot extraction and the readiness check.
// Changed slots are written to the booking region only.
func (d *Decider) Evaluate(ctx context.Context, conv domain.Conversation, text string) (Decision, error) {
	stored := conv.Booking()
	slots := stored

	if d.pending != nil {
		res, err := d.pending.FindPotentialReservation(ctx, conv.PhoneNumber, conv.BranchID)
		if err != nil {
			return Decision{}, fmt.Errorf("booking: find potential reservation: %w", err)
		}
		if res != nil {
			slots = slots.Fill(seedFrom(*res))
		}
	}

	ex := d.extractor.Extract(text, slots)
	trigger := ex.Intent || (ex.Confirmation && (slots.CheckInDate != "" || slots.LastAvailabilityCheck != nil))

	if !trigger && slots.IsEmpty() {
		return Decision{Conversation: conv, Missing: missing(slots)}, nil
	}

	merged := slots.Merge(ex.Slots)
	if trigger && merged.CheckInDate != "" && merged.CheckOutDate == "" {
		merged.CheckOutDate = d.defaultCheckOut(merged)
	}
	if m := d.resolveRoom(text, merged); m != nil {
		merged.RoomName = m.Name
		merged.CategoryID = m.CategoryID
		if m.Type != "" {
			merged.RoomType = m.Type
		}
	}

	if !equalSlots(merged, stored) {
		updated, err := d.store.Update(ctx, conv, domain.Patch{Booking: domain.Set(merged)})
		if err != nil {
			return Decision{}, fmt.Errorf("booking: persist slots: %w", err)
		}
		conv = updated
	}

	dec := Decision{
		Trigger:      trigger,
		Booking:      merged,
		Missing:      missing(merged),
		Conversation: conv,
	}
	if trigger && Ready(merged) {
		dec.ShouldBook = true
		dec.Data = bookingData(merged)
	}
	return dec, nil
}

// resolveRoom re-picks a room only when the message names one. The category
// fallback applies while no category was chosen yet.
func (d *Decider) resolveRoom(text string, b domain.BookingSlots) *RoomMatch {
	if b.CategoryID != 0 {
		return MatchRoom(text, b.LastAvailabilityCheck)
	}
	return ResolveRoom(text, b.LastAvailabilityCheck, b.RoomType)
}

// defaultCheckOut uses the end of the last availability query, else one night.
func (d *Decider) defaultCheckOut(b domain.BookingSlots) string {
	if snap := b.LastAvailabilityCheck; snap != nil && snap.EndDate != "" && after(snap.EndDate, b.CheckInDate, d.now()) {
		return snap.EndDate
	}
	return addNights(b.CheckInDate, 1, d.now())
}

// Ready reports whether b carries everything booking execution needs. The
// guest name is optional; a category is required only once a room was named.
func Ready(b domain.BookingSlots) bool {
	return b.CheckInDate != "" && b.CheckOutDate != "" && b.RoomType != "" &&
		(b.CategoryID != 0 || b.RoomName == "")
}

func missing(b domain.BookingSlots) []string {
	var out []string
	if b.CheckInDate == "" {
		out = append(out, SlotCheckInDate)
	}
	if b.CheckOutDate == "" {
		out = append(out, SlotCheckOutDate)
	}
	if b.GuestName == "" {
		out = append(out, SlotGuestName)
	}
	if b.RoomType == "" {
		out = append(out, SlotRoomType)
	}
	if b.RoomName != "" && b.CategoryID == 0 {
		out = append(out, SlotCategoryID)
	}
	return out
}

func bookingData(b domain.BookingSlots) *domain.BookingData {
	name := b.GuestName
	if name == "" {
		name = GuestNamePlaceholder
	}
	return &domain.BookingData{
		CheckInDate:  b.CheckInDate,
		CheckOutDate: b.CheckOutDate,
		GuestName:    name,
		RoomType:     b.RoomType,
		CategoryID:   b.CategoryID,
		RoomName:     b.RoomName,
	}
}

func seedFrom(r domain.Reservation) domain.BookingSlots {
	s := domain.BookingSlots{
		GuestName:  r.GuestName,
		CategoryID: r.CategoryID,
		RoomName:   r.RoomName,
	}
	if !r.CheckInDate.IsZero() {
		s.CheckInDate = r.CheckInDate.Format(isoLayout)
	}
	if !r.CheckOutDate.IsZero() {
		s.CheckOutDate = r.CheckOutDate.Format(isoLayout)
	}
	return s
}

func equalSlots(a, b domain.BookingSlots) bool {
	sa, sb := a.LastAvailabilityCheck, b.LastAvailabilityCheck
	a.LastAvailabilityCheck, b.LastAvailabilityCheck = nil, nil
	return a == b && sa == sb
}
