package domain

import "time"

// RoomType is the booking category of a room offer.
type RoomType string

const (
	RoomShared  RoomType = "shared"
	RoomPrivate RoomType = "private"
)

// Context is the structured document attached to a Conversation. Each region
// is owned by one flow and is patched independently.
type Context struct {
	Booking        *BookingSlots         `json:"booking,omitempty"`
	Identification *IdentificationLadder `json:"identification,omitempty"`
	Creation       *CreationLadder       `json:"creation,omitempty"`
}

// BookingSlots holds the booking information accumulated across turns.
// Dates are ISO dates or unresolved relative tokens such as "tomorrow".
type BookingSlots struct {
	CheckInDate           string                `json:"checkInDate,omitempty"`
	CheckOutDate          string                `json:"checkOutDate,omitempty"`
	GuestName             string                `json:"guestName,omitempty"`
	RoomType              RoomType              `json:"roomType,omitempty"`
	CategoryID            int                   `json:"categoryId,omitempty"`
	RoomName              string                `json:"roomName,omitempty"`
	LastAvailabilityCheck *AvailabilitySnapshot `json:"lastAvailabilityCheck,omitempty"`
}

// AvailabilitySnapshot caches the rooms offered by the most recent
// availability query.
type AvailabilitySnapshot struct {
	StartDate string      `json:"startDate,omitempty"`
	EndDate   string      `json:"endDate,omitempty"`
	Rooms     []RoomOffer `json:"rooms"`
}

// RoomOffer is one category returned by an availability query.
type RoomOffer struct {
	Name           string   `json:"name"`
	CategoryID     int      `json:"categoryId"`
	Type           RoomType `json:"type"`
	AvailableRooms int      `json:"availableRooms,omitempty"`
	PricePerNight  float64  `json:"pricePerNight,omitempty"`
}

// IsEmpty reports whether no slot has been filled yet.
func (b BookingSlots) IsEmpty() bool {
	return b.CheckInDate == "" && b.CheckOutDate == "" && b.GuestName == "" &&
		b.RoomType == "" && b.CategoryID == 0 && b.RoomName == "" && b.LastAvailabilityCheck == nil
}

// Merge overlays the non-empty fields of o onto b. Fields are never cleared.
func (b BookingSlots) Merge(o BookingSlots) BookingSlots {
	if o.CheckInDate != "" {
		b.CheckInDate = o.CheckInDate
	}
	if o.CheckOutDate != "" {
		b.CheckOutDate = o.CheckOutDate
	}
	if o.GuestName != "" {
		b.GuestName = o.GuestName
	}
	if o.RoomType != "" {
		b.RoomType = o.RoomType
	}
	if o.CategoryID != 0 {
		b.CategoryID = o.CategoryID
	}
	if o.RoomName != "" {
		b.RoomName = o.RoomName
	}
	if o.LastAvailabilityCheck != nil {
		b.LastAvailabilityCheck = o.LastAvailabilityCheck
	}
	return b
}

// Fill copies fields of o into b only where b is still empty.
func (b BookingSlots) Fill(o BookingSlots) BookingSlots {
	if b.CheckInDate == "" {
		b.CheckInDate = o.CheckInDate
	}
	if b.CheckOutDate == "" {
		b.CheckOutDate = o.CheckOutDate
	}
	if b.GuestName == "" {
		b.GuestName = o.GuestName
	}
	if b.RoomType == "" {
		b.RoomType = o.RoomType
	}
	if b.CategoryID == 0 {
		b.CategoryID = o.CategoryID
	}
	if b.RoomName == "" {
		b.RoomName = o.RoomName
	}
	if b.LastAvailabilityCheck == nil {
		b.LastAvailabilityCheck = o.LastAvailabilityCheck
	}
	return b
}

// Ladder is implemented by the in-progress ladder records only.
type Ladder interface {
	isLadder()
}

// IdentificationLadder tracks a guest identification attempt.
type IdentificationLadder struct {
	Step                  IdentificationStep     `json:"step"`
	RequestType           RequestType            `json:"requestType"`
	CollectedData         GuestDetails           `json:"collectedData"`
	OriginalMessage       string                 `json:"originalMessage,omitempty"`
	CandidateReservations []CandidateReservation `json:"candidateReservations,omitempty"`
}

// GuestDetails is what the identification ladder collects.
type GuestDetails struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// CandidateReservation is kept for disambiguation at the birthdate step.
type CandidateReservation struct {
	ID           int       `json:"id"`
	CheckInDate  time.Time `json:"checkInDate"`
	CheckOutDate time.Time `json:"checkOutDate"`
}

// CreationLadder tracks a request or task creation attempt.
type CreationLadder struct {
	Step            CreationStep `json:"step"`
	ResponsibleID   int          `json:"responsibleId,omitempty"`
	ResponsibleName string       `json:"responsibleName,omitempty"`
}

func (*IdentificationLadder) isLadder() {}
func (*CreationLadder) isLadder()       {}
