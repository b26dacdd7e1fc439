package domain

import (
	"strings"
	"time"
)

// Role is a staff role assignment.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User is a staff member known to the directory.
type User struct {
	ID          int    `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Roles       []Role `json:"roles,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PrimaryRoleID returns the first assigned role, if any.
func (u User) PrimaryRoleID() *int {
	if len(u.Roles) == 0 {
		return nil
	}
	id := u.Roles[0].ID
	return &id
}

// Reservation is a guest reservation as exposed by the property backend.
// Payment and check-in links arrive precomputed.
type Reservation struct {
	ID                     int        `json:"id"`
	GuestName              string     `json:"guestName"`
	GuestPhone             string     `json:"guestPhone,omitempty"`
	GuestNationality       string     `json:"guestNationality,omitempty"`
	GuestBirthDate         *time.Time `json:"guestBirthDate,omitempty"`
	CheckInDate            time.Time  `json:"checkInDate"`
	CheckOutDate           time.Time  `json:"checkOutDate"`
	Status                 string     `json:"status"`
	PaymentStatus          string     `json:"paymentStatus"`
	OnlineCheckInCompleted bool       `json:"onlineCheckInCompleted"`
	LobbyReservationID     string     `json:"lobbyReservationId,omitempty"`
	DoorPin                string     `json:"doorPin,omitempty"`
	TTLockPassword         string     `json:"ttlLockPassword,omitempty"`
	PaymentLink            string     `json:"paymentLink,omitempty"`
	CheckInLink            string     `json:"checkInLink,omitempty"`
	CategoryID             int        `json:"categoryId,omitempty"`
	RoomName               string     `json:"roomName,omitempty"`
}

// NeedsPayment reports whether the reservation is unpaid.
func (r Reservation) NeedsPayment() bool {
	return r.PaymentStatus != "paid"
}

// AccessCode returns the guest's code by priority: lobby reservation id, door
// pin, lock password.
func (r Reservation) AccessCode() string {
	switch {
	case r.LobbyReservationID != "":
		return r.LobbyReservationID
	case r.DoorPin != "":
		return r.DoorPin
	default:
		return r.TTLockPassword
	}
}

// DetailsQuery is the secondary guest lookup used when the phone is unknown.
type DetailsQuery struct {
	FirstName   string
	LastName    string
	Nationality string
	BirthDate   *time.Time
	BranchID    int
}

// Artifact is a staff request or task as listed back to its owner.
type Artifact struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// NewArtifact is the input for creating a request or task.
type NewArtifact struct {
	Kind          ArtifactKind
	Title         string
	Description   string
	Status        string
	RequesterID   int
	ResponsibleID int
	BranchID      int
}

// Media is a downloaded inbound attachment.
type Media struct {
	Data     []byte
	FileName string
	MimeType string
}

// BookingData is the snapshot handed to booking execution.
type BookingData struct {
	CheckInDate  string   `json:"checkInDate"`
	CheckOutDate string   `json:"checkOutDate"`
	GuestName    string   `json:"guestName"`
	RoomType     RoomType `json:"roomType"`
	CategoryID   int      `json:"categoryId,omitempty"`
	RoomName     string   `json:"roomName,omitempty"`
}

// BookingRequest carries BookingData plus the caller identity.
type BookingRequest struct {
	Data          BookingData
	UserID        *int
	RoleID        *int
	BranchID      int
	PhoneFallback string
}

// BookingResult is what booking execution reports back.
type BookingResult struct {
	ReservationID int    `json:"reservationId"`
	Message       string `json:"message"`
	PaymentLink   string `json:"paymentLink,omitempty"`
}

// AvailabilityQuery asks the backend for free rooms.
type AvailabilityQuery struct {
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate,omitempty"`
	RoomType  RoomType `json:"roomType,omitempty"`
	BranchID  int      `json:"branchId"`
}
