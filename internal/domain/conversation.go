package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrLadderContextMissing is returned when a ladder state has no matching
	// context record.
	ErrLadderContextMissing = errors.New("domain: ladder context missing")
	// ErrUnknownState is returned for state values outside the enum.
	ErrUnknownState = errors.New("domain: unknown conversation state")
)

// Conversation is the persistent dialogue record for one (phone, branch) pair.
type Conversation struct {
	ID            string
	PhoneNumber   string
	BranchID      int
	State         State
	Context       Context
	UserID        *int
	LastMessageAt time.Time
	Version       int64
}

// ConversationKey is the identity used for storage and locking.
func ConversationKey(phone string, branchID int) string {
	return phone + "#" + strconv.Itoa(branchID)
}

// Key returns the (phone, branch) identity of c.
func (c Conversation) Key() string {
	return ConversationKey(c.PhoneNumber, c.BranchID)
}

// Booking returns a copy of the booking region, or the zero value.
func (c Conversation) Booking() BookingSlots {
	if c.Context.Booking == nil {
		return BookingSlots{}
	}
	return *c.Context.Booking
}

// ActiveLadder returns the ladder record owned by the current state. Idle
// conversations return (nil, nil); ladder data left over in idle is ignored.
// The returned record is a copy with missing discriminators defaulted from
// the state.
func (c Conversation) ActiveLadder() (Ladder, error) {
	switch c.State.Kind() {
	case KindIdle:
		return nil, nil
	case KindCreation:
		if c.Context.Creation == nil {
			return nil, fmt.Errorf("%w: %s", ErrLadderContextMissing, c.State)
		}
		cl := *c.Context.Creation
		if cl.Step == "" {
			cl.Step = StepWaitingForResponsible
		}
		return &cl, nil
	case KindIdentification:
		rt, step, _ := c.State.Identification()
		if c.Context.Identification == nil {
			return nil, fmt.Errorf("%w: %s", ErrLadderContextMissing, c.State)
		}
		il := *c.Context.Identification
		if il.Step == "" {
			il.Step = step
		}
		if il.RequestType == "" {
			il.RequestType = rt
		}
		if il.Step != step || il.RequestType != rt {
			return nil, fmt.Errorf("%w: state %s holds step %s/%s", ErrLadderContextMissing, c.State, il.RequestType, il.Step)
		}
		return &il, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownState, c.State)
}

// Region is a field-level update of one context region. The zero value leaves
// the region untouched.
type Region[T any] struct {
	set   bool
	value *T
}

// Set replaces the region with v.
func Set[T any](v T) Region[T] {
	return Region[T]{set: true, value: &v}
}

// Clear removes the region.
func Clear[T any]() Region[T] {
	return Region[T]{set: true}
}

// IsSet reports whether the region is part of the patch.
func (r Region[T]) IsSet() bool { return r.set }

// Value returns the new value, nil when the region is cleared.
func (r Region[T]) Value() *T { return r.value }

// Patch is a field-level update of a Conversation.
type Patch struct {
	State          *State
	UserID         *int
	Booking        Region[BookingSlots]
	Identification Region[IdentificationLadder]
	Creation       Region[CreationLadder]
}

// ResetPatch returns the conversation to idle with every region cleared.
func ResetPatch() Patch {
	idle := StateIdle
	return Patch{
		State:          &idle,
		Booking:        Clear[BookingSlots](),
		Identification: Clear[IdentificationLadder](),
		Creation:       Clear[CreationLadder](),
	}
}

// EnterIdentification moves to the identification state matching il.
func EnterIdentification(il IdentificationLadder) Patch {
	s, _ := IdentificationState(il.RequestType, il.Step)
	return Patch{State: &s, Identification: Set(il)}
}

// EnterCreation moves to the creation state for kind.
func EnterCreation(kind ArtifactKind, cl CreationLadder) Patch {
	s := CreationState(kind)
	return Patch{State: &s, Creation: Set(cl)}
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
	return p.State == nil && p.UserID == nil && !p.Booking.IsSet() &&
		!p.Identification.IsSet() && !p.Creation.IsSet()
}

// Apply mutates c with p.
func (c *Conversation) Apply(p Patch) {
	if p.State != nil {
		c.State = *p.State
	}
	if p.UserID != nil {
		id := *p.UserID
		c.UserID = &id
	}
	if p.Booking.IsSet() {
		c.Context.Booking = p.Booking.Value()
	}
	if p.Identification.IsSet() {
		c.Context.Identification = p.Identification.Value()
	}
	if p.Creation.IsSet() {
		c.Context.Creation = p.Creation.Value()
	}
}
