// Package statemachine runs the keyword flows and multi-turn ladders of a
// conversation: request and task creation, and guest identification.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
	"hostel-concierge/internal/logger"
)

// ConversationStore persists state transitions.
type ConversationStore interface {
	Update(ctx context.Context, conv domain.Conversation, patch domain.Patch) (domain.Conversation, error)
}

// Directory resolves staff members.
type Directory interface {
	FindUserByNameOrID(ctx context.Context, term string, branchID int) (*domain.User, error)
}

// Artifacts creates and lists staff requests and tasks.
type Artifacts interface {
	CreateRequest(ctx context.Context, a domain.NewArtifact) (int, error)
	CreateTask(ctx context.Context, a domain.NewArtifact) (int, error)
	AttachMedia(ctx context.Context, kind domain.ArtifactKind, id int, m domain.Media) (int, error)
	UpdateDescription(ctx context.Context, kind domain.ArtifactKind, id int, description string) error
	ListRequests(ctx context.Context, userID, branchID int) ([]domain.Artifact, error)
	ListTasks(ctx context.Context, userID, branchID int) ([]domain.Artifact, error)
}

// Guests looks up guest reservations.
type Guests interface {
	FindActiveReservationByPhone(ctx context.Context, phone string, branchID int) (*domain.Reservation, error)
	FindReservationsByDetails(ctx context.Context, q domain.DetailsQuery) ([]domain.Reservation, error)
}

// Media downloads inbound attachments.
type Media interface {
	Download(ctx context.Context, ref string) (domain.Media, error)
}

// Input classifies a message for the transition table.
type Input int

const (
	InputText Input = iota
	InputListRequests
	InputListTodos
	InputCreateRequest
	InputCreateTodo
	InputCode
	InputPincode
)

var keywords = map[string]Input{
	"requests": InputListRequests,
	"todos":    InputListTodos,
	"to do's":  InputListTodos,
	"to dos":   InputListTodos,
	"request":  InputCreateRequest,
	"todo":     InputCreateTodo,
	"pin":      InputPincode,
	"pincode":  InputPincode,
	"pin code": InputPincode,
	"code":     InputCode,
	"código":   InputCode,
	"codigo":   InputCode,
	"password": InputCode,
	"verloren": InputCode,
	"lost":     InputCode,
	"perdido":  InputCode,
	"acceso":   InputCode,
}

// Classify maps an exact keyword (trimmed, case-insensitive) to its input
// class. Everything else is InputText.
func Classify(text string) Input {
	if in, ok := keywords[strings.ToLower(strings.TrimSpace(text))]; ok {
		return in
	}
	return InputText
}

// Routes reported in Outcome.Route.
const (
	RouteListRequests  = "list_requests"
	RouteListTodos     = "list_todos"
	RouteStartRequest  = "start_request"
	RouteStartTask     = "start_task"
	RouteGuestLookup   = "guest_lookup"
	RouteCreation      = "creation"
	RouteIdentifying   = "identification"
	RouteUnknownState  = "unknown_state"
	RouteErrorRecovery = "error_recovery"
)

// Turn is one inbound message as seen by the machine.
type Turn struct {
	Conversation domain.Conversation
	Text         string
	Language     language.Code
	User         *domain.User
	MediaRef     string
}

// Outcome is the machine's answer to a Turn. Handled is false when the
// conversation is idle and the message is not a keyword.
type Outcome struct {
	Handled      bool
	Reply        string
	Route        string
	Conversation domain.Conversation
}

type action func(m *Machine, ctx context.Context, t Turn) (Outcome, error)

type transitionKey struct {
	kind  domain.StateKind
	input Input
}

// transitions maps (state kind, input class) to the action that produces the
// next state. A missing entry falls back to the InputText entry of the kind.
var transitions = map[transitionKey]action{
	{domain.KindIdle, InputListRequests}:  (*Machine).listRequests,
	{domain.KindIdle, InputListTodos}:     (*Machine).listTodos,
	{domain.KindIdle, InputCreateRequest}: startCreation(domain.ArtifactRequest),
	{domain.KindIdle, InputCreateTodo}:    startCreation(domain.ArtifactTask),
	{domain.KindIdle, InputCode}:          startIdentification(domain.RequestTypeCode),
	{domain.KindIdle, InputPincode}:       startIdentification(domain.RequestTypePincode),

	{domain.KindCreation, InputListRequests}:       (*Machine).listRequests,
	{domain.KindCreation, InputListTodos}:          (*Machine).listTodos,
	{domain.KindCreation, InputText}:               (*Machine).continueCreation,
	{domain.KindIdentification, InputListRequests}: (*Machine).listRequests,
	{domain.KindIdentification, InputListTodos}:    (*Machine).listTodos,
	{domain.KindIdentification, InputText}:         (*Machine).continueIdentification,

	{domain.KindUnknown, InputText}: (*Machine).resetUnknown,
}

// Machine executes transitions against the conversation store.
type Machine struct {
	store     ConversationStore
	directory Directory
	artifacts Artifacts
	guests    Guests
	media     Media
	log       logger.Logger
}

// New returns a Machine wired to its collaborators.
func New(store ConversationStore, directory Directory, artifacts Artifacts, guests Guests, media Media, log logger.Logger) (*Machine, error) {
	if store == nil {
		return nil, errors.New("statemachine: store must not be nil")
	}
	if directory == nil {
		return nil, errors.New("statemachine: directory must not be nil")
	}
	if artifacts == nil {
		return nil, errors.New("statemachine: artifacts must not be nil")
	}
	if guests == nil {
		return nil, errors.New("statemachine: guests must not be nil")
	}
	if media == nil {
		return nil, errors.New("statemachine: media must not be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Machine{store: store, directory: directory, artifacts: artifacts, guests: guests, media: media, log: log}, nil
}

// Handle runs one turn. Collaborator failures and unknown states reset the
// conversation to idle and still produce a reply; the returned error is
// non-nil only when that reset could not be stored.
func (m *Machine) Handle(ctx context.Context, t Turn) (Outcome, error) {
	kind := t.Conversation.State.Kind()
	input := Classify(t.Text)

	act, ok := transitions[transitionKey{kind, input}]
	if !ok {
		act, ok = transitions[transitionKey{kind, InputText}]
	}
	if !ok {
		return Outcome{Conversation: t.Conversation}, nil
	}

	out, err := act(m, ctx, t)
	var rerr *resetError
	switch {
	case err == nil:
		out.Handled = true
		return out, nil
	case errors.As(err, &rerr):
		return out, err
	case errors.Is(err, domain.ErrLadderContextMissing), errors.Is(err, domain.ErrUnknownState):
		return m.resetUnknown(ctx, t)
	}
	m.log.WithError(err).Error("state machine turn failed, resetting", map[string]interface{}{
		"phone":     t.Conversation.PhoneNumber,
		"branch_id": t.Conversation.BranchID,
		"state":     string(t.Conversation.State),
	})
	return m.reset(ctx, t, RouteErrorRecovery, language.Text(t.Language, language.KeyError))
}

func (m *Machine) resetUnknown(ctx context.Context, t Turn) (Outcome, error) {
	m.log.Warn("unknown conversation state, resetting", map[string]interface{}{
		"phone":     t.Conversation.PhoneNumber,
		"branch_id": t.Conversation.BranchID,
		"state":     string(t.Conversation.State),
	})
	return m.reset(ctx, t, RouteUnknownState, language.Text(t.Language, language.KeyUnknownState))
}

// reset is the safety valve: idle state, every context region cleared.
func (m *Machine) reset(ctx context.Context, t Turn, route, reply string) (Outcome, error) {
	out := Outcome{Handled: true, Reply: reply, Route: route, Conversation: t.Conversation}
	conv, err := m.store.Update(ctx, t.Conversation, domain.ResetPatch())
	if err != nil {
		out.Conversation.Apply(domain.ResetPatch())
		return out, &resetError{err: err}
	}
	out.Conversation = conv
	return out, nil
}

// resetError reports that the safety valve itself could not be stored.
type resetError struct{ err error }

func (e *resetError) Error() string { return "statemachine: reset: " + e.err.Error() }
func (e *resetError) Unwrap() error { return e.err }

func (m *Machine) update(ctx context.Context, t Turn, p domain.Patch) (domain.Conversation, error) {
	conv, err := m.store.Update(ctx, t.Conversation, p)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("statemachine: update: %w", err)
	}
	return conv, nil
}

// finishPatch ends a ladder without touching the booking region.
func finishPatch() domain.Patch {
	idle := domain.StateIdle
	return domain.Patch{
		State:          &idle,
		Identification: domain.Clear[domain.IdentificationLadder](),
		Creation:       domain.Clear[domain.CreationLadder](),
	}
}
