package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostel-concierge/internal/booking"
	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
	"hostel-concierge/internal/lock"
	"hostel-concierge/internal/logger"
	"hostel-concierge/internal/metrics"
	"hostel-concierge/internal/phone"
	"hostel-concierge/internal/statemachine"
)

const (
	defaultLockWait = 10 * time.Second
	maxMessageLen   = 4096
)

// Routes reported in Reply.Route besides the state machine's own.
const (
	RouteTourProvider = "tour_provider"
	RouteBooking      = "booking"
	RouteAssistant    = "assistant"
	RouteAIError      = "ai_error"
	RouteError        = statemachine.RouteErrorRecovery
)

// ConversationStore loads and patches conversations.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, phone string, branchID int, userID *int) (domain.Conversation, error)
	Update(ctx context.Context, conv domain.Conversation, patch domain.Patch) (domain.Conversation, error)
}

// Transcript records exchanged messages and replays them as history.
type Transcript interface {
	SaveExchange(ctx context.Context, key, guestText, reply string) error
	RecentMessages(ctx context.Context, key string, limit int) ([]domain.TranscriptEntry, error)
}

// Directory identifies staff senders.
type Directory interface {
	FindUserByPhone(ctx context.Context, phone string, branchID int) (*domain.User, error)
}

// TourProviders handles replies of external tour providers.
type TourProviders interface {
	HandleReply(ctx context.Context, phone, text string, branchID int) (reply string, handled bool, err error)
}

// StateMachine runs keyword commands and multi-turn ladders.
type StateMachine interface {
	Handle(ctx context.Context, t statemachine.Turn) (statemachine.Outcome, error)
}

// BookingDecider accumulates booking slots and decides when to book.
type BookingDecider interface {
	Evaluate(ctx context.Context, conv domain.Conversation, text string) (booking.Decision, error)
}

// Bookings executes reservations and availability queries.
type Bookings interface {
	CreateRoomReservation(ctx context.Context, req domain.BookingRequest) (domain.BookingResult, error)
	CheckAvailability(ctx context.Context, q domain.AvailabilityQuery) (domain.AvailabilitySnapshot, error)
}

// Assistant produces the free-form reply when nothing deterministic applies.
type Assistant interface {
	GenerateResponse(ctx context.Context, in AssistantInput) (string, error)
}

// AssistantInput is everything the assistant knows about the turn.
type AssistantInput struct {
	Conversation domain.Conversation
	Text         string
	Language     language.Code
	User         *domain.User
	Missing      []string
}

// Inbound is one message received from the messaging channel.
type Inbound struct {
	Phone    string
	Text     string
	BranchID int
	MediaRef string
	GroupID  string
}

// Reply is the text to send back. GroupID echoes the inbound group so the
// channel can answer in the same thread.
type Reply struct {
	Text     string
	Language language.Code
	Route    string
	GroupID  string
}

// Dependencies groups the collaborators of an Orchestrator.
type Dependencies struct {
	Store      ConversationStore
	Transcript Transcript
	Directory  Directory
	Tours      TourProviders
	Machine    StateMachine
	Decider    BookingDecider
	Bookings   Bookings
	Assistant  Assistant
	Locker     lock.Locker
	Logger     logger.Logger
}

// Orchestrator runs one inbound message through the dialogue pipeline.
type Orchestrator struct {
	store      ConversationStore
	transcript Transcript
	directory  Directory
	tours      TourProviders
	machine    StateMachine
	decider    BookingDecider
	bookings   Bookings
	assistant  Assistant
	locker     lock.Locker
	log        logger.Logger

	defaultLang language.Code
	lockWait    time.Duration
	now         func() time.Time
}

type OrchestratorOption func(*Orchestrator)

// WithDefaultLanguage sets the language used when neither message nor phone
// decides.
func WithDefaultLanguage(c language.Code) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != "" {
			o.defaultLang = c
		}
	}
}

// WithLockWait bounds how long a turn waits for the conversation lock.
func WithLockWait(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.lockWait = d
		}
	}
}

// WithClock sets the clock used to resolve relative booking dates.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(d Dependencies, opts ...OrchestratorOption) (*Orchestrator, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("usecase: conversation store must not be nil")
	case d.Directory == nil:
		return nil, errors.New("usecase: directory must not be nil")
	case d.Tours == nil:
		return nil, errors.New("usecase: tour providers must not be nil")
	case d.Machine == nil:
		return nil, errors.New("usecase: state machine must not be nil")
	case d.Decider == nil:
		return nil, errors.New("usecase: booking decider must not be nil")
	case d.Bookings == nil:
		return nil, errors.New("usecase: bookings must not be nil")
	case d.Assistant == nil:
		return nil, errors.New("usecase: assistant must not be nil")
	case d.Locker == nil:
		return nil, errors.New("usecase: locker must not be nil")
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Orchestrator{
		store:       d.Store,
		transcript:  d.Transcript,
		directory:   d.Directory,
		tours:       d.Tours,
		machine:     d.Machine,
		decider:     d.Decider,
		bookings:    d.Bookings,
		assistant:   d.Assistant,
		locker:      d.Locker,
		log:         log,
		defaultLang: language.Default,
		lockWait:    defaultLockWait,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// turn carries per-message state through the pipeline.
type turn struct {
	in   Inbound
	lang language.Code
	user *domain.User
	conv domain.Conversation
	log  logger.Logger
}

// Handle produces the reply for one inbound message. Errors are returned only
// for invalid input and lock contention; every other failure yields a
// localized reply.
func (o *Orchestrator) Handle(ctx context.Context, in Inbound) (Reply, error) {
	started := time.Now()
	in.Text = strings.TrimSpace(in.Text)
	in.MediaRef = strings.TrimSpace(in.MediaRef)
	in.Phone = phone.Normalize(in.Phone)
	if in.Phone == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_phone", nil)
	}
	if in.BranchID <= 0 {
		return Reply{}, newError(ErrorInvalidInput, "invalid_branch", nil)
	}
	if in.Text == "" && in.MediaRef == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(in.Text) > maxMessageLen {
		return Reply{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	t := &turn{
		in:   in,
		lang: language.Resolve(in.Text, in.Phone, o.defaultLang),
		log:  o.log.With(map[string]interface{}{"phone": in.Phone, "branch_id": in.BranchID}),
	}

	user, err := o.directory.FindUserByPhone(ctx, in.Phone, in.BranchID)
	if err != nil {
		t.log.WithError(err).Error("staff lookup failed", nil)
		return o.finish(ctx, t, started, RouteError, language.Text(t.lang, language.KeyError), err), nil
	}
	t.user = user

	release, err := o.acquire(ctx, domain.ConversationKey(in.Phone, in.BranchID))
	if err != nil {
		metrics.TurnFailures.WithLabelValues(RouteError, string(ErrorConflict)).Inc()
		return Reply{}, newError(ErrorConflict, "conversation_locked", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			t.log.WithError(rerr).Warn("release conversation lock", nil)
		}
	}()

	var userID *int
	if user != nil {
		userID = &user.ID
	}
	conv, err := o.store.GetOrCreate(ctx, in.Phone, in.BranchID, userID)
	if err != nil {
		t.log.WithError(err).Error("load conversation failed", nil)
		return o.finish(ctx, t, started, RouteError, language.Text(t.lang, language.KeyError), err), nil
	}
	t.conv = conv
	t.log = t.log.With(map[string]interface{}{"state": string(conv.State)})

	route, text, err := o.run(ctx, t)
	return o.finish(ctx, t, started, route, text, err), nil
}

func (o *Orchestrator) acquire(ctx context.Context, key string) (lock.Release, error) {
	wctx, cancel := context.WithTimeout(ctx, o.lockWait)
	defer cancel()
	release, err := o.locker.Acquire(wctx, key)
	if err != nil {
		return nil, fmt.Errorf("usecase: acquire %s: %w", key, err)
	}
	return release, nil
}

// run walks the pipeline; the first step that answers wins. A non-nil error
// is informational: route and text already hold the reply.
func (o *Orchestrator) run(ctx context.Context, t *turn) (route, text string, err error) {
	reply, handled, err := o.tours.HandleReply(ctx, t.in.Phone, t.in.Text, t.in.BranchID)
	if err != nil {
		return o.resetTurn(ctx, t, fmt.Errorf("tour provider: %w", err))
	}
	if handled {
		return RouteTourProvider, reply, nil
	}

	out, err := o.machine.Handle(ctx, statemachine.Turn{
		Conversation: t.conv,
		Text:         t.in.Text,
		Language:     t.lang,
		User:         t.user,
		MediaRef:     t.in.MediaRef,
	})
	if err != nil {
		t.log.WithError(err).Error("state machine could not store reset", map[string]interface{}{"route": out.Route})
	}
	if out.Handled {
		return out.Route, out.Reply, err
	}
	t.conv = out.Conversation

	dec, err := o.decider.Evaluate(ctx, t.conv, t.in.Text)
	if err != nil {
		return o.resetTurn(ctx, t, err)
	}
	t.conv = dec.Conversation
	if dec.ShouldBook && dec.Data != nil {
		if text, ok := o.book(ctx, t, *dec.Data); ok {
			return RouteBooking, text, nil
		}
	}

	answer, err := o.assistant.GenerateResponse(ctx, AssistantInput{
		Conversation: t.conv,
		Text:         t.in.Text,
		Language:     t.lang,
		User:         t.user,
		Missing:      dec.Missing,
	})
	if err != nil {
		t.log.WithError(err).Error("assistant failed", map[string]interface{}{"route": RouteAIError})
		return RouteAIError, language.Text(t.lang, language.KeyAIError), err
	}
	return RouteAssistant, answer, nil
}

// book executes a ready booking. ok is false when execution failed and the
// turn should fall through to the assistant.
func (o *Orchestrator) book(ctx context.Context, t *turn, data domain.BookingData) (string, bool) {
	res, err := o.executeBooking(ctx, t, data)
	metrics.BookingAttempts.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		t.log.WithError(err).Warn("booking execution failed, falling through", map[string]interface{}{"route": RouteBooking})
		return "", false
	}

	if conv, err := o.store.Update(ctx, t.conv, domain.Patch{Booking: domain.Clear[domain.BookingSlots]()}); err != nil {
		t.log.WithError(err).Warn("clear booking context", nil)
	} else {
		t.conv = conv
	}
	t.log.Info("reservation created", map[string]interface{}{"route": RouteBooking, "reservation_id": res.ReservationID})
	return bookingReply(t.lang, res), true
}

func (o *Orchestrator) executeBooking(ctx context.Context, t *turn, data domain.BookingData) (domain.BookingResult, error) {
	data, err := resolveDates(data, o.now())
	if err != nil {
		return domain.BookingResult{}, err
	}
	req := domain.BookingRequest{Data: data, BranchID: t.in.BranchID, PhoneFallback: t.in.Phone}
	if t.user != nil {
		req.UserID = &t.user.ID
		req.RoleID = t.user.PrimaryRoleID()
	}
	res, err := o.bookings.CreateRoomReservation(ctx, req)
	if err != nil {
		return domain.BookingResult{}, fmt.Errorf("usecase: create reservation: %w", err)
	}
	return res, nil
}

func resolveDates(data domain.BookingData, now time.Time) (domain.BookingData, error) {
	in, ok := booking.AbsoluteDate(data.CheckInDate, now)
	if !ok {
		return data, fmt.Errorf("usecase: unresolvable check-in %q", data.CheckInDate)
	}
	out, ok := booking.AbsoluteDate(data.CheckOutDate, now)
	if !ok {
		return data, fmt.Errorf("usecase: unresolvable check-out %q", data.CheckOutDate)
	}
	data.CheckInDate, data.CheckOutDate = in, out
	return data, nil
}

func bookingReply(lang language.Code, res domain.BookingResult) string {
	text := strings.TrimSpace(res.Message)
	if text == "" {
		text = language.Text(lang, language.KeyBookingCreated, res.ReservationID)
	}
	if res.PaymentLink != "" && !strings.Contains(text, res.PaymentLink) {
		text += "\n\n" + language.Text(lang, language.KeyBookingPaymentLink, res.PaymentLink)
	}
	return text
}

// resetTurn resets the conversation to idle and answers with the generic error.
func (o *Orchestrator) resetTurn(ctx context.Context, t *turn, cause error) (string, string, error) {
	t.log.WithError(cause).Error("turn failed, resetting conversation", map[string]interface{}{"route": RouteError})
	if conv, err := o.store.Update(ctx, t.conv, domain.ResetPatch()); err != nil {
		t.log.WithError(err).Error("reset conversation failed", nil)
	} else {
		t.conv = conv
	}
	return RouteError, language.Text(t.lang, language.KeyError), cause
}

// finish records the exchange and metrics for a completed turn.
func (o *Orchestrator) finish(ctx context.Context, t *turn, started time.Time, route, text string, err error) Reply {
	metrics.ObserveTurn(route, started)
	if err != nil {
		code := ErrorInternal
		var uerr *Error
		if errors.As(err, &uerr) {
			code = uerr.Code
		}
		metrics.TurnFailures.WithLabelValues(route, string(code)).Inc()
	}
	if o.transcript != nil && t.conv.ID != "" {
		if serr := o.transcript.SaveExchange(ctx, t.conv.Key(), t.in.Text, text); serr != nil {
			t.log.WithError(serr).Warn("save transcript", nil)
		}
	}
	t.log.Info("turn handled", map[string]interface{}{"route": route})
	return Reply{Text: text, Language: t.lang, Route: route, GroupID: t.in.GroupID}
}
