package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/lock"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const testPhone = "+573001234567"

type memStore struct {
	conv       domain.Conversation
	patches    []domain.Patch
	gotUserID  *int
	getErr     error
	updateErr  error
	getCalls   int
	updateSeen int
}

func (s *memStore) GetOrCreate(_ context.Context, phone string, branchID int, userID *int) (domain.Conversation, error) {
	s.getCalls++
	s.gotUserID = userID
	if s.getErr != nil {
		return domain.Conversation{}, s.getErr
	}
	if s.conv.ID == "" {
		s.conv = domain.Conversation{ID: "c-1", PhoneNumber: phone, BranchID: branchID, State: domain.StateIdle, Version: 1}
	}
	if userID != nil {
		s.conv.UserID = userID
	}
	s.conv.LastMessageAt = fixedNow
	return s.conv, nil
}

func (s *memStore) Update(_ context.Context, conv domain.Conversation, p domain.Patch) (domain.Conversation, error) {
	s.updateSeen++
	if s.updateErr != nil {
		return domain.Conversation{}, s.updateErr
	}
	s.patches = append(s.patches, p)
	conv.Apply(p)
	conv.Version++
	s.conv = conv
	return conv, nil
}

type exchange struct {
	key, guest, reply string
}

type fakeTranscript struct {
	saved   []exchange
	recent  []domain.TranscriptEntry
	saveErr error
	readErr error
	limit   int
}

func (f *fakeTranscript) SaveExchange(_ context.Context, key, guestText, reply string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, exchange{key, guestText, reply})
	return nil
}

func (f *fakeTranscript) RecentMessages(_ context.Context, _ string, limit int) ([]domain.TranscriptEntry, error) {
	f.limit = limit
	return f.recent, f.readErr
}

type fakeDirectory struct {
	byPhone *domain.User
	byName  map[string]domain.User
	err     error
}

func (f *fakeDirectory) FindUserByPhone(context.Context, string, int) (*domain.User, error) {
	return f.byPhone, f.err
}

func (f *fakeDirectory) FindUserByNameOrID(_ context.Context, term string, _ int) (*domain.User, error) {
	u, ok := f.byName[term]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type fakeTours struct {
	reply   string
	handled bool
	err     error
	calls   int
}

func (f *fakeTours) HandleReply(context.Context, string, string, int) (string, bool, error) {
	f.calls++
	return f.reply, f.handled, f.err
}

// fakeBackend stands in for the property backend in every role.
type fakeBackend struct {
	requests []domain.Artifact
	tasks    []domain.Artifact
	listErr  error

	activeByPhone *domain.Reservation
	byDetails     []domain.Reservation
	potential     *domain.Reservation

	snapshot     domain.AvailabilitySnapshot
	availErr     error
	availQueries []domain.AvailabilityQuery

	result       domain.BookingResult
	bookErr      error
	bookRequests []domain.BookingRequest
}

func (f *fakeBackend) CreateRequest(context.Context, domain.NewArtifact) (int, error) { return 41, nil }
func (f *fakeBackend) CreateTask(context.Context, domain.NewArtifact) (int, error)    { return 42, nil }

func (f *fakeBackend) AttachMedia(context.Context, domain.ArtifactKind, int, domain.Media) (int, error) {
	return 7, nil
}

func (f *fakeBackend) UpdateDescription(context.Context, domain.ArtifactKind, int, string) error {
	return nil
}

func (f *fakeBackend) ListRequests(context.Context, int, int) ([]domain.Artifact, error) {
	return f.requests, f.listErr
}

func (f *fakeBackend) ListTasks(context.Context, int, int) ([]domain.Artifact, error) {
	return f.tasks, f.listErr
}

func (f *fakeBackend) FindActiveReservationByPhone(context.Context, string, int) (*domain.Reservation, error) {
	return f.activeByPhone, nil
}

func (f *fakeBackend) FindReservationsByDetails(context.Context, domain.DetailsQuery) ([]domain.Reservation, error) {
	return f.byDetails, nil
}

func (f *fakeBackend) FindPotentialReservation(context.Context, string, int) (*domain.Reservation, error) {
	return f.potential, nil
}

func (f *fakeBackend) Download(context.Context, string) (domain.Media, error) {
	return domain.Media{}, errors.New("no media")
}

func (f *fakeBackend) CheckAvailability(_ context.Context, q domain.AvailabilityQuery) (domain.AvailabilitySnapshot, error) {
	f.availQueries = append(f.availQueries, q)
	if f.availErr != nil {
		return domain.AvailabilitySnapshot{}, f.availErr
	}
	snap := f.snapshot
	snap.StartDate, snap.EndDate = q.StartDate, q.EndDate
	return snap, nil
}

func (f *fakeBackend) CreateRoomReservation(_ context.Context, req domain.BookingRequest) (domain.BookingResult, error) {
	f.bookRequests = append(f.bookRequests, req)
	return f.result, f.bookErr
}

type stubAssistant struct {
	answer string
	err    error
	inputs []AssistantInput
}

func (s *stubAssistant) GenerateResponse(_ context.Context, in AssistantInput) (string, error) {
	s.inputs = append(s.inputs, in)
	return s.answer, s.err
}

type countingLocker struct {
	mu       sync.Mutex
	err      error
	acquired []string
	released int
}

func (l *countingLocker) Acquire(_ context.Context, key string) (lock.Release, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
		return nil
	}, nil
}

type mockParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

type scriptedLLM struct {
	responses []domain.ChatResponse
	errs      []error
	requests  []domain.ChatRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return domain.ChatResponse{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return domain.ChatResponse{}, errors.New("no llm response configured")
	}
	return s.responses[i], nil
}
