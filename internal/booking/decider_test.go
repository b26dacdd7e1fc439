package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hostel-concierge/internal/domain"
)

type fakeStore struct {
	patches []domain.Patch
	err     error
}

func (f *fakeStore) Update(_ context.Context, conv domain.Conversation, p domain.Patch) (domain.Conversation, error) {
	if f.err != nil {
		return domain.Conversation{}, f.err
	}
	f.patches = append(f.patches, p)
	conv.Apply(p)
	conv.Version++
	return conv, nil
}

type fakePending struct {
	res *domain.Reservation
	err error
}

func (f fakePending) FindPotentialReservation(context.Context, string, int) (*domain.Reservation, error) {
	return f.res, f.err
}

func newTestDecider(t *testing.T, store ConversationStore, pending PendingReservations) *Decider {
	t.Helper()
	d, err := NewDecider(store, pending, WithClock(fixedClock))
	require.NoError(t, err)
	return d
}

func conversationWith(b *domain.BookingSlots) domain.Conversation {
	return domain.Conversation{
		ID:          "c-1",
		PhoneNumber: "+573001234567",
		BranchID:    1,
		State:       domain.StateIdle,
		Context:     domain.Context{Booking: b},
	}
}

func TestNewDecider_RequiresStore(t *testing.T) {
	_, err := NewDecider(nil, nil)
	require.Error(t, err)
}

func TestEvaluate_NamedRoomWithBookingKeyword(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)
	conv := conversationWith(&domain.BookingSlots{
		CheckInDate: Today,
		RoomType:    domain.RoomShared,
		LastAvailabilityCheck: snapshot(
			domain.RoomOffer{Name: "El abuelo viajero", CategoryID: 99, Type: domain.RoomShared},
		),
	})

	dec, err := d.Evaluate(context.Background(), conv, "el abuelo viajero, buche")
	require.NoError(t, err)
	require.True(t, dec.ShouldBook)
	require.NotNil(t, dec.Data)
	require.Equal(t, 99, dec.Data.CategoryID)
	require.Equal(t, GuestNamePlaceholder, dec.Data.GuestName)
	require.Equal(t, Today, dec.Data.CheckInDate)
	require.Equal(t, Tomorrow, dec.Data.CheckOutDate)

	require.Len(t, store.patches, 1)
	p := store.patches[0]
	require.True(t, p.Booking.IsSet())
	require.False(t, p.Identification.IsSet())
	require.False(t, p.Creation.IsSet())
	require.Nil(t, p.State)
	require.Empty(t, p.Booking.Value().GuestName, "placeholder is not persisted")
}

func TestEvaluate_CheckOutFromSnapshotEnd(t *testing.T) {
	d := newTestDecider(t, &fakeStore{}, nil)
	snap := snapshot(tiaArtista)
	snap.StartDate, snap.EndDate = "2025-06-20", "2025-06-23"
	conv := conversationWith(&domain.BookingSlots{CheckInDate: "2025-06-20", LastAvailabilityCheck: snap})

	dec, err := d.Evaluate(context.Background(), conv, "la tia artista, sí")
	require.NoError(t, err)
	require.True(t, dec.ShouldBook)
	require.Equal(t, "2025-06-23", dec.Data.CheckOutDate)
	require.Equal(t, 34280, dec.Data.CategoryID)
	require.Equal(t, domain.RoomShared, dec.Data.RoomType)
}

func TestEvaluate_EmptyFollowUpIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)
	conv := conversationWith(&domain.BookingSlots{CheckInDate: Today, CheckOutDate: Tomorrow, RoomType: domain.RoomShared})

	first, err := d.Evaluate(context.Background(), conv, "")
	require.NoError(t, err)
	require.False(t, first.ShouldBook)

	second, err := d.Evaluate(context.Background(), first.Conversation, "")
	require.NoError(t, err)
	require.False(t, second.ShouldBook)
	require.Equal(t, first.Booking, second.Booking)
	require.Empty(t, store.patches)
}

func TestEvaluate_ConfirmationNeedsContext(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)

	dec, err := d.Evaluate(context.Background(), conversationWith(nil), "ok")
	require.NoError(t, err)
	require.False(t, dec.Trigger)
	require.False(t, dec.ShouldBook)
	require.Empty(t, store.patches, "nothing to persist without a booking in progress")

	conv := conversationWith(&domain.BookingSlots{CheckInDate: Tomorrow, CheckOutDate: DayAfterTomorrow, RoomType: domain.RoomPrivate})
	dec, err = d.Evaluate(context.Background(), conv, "ja")
	require.NoError(t, err)
	require.True(t, dec.Trigger)
	require.True(t, dec.ShouldBook)
	require.Equal(t, Tomorrow, dec.Data.CheckInDate)
	require.Equal(t, DayAfterTomorrow, dec.Data.CheckOutDate)
}

func TestEvaluate_ConfirmationKeepsChosenRoom(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)
	conv := conversationWith(&domain.BookingSlots{
		CheckInDate:           Today,
		CheckOutDate:          Tomorrow,
		RoomType:              domain.RoomShared,
		RoomName:              tiaArtista.Name,
		CategoryID:            tiaArtista.CategoryID,
		LastAvailabilityCheck: snapshot(abueloViajero, tiaArtista),
	})

	dec, err := d.Evaluate(context.Background(), conv, "si")
	require.NoError(t, err)
	require.True(t, dec.ShouldBook)
	require.Equal(t, tiaArtista.CategoryID, dec.Data.CategoryID)
	require.Equal(t, tiaArtista.Name, dec.Data.RoomName)
	require.Empty(t, store.patches)
}

func TestEvaluate_NamingAnotherRoomReplacesChoice(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)
	conv := conversationWith(&domain.BookingSlots{
		CheckInDate:           Today,
		CheckOutDate:          Tomorrow,
		RoomType:              domain.RoomShared,
		RoomName:              tiaArtista.Name,
		CategoryID:            tiaArtista.CategoryID,
		LastAvailabilityCheck: snapshot(abueloViajero, tiaArtista),
	})

	dec, err := d.Evaluate(context.Background(), conv, "mejor el abuelo viajero")
	require.NoError(t, err)
	require.False(t, dec.ShouldBook)
	require.Equal(t, abueloViajero.CategoryID, dec.Booking.CategoryID)
	require.Equal(t, abueloViajero.Name, dec.Booking.RoomName)
	require.Len(t, store.patches, 1)
}

func TestEvaluate_RoomNameIsNotAGuestName(t *testing.T) {
	d := newTestDecider(t, &fakeStore{}, nil)
	conv := conversationWith(&domain.BookingSlots{
		CheckInDate:           Today,
		RoomType:              domain.RoomShared,
		LastAvailabilityCheck: snapshot(abueloViajero),
	})

	dec, err := d.Evaluate(context.Background(), conv, "El Abuelo Viajero")
	require.NoError(t, err)
	require.Empty(t, dec.Booking.GuestName)
	require.Equal(t, abueloViajero.Name, dec.Booking.RoomName)
	require.Equal(t, abueloViajero.CategoryID, dec.Booking.CategoryID)
}

func TestEvaluate_NotReadyReportsMissing(t *testing.T) {
	store := &fakeStore{}
	d := newTestDecider(t, store, nil)

	dec, err := d.Evaluate(context.Background(), conversationWith(nil), "quiero reservar para mañana")
	require.NoError(t, err)
	require.True(t, dec.Trigger)
	require.False(t, dec.ShouldBook)
	require.Equal(t, Tomorrow, dec.Booking.CheckInDate)
	require.Equal(t, DayAfterTomorrow, dec.Booking.CheckOutDate)
	require.Equal(t, []string{SlotGuestName, SlotRoomType}, dec.Missing)
	require.Len(t, store.patches, 1)
}

func TestEvaluate_NamedRoomWithoutCategoryIsNotReady(t *testing.T) {
	d := newTestDecider(t, &fakeStore{}, nil)
	conv := conversationWith(&domain.BookingSlots{
		CheckInDate: Today, CheckOutDate: Tomorrow, RoomType: domain.RoomShared, RoomName: "La tia artista",
	})

	dec, err := d.Evaluate(context.Background(), conv, "reservar")
	require.NoError(t, err)
	require.False(t, dec.ShouldBook)
	require.Contains(t, dec.Missing, SlotCategoryID)
}

func TestEvaluate_SeedsFromPendingReservation(t *testing.T) {
	store := &fakeStore{}
	pending := fakePending{res: &domain.Reservation{
		GuestName:    "Ana Ruiz",
		CheckInDate:  time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC),
	}}
	d := newTestDecider(t, store, pending)

	dec, err := d.Evaluate(context.Background(), conversationWith(nil), "una cama compartida, reservar")
	require.NoError(t, err)
	require.True(t, dec.ShouldBook)
	require.Equal(t, "2025-06-20", dec.Data.CheckInDate)
	require.Equal(t, "2025-06-22", dec.Data.CheckOutDate)
	require.Equal(t, "Ana Ruiz", dec.Data.GuestName)
	require.Equal(t, domain.RoomShared, dec.Data.RoomType)
}

func TestEvaluate_CollaboratorErrors(t *testing.T) {
	boom := errors.New("boom")

	d := newTestDecider(t, &fakeStore{}, fakePending{err: boom})
	_, err := d.Evaluate(context.Background(), conversationWith(nil), "reservar")
	require.ErrorIs(t, err, boom)

	d = newTestDecider(t, &fakeStore{err: boom}, nil)
	_, err = d.Evaluate(context.Background(), conversationWith(nil), "reservar mañana")
	require.ErrorIs(t, err, boom)
}

func TestReady(t *testing.T) {
	require.True(t, Ready(domain.BookingSlots{CheckInDate: Today, CheckOutDate: Tomorrow, RoomType: domain.RoomShared}))
	require.False(t, Ready(domain.BookingSlots{CheckInDate: Today, RoomType: domain.RoomShared}))
	require.False(t, Ready(domain.BookingSlots{CheckInDate: Today, CheckOutDate: Tomorrow}))
	require.True(t, Ready(domain.BookingSlots{
		CheckInDate: Today, CheckOutDate: Tomorrow, RoomType: domain.RoomShared, RoomName: "x", CategoryID: 3,
	}))
}
