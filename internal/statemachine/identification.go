package statemachine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/language"
)

const minDetailLength = 2

var (
	birthdatePattern = regexp.MustCompile(`(\d{1,2})[./-](\d{1,2})[./-](\d{4}|\d{2})(?:\D|$)`)
	skipWords        = map[string]struct{}{"skip": {}, "überspringen": {}, "saltar": {}}
)

func startIdentification(rt domain.RequestType) action {
	return func(m *Machine, ctx context.Context, t Turn) (Outcome, error) {
		out := Outcome{Route: RouteGuestLookup, Conversation: t.Conversation}
		res, err := m.guests.FindActiveReservationByPhone(ctx, t.Conversation.PhoneNumber, t.Conversation.BranchID)
		if err != nil {
			return Outcome{}, fmt.Errorf("statemachine: find reservation by phone: %w", err)
		}
		if res != nil {
			out.Reply = reservationReply(t.Language, rt, *res)
			return out, nil
		}

		conv, err := m.update(ctx, t, domain.EnterIdentification(domain.IdentificationLadder{
			Step:            domain.StepName,
			RequestType:     rt,
			OriginalMessage: t.Text,
		}))
		if err != nil {
			return Outcome{}, err
		}
		out.Route = RouteIdentifying
		out.Conversation = conv
		out.Reply = language.Text(t.Language, language.KeyGuestAskFirstName)
		return out, nil
	}
}

func (m *Machine) continueIdentification(ctx context.Context, t Turn) (Outcome, error) {
	ladder, err := t.Conversation.ActiveLadder()
	if err != nil {
		return Outcome{}, err
	}
	il, ok := ladder.(*domain.IdentificationLadder)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrLadderContextMissing, t.Conversation.State)
	}
	if _, detected := language.Detect(t.Text); !detected && il.OriginalMessage != "" {
		if l, ok := language.Detect(il.OriginalMessage); ok {
			t.Language = l
		}
	}

	value := strings.TrimSpace(t.Text)
	switch il.Step {
	case domain.StepName:
		if utf8.RuneCountInString(value) < minDetailLength {
			return m.reply(t, language.KeyGuestInvalidFirstName), nil
		}
		il.CollectedData.FirstName = value
		il.Step = domain.StepLastname
		return m.advance(ctx, t, *il, language.Text(t.Language, language.KeyGuestAskLastName, value))
	case domain.StepLastname:
		if utf8.RuneCountInString(value) < minDetailLength {
			return m.reply(t, language.KeyGuestInvalidLastName), nil
		}
		il.CollectedData.LastName = value
		il.Step = domain.StepNationality
		return m.advance(ctx, t, *il, language.Text(t.Language, language.KeyGuestAskNationality))
	case domain.StepNationality:
		if utf8.RuneCountInString(value) < minDetailLength {
			return m.reply(t, language.KeyGuestInvalidCountry), nil
		}
		il.CollectedData.Nationality = value
		return m.searchByDetails(ctx, t, *il, nil)
	case domain.StepBirthdate:
		if _, skip := skipWords[strings.ToLower(value)]; skip {
			return m.finish(ctx, t, candidateList(t.Language, language.KeyGuestCandidatesTitle, il.CandidateReservations))
		}
		birth, ok := parseBirthdate(value, time.Now())
		if !ok {
			return m.reply(t, language.KeyGuestAskBirthdate), nil
		}
		return m.searchByDetails(ctx, t, *il, &birth)
	}
	return Outcome{}, fmt.Errorf("%w: identification step %q", domain.ErrUnknownState, il.Step)
}

// searchByDetails applies the zero/one/many branching. Many matches advance
// to the birthdate step once; at the birthdate step they end the ladder with
// a candidate list.
func (m *Machine) searchByDetails(ctx context.Context, t Turn, il domain.IdentificationLadder, birth *time.Time) (Outcome, error) {
	found, err := m.guests.FindReservationsByDetails(ctx, domain.DetailsQuery{
		FirstName:   il.CollectedData.FirstName,
		LastName:    il.CollectedData.LastName,
		Nationality: il.CollectedData.Nationality,
		BirthDate:   birth,
		BranchID:    t.Conversation.BranchID,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("statemachine: find reservations by details: %w", err)
	}

	switch {
	case len(found) == 0:
		return m.finish(ctx, t, language.Text(t.Language, language.KeyGuestNotFound))
	case len(found) == 1:
		return m.finish(ctx, t, reservationReply(t.Language, il.RequestType, found[0]))
	case birth != nil:
		return m.finish(ctx, t, candidateList(t.Language, language.KeyGuestManyFoundTitle, candidates(found)))
	}

	il.Step = domain.StepBirthdate
	il.CandidateReservations = candidates(found)
	return m.advance(ctx, t, il, language.Text(t.Language, language.KeyGuestAskBirthdate))
}

func (m *Machine) reply(t Turn, key language.Key) Outcome {
	return Outcome{Route: RouteIdentifying, Conversation: t.Conversation, Reply: language.Text(t.Language, key)}
}

func (m *Machine) advance(ctx context.Context, t Turn, il domain.IdentificationLadder, reply string) (Outcome, error) {
	conv, err := m.update(ctx, t, domain.EnterIdentification(il))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Route: RouteIdentifying, Conversation: conv, Reply: reply}, nil
}

func (m *Machine) finish(ctx context.Context, t Turn, reply string) (Outcome, error) {
	conv, err := m.update(ctx, t, finishPatch())
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Route: RouteIdentifying, Conversation: conv, Reply: reply}, nil
}

func candidates(rs []domain.Reservation) []domain.CandidateReservation {
	out := make([]domain.CandidateReservation, len(rs))
	for i, r := range rs {
		out[i] = domain.CandidateReservation{ID: r.ID, CheckInDate: r.CheckInDate, CheckOutDate: r.CheckOutDate}
	}
	return out
}

// parseBirthdate reads D.M.Y dates. A two digit year is placed in the last
// hundred years before now.
func parseBirthdate(s string, now time.Time) (time.Time, bool) {
	m := birthdatePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	d, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		y += now.Year() / 100 * 100
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, false
	}
	if len(m[3]) == 2 && t.After(now) {
		t = t.AddDate(-100, 0, 0)
	}
	return t, true
}
