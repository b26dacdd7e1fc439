package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostel-concierge/internal/booking"
	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/metrics"
)

const (
	ToolGetRequests           = "get_requests"
	ToolGetTodos              = "get_todos"
	ToolCheckRoomAvailability = "check_room_availability"
	ToolCreateRoomReservation = "create_room_reservation"

	maxListedArtifacts = 20
	isoLayout          = "2006-01-02"
)

var errStaffOnly = errors.New("only available to registered staff")

var (
	requestsSchema = json.RawMessage(`{"type":"object","properties":{"status":{"type":"string","enum":["approval","approved","to_improve","denied"],"description":"Request status"}}}`)
	todosSchema    = json.RawMessage(`{"type":"object","properties":{"status":{"type":"string","enum":["open","in_progress","improval","quality_control","done"],"description":"Task status"}}}`)

	availabilitySchema = json.RawMessage(`{"type":"object","properties":{` +
		`"startDate":{"type":"string","description":"Check-in date as YYYY-MM-DD, or today/tomorrow"},` +
		`"endDate":{"type":"string","description":"Check-out date as YYYY-MM-DD; defaults to one night after startDate"},` +
		`"roomType":{"type":"string","enum":["shared","private"],"description":"shared for dorm beds, private for private rooms"}` +
		`},"required":["startDate"]}`)

	reservationSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"checkInDate":{"type":"string","description":"YYYY-MM-DD"},` +
		`"checkOutDate":{"type":"string","description":"YYYY-MM-DD"},` +
		`"guestName":{"type":"string"},` +
		`"roomType":{"type":"string","enum":["shared","private"]},` +
		`"categoryId":{"type":"integer","description":"Category id from the last availability check"},` +
		`"roomName":{"type":"string"}` +
		`},"required":["checkInDate","checkOutDate","roomType"]}`)
)

// toolDefinitions lists the functions offered to the model. Listing tools are
// offered to staff only.
func toolDefinitions(staff bool) []domain.ToolDefinition {
	defs := []domain.ToolDefinition{
		{
			Name:        ToolCheckRoomAvailability,
			Description: "Checks free rooms, prices and the number of free rooms for a date range. Always use it when the guest asks about availability.",
			Parameters:  availabilitySchema,
		},
		{
			Name:        ToolCreateRoomReservation,
			Description: "Creates a room reservation once dates, room type and the room from the last availability check are known.",
			Parameters:  reservationSchema,
		},
	}
	if staff {
		defs = append(defs,
			domain.ToolDefinition{Name: ToolGetRequests, Description: "Lists the staff member's requests, optionally filtered by status.", Parameters: requestsSchema},
			domain.ToolDefinition{Name: ToolGetTodos, Description: "Lists the staff member's to-dos, optionally filtered by status.", Parameters: todosSchema},
		)
	}
	return defs
}

// toolRun executes the tool calls of one turn. conv tracks the latest
// stored version of the conversation.
type toolRun struct {
	svc  *AssistantService
	in   AssistantInput
	conv domain.Conversation
}

// execute runs one call and returns its JSON result. Failures are reported to
// the model as {"error": msg}.
func (r *toolRun) execute(ctx context.Context, call domain.ToolCall) string {
	result, err := r.dispatch(ctx, call)
	metrics.ToolCalls.WithLabelValues(call.Name, metrics.Result(err)).Inc()
	if err != nil {
		r.svc.log.WithError(err).Warn("tool call failed", map[string]interface{}{
			"phone":     r.conv.PhoneNumber,
			"branch_id": r.conv.BranchID,
			"tool":      call.Name,
		})
		result = map[string]string{"error": err.Error()}
	}
	buf, err := json.Marshal(result)
	if err != nil {
		return `{"error":"unencodable result"}`
	}
	return string(buf)
}

func (r *toolRun) dispatch(ctx context.Context, call domain.ToolCall) (any, error) {
	switch call.Name {
	case ToolGetRequests:
		return r.listArtifacts(ctx, call.Arguments, r.svc.artifacts.ListRequests)
	case ToolGetTodos:
		return r.listArtifacts(ctx, call.Arguments, r.svc.artifacts.ListTasks)
	case ToolCheckRoomAvailability:
		return r.checkAvailability(ctx, call.Arguments)
	case ToolCreateRoomReservation:
		return r.createReservation(ctx, call.Arguments)
	}
	return nil, fmt.Errorf("unknown function %q", call.Name)
}

type listArgs struct {
	Status string `json:"status"`
}

type listFunc func(ctx context.Context, userID, branchID int) ([]domain.Artifact, error)

func (r *toolRun) listArtifacts(ctx context.Context, raw json.RawMessage, list listFunc) (any, error) {
	if r.in.User == nil {
		return nil, errStaffOnly
	}
	var args listArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	items, err := list(ctx, r.in.User.ID, r.conv.BranchID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Artifact, 0, len(items))
	for _, it := range items {
		if args.Status != "" && !strings.EqualFold(it.Status, args.Status) {
			continue
		}
		out = append(out, it)
		if len(out) == maxListedArtifacts {
			break
		}
	}
	return map[string]any{"count": len(out), "items": out}, nil
}

type availabilityArgs struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	RoomType  string `json:"roomType"`
}

func (r *toolRun) checkAvailability(ctx context.Context, raw json.RawMessage) (any, error) {
	var args availabilityArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	now := r.svc.now()
	start, ok := booking.AbsoluteDate(normalizeDateArg(args.StartDate), now)
	if !ok {
		return nil, fmt.Errorf("invalid startDate %q", args.StartDate)
	}
	end := ""
	if args.EndDate != "" {
		if end, ok = booking.AbsoluteDate(normalizeDateArg(args.EndDate), now); !ok {
			return nil, fmt.Errorf("invalid endDate %q", args.EndDate)
		}
	}
	if end == "" || end <= start {
		end = nextDay(start)
	}

	snap, err := r.svc.bookings.CheckAvailability(ctx, domain.AvailabilityQuery{
		StartDate: start,
		EndDate:   end,
		RoomType:  roomTypeArg(args.RoomType),
		BranchID:  r.conv.BranchID,
	})
	if err != nil {
		return nil, err
	}

	slots := r.conv.Booking()
	slots.LastAvailabilityCheck = &snap
	conv, err := r.svc.store.Update(ctx, r.conv, domain.Patch{Booking: domain.Set(slots)})
	if err != nil {
		r.svc.log.WithError(err).Warn("persist availability snapshot", map[string]interface{}{
			"phone":     r.conv.PhoneNumber,
			"branch_id": r.conv.BranchID,
		})
	} else {
		r.conv = conv
	}
	return snap, nil
}

type reservationArgs struct {
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	GuestName    string `json:"guestName"`
	RoomType     string `json:"roomType"`
	CategoryID   int    `json:"categoryId"`
	RoomName     string `json:"roomName"`
}

func (r *toolRun) createReservation(ctx context.Context, raw json.RawMessage) (any, error) {
	var args reservationArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	data := domain.BookingData{
		CheckInDate:  normalizeDateArg(args.CheckInDate),
		CheckOutDate: normalizeDateArg(args.CheckOutDate),
		GuestName:    strings.TrimSpace(args.GuestName),
		RoomType:     roomTypeArg(args.RoomType),
		CategoryID:   args.CategoryID,
		RoomName:     strings.TrimSpace(args.RoomName),
	}
	if data.RoomType == "" {
		return nil, errors.New("roomType is required")
	}
	if data.GuestName == "" {
		data.GuestName = booking.GuestNamePlaceholder
	}
	if data.CategoryID == 0 && data.RoomName != "" {
		if m := booking.ResolveRoom(data.RoomName, r.conv.Booking().LastAvailabilityCheck, data.RoomType); m != nil {
			data.CategoryID = m.CategoryID
		}
	}
	data, err := resolveDates(data, r.svc.now())
	if err != nil {
		return nil, err
	}

	req := domain.BookingRequest{Data: data, BranchID: r.conv.BranchID, PhoneFallback: r.conv.PhoneNumber}
	if r.in.User != nil {
		req.UserID = &r.in.User.ID
		req.RoleID = r.in.User.PrimaryRoleID()
	}
	res, err := r.svc.bookings.CreateRoomReservation(ctx, req)
	metrics.BookingAttempts.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	conv, err := r.svc.store.Update(ctx, r.conv, domain.Patch{Booking: domain.Clear[domain.BookingSlots]()})
	if err != nil {
		r.svc.log.WithError(err).Warn("clear booking context", map[string]interface{}{
			"phone":     r.conv.PhoneNumber,
			"branch_id": r.conv.BranchID,
		})
	} else {
		r.conv = conv
	}
	return res, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// normalizeDateArg accepts the relative words the model tends to pass.
func normalizeDateArg(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "hoy", "heute":
		return booking.Today
	case "mañana", "manana", "morgen":
		return booking.Tomorrow
	case "day_after_tomorrow", "pasado mañana", "übermorgen":
		return booking.DayAfterTomorrow
	}
	return s
}

func roomTypeArg(s string) domain.RoomType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shared", "compartida", "dorm":
		return domain.RoomShared
	case "private", "privada":
		return domain.RoomPrivate
	}
	return ""
}

func nextDay(isoDate string) string {
	t, err := time.Parse(isoLayout, isoDate)
	if err != nil {
		return isoDate
	}
	return t.AddDate(0, 0, 1).Format(isoLayout)
}
