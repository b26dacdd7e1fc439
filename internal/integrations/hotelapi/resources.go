package hotelapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"hostel-concierge/internal/domain"
)

// FindUserByPhone returns the staff member registered with phone, or nil.
func (c *Client) FindUserByPhone(ctx context.Context, phone string, branchID int) (*domain.User, error) {
	return c.findUser(ctx, "/api/users/by-phone", branchQuery(branchID, "phone", phone))
}

// FindUserByNameOrID resolves a staff member from a free-text name or a
// numeric id, or returns nil.
func (c *Client) FindUserByNameOrID(ctx context.Context, term string, branchID int) (*domain.User, error) {
	return c.findUser(ctx, "/api/users/search", branchQuery(branchID, "q", strings.TrimSpace(term)))
}

func (c *Client) findUser(ctx context.Context, p string, q url.Values) (*domain.User, error) {
	var u domain.User
	if err := c.call(ctx, http.MethodGet, p, q, nil, &u); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func artifactPath(kind domain.ArtifactKind) (string, error) {
	switch kind {
	case domain.ArtifactRequest:
		return "/api/requests", nil
	case domain.ArtifactTask:
		return "/api/tasks", nil
	}
	return "", fmt.Errorf("hotelapi: unknown artifact kind %q", kind)
}

type artifactBody struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	RequesterID   int    `json:"requesterId"`
	ResponsibleID int    `json:"responsibleId"`
	BranchID      int    `json:"branchId"`
}

type idResponse struct {
	ID int `json:"id"`
}

// CreateRequest stores a staff request and returns its id.
func (c *Client) CreateRequest(ctx context.Context, a domain.NewArtifact) (int, error) {
	return c.createArtifact(ctx, domain.ArtifactRequest, a)
}

// CreateTask stores a staff task and returns its id.
func (c *Client) CreateTask(ctx context.Context, a domain.NewArtifact) (int, error) {
	return c.createArtifact(ctx, domain.ArtifactTask, a)
}

func (c *Client) createArtifact(ctx context.Context, kind domain.ArtifactKind, a domain.NewArtifact) (int, error) {
	p, err := artifactPath(kind)
	if err != nil {
		return 0, err
	}
	body := artifactBody{
		Title:         a.Title,
		Description:   a.Description,
		Status:        a.Status,
		RequesterID:   a.RequesterID,
		ResponsibleID: a.ResponsibleID,
		BranchID:      a.BranchID,
	}
	var out idResponse
	if err := c.call(ctx, http.MethodPost, p, nil, body, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("hotelapi: create %s: response has no id", kind)
	}
	return out.ID, nil
}

type attachmentBody struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// AttachMedia uploads m to an artifact and returns the attachment id.
func (c *Client) AttachMedia(ctx context.Context, kind domain.ArtifactKind, id int, m domain.Media) (int, error) {
	p, err := artifactPath(kind)
	if err != nil {
		return 0, err
	}
	var out idResponse
	body := attachmentBody{FileName: m.FileName, MimeType: m.MimeType, Data: m.Data}
	if err := c.call(ctx, http.MethodPost, p+"/"+strconv.Itoa(id)+"/attachments", nil, body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UpdateDescription replaces the description of an artifact.
func (c *Client) UpdateDescription(ctx context.Context, kind domain.ArtifactKind, id int, description string) error {
	p, err := artifactPath(kind)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPatch, p+"/"+strconv.Itoa(id), nil, map[string]string{"description": description}, nil)
}

// ListRequests returns the requests owned by userID, newest first.
func (c *Client) ListRequests(ctx context.Context, userID, branchID int) ([]domain.Artifact, error) {
	return c.listArtifacts(ctx, domain.ArtifactRequest, userID, branchID)
}

// ListTasks returns the tasks assigned to userID, newest first.
func (c *Client) ListTasks(ctx context.Context, userID, branchID int) ([]domain.Artifact, error) {
	return c.listArtifacts(ctx, domain.ArtifactTask, userID, branchID)
}

func (c *Client) listArtifacts(ctx context.Context, kind domain.ArtifactKind, userID, branchID int) ([]domain.Artifact, error) {
	p, err := artifactPath(kind)
	if err != nil {
		return nil, err
	}
	var out []domain.Artifact
	if err := c.call(ctx, http.MethodGet, p, branchQuery(branchID, "userId", strconv.Itoa(userID)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveReservationByPhone returns the current reservation for phone, or nil.
func (c *Client) FindActiveReservationByPhone(ctx context.Context, phone string, branchID int) (*domain.Reservation, error) {
	return c.findReservation(ctx, "/api/reservations/active", branchQuery(branchID, "phone", phone))
}

// FindPotentialReservation returns a reservation created for phone that has
// not been completed yet, or nil.
func (c *Client) FindPotentialReservation(ctx context.Context, phone string, branchID int) (*domain.Reservation, error) {
	return c.findReservation(ctx, "/api/reservations/potential", branchQuery(branchID, "phone", phone))
}

func (c *Client) findReservation(ctx context.Context, p string, q url.Values) (*domain.Reservation, error) {
	var r domain.Reservation
	if err := c.call(ctx, http.MethodGet, p, q, nil, &r); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if r.ID == 0 {
		return nil, nil
	}
	return &r, nil
}

// FindReservationsByDetails searches reservations by guest details.
func (c *Client) FindReservationsByDetails(ctx context.Context, q domain.DetailsQuery) ([]domain.Reservation, error) {
	birth := ""
	if q.BirthDate != nil {
		birth = q.BirthDate.Format("2006-01-02")
	}
	query := branchQuery(q.BranchID,
		"firstName", q.FirstName,
		"lastName", q.LastName,
		"nationality", q.Nationality,
		"birthDate", birth,
	)
	var out []domain.Reservation
	if err := c.call(ctx, http.MethodGet, "/api/reservations/search", query, nil, &out); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

type reservationBody struct {
	domain.BookingData
	UserID      *int   `json:"userId,omitempty"`
	RoleID      *int   `json:"roleId,omitempty"`
	BranchID    int    `json:"branchId"`
	GuestPhone  string `json:"guestPhone,omitempty"`
	Source      string `json:"source"`
	ChannelName string `json:"channel"`
}

// CreateRoomReservation books a room and returns the backend's confirmation.
func (c *Client) CreateRoomReservation(ctx context.Context, req domain.BookingRequest) (domain.BookingResult, error) {
	body := reservationBody{
		BookingData: req.Data,
		UserID:      req.UserID,
		RoleID:      req.RoleID,
		BranchID:    req.BranchID,
		GuestPhone:  req.PhoneFallback,
		Source:      "chatbot",
		ChannelName: "whatsapp",
	}
	var out domain.BookingResult
	if err := c.call(ctx, http.MethodPost, "/api/reservations", nil, body, &out); err != nil {
		return domain.BookingResult{}, err
	}
	return out, nil
}

// CheckAvailability lists room categories free for the query.
func (c *Client) CheckAvailability(ctx context.Context, q domain.AvailabilityQuery) (domain.AvailabilitySnapshot, error) {
	query := branchQuery(q.BranchID,
		"startDate", q.StartDate,
		"endDate", q.EndDate,
		"roomType", string(q.RoomType),
	)
	var out domain.AvailabilitySnapshot
	if err := c.call(ctx, http.MethodGet, "/api/availability", query, nil, &out); err != nil {
		return domain.AvailabilitySnapshot{}, err
	}
	if out.StartDate == "" {
		out.StartDate = q.StartDate
	}
	if out.EndDate == "" {
		out.EndDate = q.EndDate
	}
	return out, nil
}

type tourReplyResponse struct {
	Handled bool   `json:"handled"`
	Reply   string `json:"reply"`
}

// HandleReply forwards a message to the tour-provider flow. handled is false
// when the sender is not a provider with an outstanding booking.
func (c *Client) HandleReply(ctx context.Context, phone, text string, branchID int) (reply string, handled bool, err error) {
	body := map[string]any{"phone": phone, "message": text, "branchId": branchID}
	var out tourReplyResponse
	if err := c.call(ctx, http.MethodPost, "/api/tour-providers/replies", nil, body, &out); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return out.Reply, out.Handled, nil
}

// ErrMediaTooLarge is returned when an attachment exceeds the download cap.
var ErrMediaTooLarge = errors.New("hotelapi: media too large")

// Download fetches an inbound attachment. ref is an absolute URL or a path
// on the backend.
func (c *Client) Download(ctx context.Context, ref string) (domain.Media, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Media{}, errors.New("hotelapi: media ref is required")
	}
	u := c.resolveURL(ref)
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Media{}, err
	}
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return domain.Media{}, fmt.Errorf("hotelapi: download media: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.Media{}, &HTTPStatusError{StatusCode: res.StatusCode, URL: u, Body: string(buf)}
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxMediaBytes+1))
	if err != nil {
		return domain.Media{}, fmt.Errorf("hotelapi: read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return domain.Media{}, ErrMediaTooLarge
	}

	m := domain.Media{Data: data, MimeType: res.Header.Get("Content-Type"), FileName: fileName(res, u)}
	if m.MimeType == "" {
		m.MimeType = http.DetectContentType(data)
	}
	return m, nil
}

func fileName(res *http.Response, u string) string {
	if _, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if base := path.Base(u); base != "." && base != "/" {
		return base
	}
	return "attachment"
}
