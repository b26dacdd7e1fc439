package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"hostel-concierge/internal/logger"
	"hostel-concierge/internal/metrics"
	"hostel-concierge/internal/phone"
	"hostel-concierge/internal/usecase"
)

const (
	correlationHeader  = "X-Correlation-Id"
	maxTrackedSenders  = 10000
	defaultMetricsPath = "/metrics"
)

type UseCase interface {
	Handle(ctx context.Context, in usecase.Inbound) (usecase.Reply, error)
}

type Handler struct {
	uc  UseCase
	log logger.Logger

	limit rate.Limit
	burst int

	metricsPath string
	metrics     http.Handler

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Handler)

// WithRateLimit sets the per-sender message rate. A non-positive rate
// disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Handler) {
		h.limit = rate.Limit(perSecond)
		if burst > 0 {
			h.burst = burst
		}
	}
}

// WithMetrics serves next for GET requests on path. A nil handler turns the
// metrics route off.
func WithMetrics(path string, next http.Handler) Option {
	return func(h *Handler) {
		if path != "" {
			h.metricsPath = path
		}
		h.metrics = next
	}
}

func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

type webhookRequest struct {
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	BranchID int    `json:"branchId"`
	MediaURL string `json:"mediaUrl,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
}

type webhookResponse struct {
	Reply    string `json:"reply"`
	Language string `json:"language"`
	GroupID  string `json:"groupId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(uc UseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{
		uc:       uc,
		log:      logger.NewNoOpLogger(),
		limit:       1,
		burst:       5,
		limiters:    make(map[string]*rate.Limiter),
		metricsPath: defaultMetricsPath,
		metrics:     promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With(map[string]interface{}{"correlation_id": correlationID})

	if event.HTTPMethod == http.MethodGet && h.metrics != nil && event.Path == h.metricsPath {
		return h.serveMetrics(ctx, event, correlationID), nil
	}
	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, correlationID, errorResponse{Error: "METHOD_NOT_ALLOWED"}), nil
	}

	body := event.Body
	if event.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
		}
		body = string(raw)
	}

	var req webhookRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}

	if !h.allow(req.Phone, req.BranchID) {
		metrics.WebhookThrottled.Inc()
		log.Warn("sender throttled", map[string]interface{}{"phone": phone.Normalize(req.Phone), "branch_id": req.BranchID})
		return jsonResponse(http.StatusTooManyRequests, correlationID, errorResponse{Error: string(usecase.ErrorRateLimited)}), nil
	}

	out, err := h.uc.Handle(ctx, usecase.Inbound{
		Phone:    req.Phone,
		Text:     req.Message,
		BranchID: req.BranchID,
		MediaRef: req.MediaURL,
		GroupID:  req.GroupID,
	})
	if err != nil {
		status, code := mapError(err)
		log.WithError(err).Warn("webhook rejected", map[string]interface{}{"status": status, "error_code": code})
		return jsonResponse(status, correlationID, errorResponse{Error: code}), nil
	}

	return jsonResponse(http.StatusOK, correlationID, webhookResponse{
		Reply:    out.Text,
		Language: string(out.Language),
		GroupID:  out.GroupID,
	}), nil
}

// allow applies the per-sender token bucket. The limiter table is dropped
// wholesale once it tracks too many senders.
func (h *Handler) allow(rawPhone string, branchID int) bool {
	if h.limit <= 0 {
		return true
	}
	key := phone.Normalize(rawPhone)
	if key == "" {
		return true
	}
	key += "#" + strconv.Itoa(branchID)

	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[key]
	if !ok {
		if len(h.limiters) >= maxTrackedSenders {
			h.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[key] = l
	}
	return l.Allow()
}

func mapError(err error) (int, string) {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}

	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(usecaseErr.Code)
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(usecaseErr.Code)
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(usecaseErr.Code)
	case usecase.ErrorConflict:
		return http.StatusConflict, string(usecaseErr.Code)
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal)
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}
