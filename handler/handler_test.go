package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"hostel-concierge/internal/language"
	"hostel-concierge/internal/metrics"
	"hostel-concierge/internal/usecase"
)

type stubUseCase struct {
	out   usecase.Reply
	err   error
	in    usecase.Inbound
	calls int
}

func (s *stubUseCase) Handle(_ context.Context, in usecase.Inbound) (usecase.Reply, error) {
	s.in = in
	s.calls++
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/webhook",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

const validBody = `{"phone":"+573001234567","message":"hola","branchId":1}`

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "¡Hola!", Language: language.Spanish, GroupID: "g-1"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"phone":"+573001234567","message":"hola","branchId":1,"mediaUrl":"/media/1","groupId":"g-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.Inbound{Phone: "+573001234567", Text: "hola", BranchID: 1, MediaRef: "/media/1", GroupID: "g-1"}, uc.in)

	out := parseBody[webhookResponse](t, resp.Body)
	require.Equal(t, "¡Hola!", out.Reply)
	require.Equal(t, "es", out.Language)
	require.Equal(t, "g-1", out.GroupID)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestHandle_Base64Body(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "ok", Language: language.English}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(validBody)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hola", uc.in.Text)

	event.Body = "%%%"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Zero(t, uc.calls)
}

func TestHandle_RejectsOtherMethods(t *testing.T) {
	h, err := NewHandler(&stubUseCase{})
	require.NoError(t, err)

	event := makeEvent(validBody)
	event.HTTPMethod = http.MethodGet
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "openai_error_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "openai_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "conflict", err: &usecase.Error{Code: usecase.ErrorConflict, Reason: "conversation_locked"}, status: http.StatusConflict, code: string(usecase.ErrorConflict)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "ssm_load_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(validBody))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "ok", Language: language.Spanish}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(validBody)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_ThrottlesPerSender(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "ok", Language: language.Spanish}}
	h, err := NewHandler(uc, WithRateLimit(0.001, 2))
	require.NoError(t, err)
	before := testutil.ToFloat64(metrics.WebhookThrottled)

	for i := 0; i < 2; i++ {
		resp, err := h.Handle(context.Background(), makeEvent(validBody))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := h.Handle(context.Background(), makeEvent(`{"phone":"whatsapp:+57 300 123 4567","message":"hola","branchId":1}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorRateLimited), parseBody[errorResponse](t, resp.Body).Error)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.WebhookThrottled))
	require.Equal(t, 2, uc.calls)

	resp, err = h.Handle(context.Background(), makeEvent(`{"phone":"+491701234567","message":"hallo","branchId":1}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "other senders are unaffected")

	resp, err = h.Handle(context.Background(), makeEvent(`{"phone":"+573001234567","message":"hola","branchId":2}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "limits are per branch")
}

func TestHandle_RateLimitDisabled(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "ok"}}
	h, err := NewHandler(uc, WithRateLimit(0, 0))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		resp, err := h.Handle(context.Background(), makeEvent(validBody))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestAllow_BoundsTrackedSenders(t *testing.T) {
	h, err := NewHandler(&stubUseCase{})
	require.NoError(t, err)
	for i := 0; i < maxTrackedSenders+5; i++ {
		require.True(t, h.allow(fmt.Sprintf("+1555%07d", i), 1))
	}
	require.LessOrEqual(t, len(h.limiters), maxTrackedSenders)
}

func TestHandle_ServesMetricsScrape(t *testing.T) {
	uc := &stubUseCase{out: usecase.Reply{Text: "ok"}}
	h, err := NewHandler(uc, WithRateLimit(0.001, 1))
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), makeEvent(validBody))
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), makeEvent(validBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	scrape := events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/metrics", Headers: map[string]string{"Accept-Encoding": "gzip"}}
	resp, err = h.Handle(context.Background(), scrape)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Headers["Content-Type"], "text/plain")
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	throttled := strconv.FormatFloat(testutil.ToFloat64(metrics.WebhookThrottled), 'g', -1, 64)
	require.Contains(t, resp.Body, "concierge_webhook_throttled_total "+throttled)
	require.Equal(t, 1, uc.calls, "scrapes never reach the use case")
}

func TestHandle_CustomMetricsRoute(t *testing.T) {
	served := 0
	scraper := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		require.Equal(t, "/internal/metrics", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("up 1\n"))
	})
	h, err := NewHandler(&stubUseCase{}, WithMetrics("/internal/metrics", scraper))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/internal/metrics"})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "up 1\n", resp.Body)
	require.Equal(t, 1, served)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/metrics"})
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_MetricsRouteDisabled(t *testing.T) {
	h, err := NewHandler(&stubUseCase{}, WithMetrics("", nil))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/metrics"})
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
