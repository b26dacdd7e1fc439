package handler

import (
	"bytes"
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// bufferedResponse collects what an http.Handler writes so it can be
// returned as a proxy response.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *bufferedResponse) Header() http.Header { return r.header }

func (r *bufferedResponse) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *bufferedResponse) WriteHeader(status int) { r.status = status }

// serveMetrics runs the scrape handler for a GET on the metrics path. Only
// the Accept header is forwarded so the body is never gzip encoded.
func (h *Handler) serveMetrics(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.metricsPath, nil)
	if err != nil {
		return jsonResponse(http.StatusInternalServerError, correlationID, errorResponse{Error: "INTERNAL_ERROR"})
	}
	if accept := headerValue(event.Headers, "Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	rec := &bufferedResponse{header: http.Header{}, status: http.StatusOK}
	h.metrics.ServeHTTP(rec, req)

	headers := make(map[string]string, len(rec.header)+1)
	for k := range rec.header {
		headers[k] = rec.header.Get(k)
	}
	headers[correlationHeader] = correlationID
	return events.APIGatewayProxyResponse{
		StatusCode: rec.status,
		Headers:    headers,
		Body:       rec.body.String(),
	}
}
