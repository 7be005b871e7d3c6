// Package analyzer talks to the remote log analysis endpoint.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is where log descriptions are sent when nothing else is configured.
const DefaultEndpoint = "https://li9e1bovvb.execute-api.us-east-1.amazonaws.com/Prod/AnalyzeOneLog"

// Response is what came back from the endpoint. Body is kept as raw text.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Client posts analysis requests to a single endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for endpoint. A zero timeout leaves the request unbounded.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send issues exactly one POST. Only transport failures are returned as
// errors; any HTTP status, including 4xx and 5xx, is a valid Response.
func (c *Client) Send(ctx context.Context, req AnalysisRequest) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("sending analysis request", "endpoint", c.endpoint, "bytes", len(payload))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling analysis endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	elapsed := time.Since(start)
	slog.Debug("analysis response received", "status", resp.StatusCode, "duration", elapsed)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Duration:   elapsed,
	}, nil
}

var statusDescriptions = map[int]string{
	http.StatusBadRequest:          "Bad request - check request format",
	http.StatusUnauthorized:        "Unauthorized - check API credentials",
	http.StatusForbidden:           "Forbidden - access denied",
	http.StatusNotFound:            "Endpoint not found - check API URL",
	http.StatusTooManyRequests:     "Rate limit exceeded - too many requests",
	http.StatusInternalServerError: "Internal server error - function failed",
	http.StatusBadGateway:          "Bad gateway - check function configuration",
	http.StatusServiceUnavailable:  "Service unavailable",
	http.StatusGatewayTimeout:      "Gateway timeout - function took too long",
}

// StatusDescription gives a short operator hint for a response status.
// A zero code means the request never got a response.
func StatusDescription(code int) string {
	switch {
	case code == 0:
		return "Network error"
	case code >= 200 && code < 300:
		return "OK"
	}
	if desc, ok := statusDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("HTTP %d error", code)
}
