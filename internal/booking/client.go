package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"shift-booking-backend/config"
	"shift-booking-backend/internal/logging"
)

// OutcomeKind classifies a single booking attempt.
type OutcomeKind int

const (
	// OutcomeBooked means the service answered 200 or 201.
	OutcomeBooked OutcomeKind = iota
	// OutcomeRejected means the service answered with any other status.
	OutcomeRejected
	// OutcomeTransportError means no status was obtained at all.
	OutcomeTransportError
)

// Outcome is the result of one POST to the booking service.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// Describe renders a failed outcome for logs and item error messages.
func (o Outcome) Describe() string {
	switch o.Kind {
	case OutcomeBooked, OutcomeRejected:
		return fmt.Sprintf("HTTP %d", o.StatusCode)
	default:
		if o.Err == nil {
			return "request error"
		}
		return fmt.Sprintf("request error: %v", o.Err)
	}
}

// existingShiftsResponse models the body of the list endpoint.
type existingShiftsResponse struct {
	Shifts []Shift `json:"shifts"`
}

// Client talks to the external booking service. It never retries.
type Client struct {
	bookURL   string
	shiftsURL string
	headers   map[string]string
	client    *http.Client
}

// NewClient creates a booking client from configuration.
func NewClient(cfg *config.BookingConfig, logger *logging.Logger) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy URL, booking client will not use a proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		bookURL:   cfg.BookURL,
		shiftsURL: cfg.ShiftsURL,
		headers:   cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// AttemptBook performs exactly one booking POST and classifies the answer.
func (c *Client) AttemptBook(ctx context.Context, shift Shift) Outcome {
	jsonBody, err := json.Marshal(shift)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("failed to marshal shift: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bookURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Outcome{Kind: OutcomeRejected, StatusCode: resp.StatusCode}
	}

	return Outcome{Kind: OutcomeBooked, StatusCode: resp.StatusCode, Body: responseJSON(body)}
}

// ListExisting fetches every shift the booking service already holds.
func (c *Client) ListExisting(ctx context.Context) ([]Shift, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.shiftsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}

	var list existingShiftsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode existing shifts: %w", err)
	}
	return list.Shifts, nil
}

func (c *Client) setHeaders(req *http.Request) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
}

// responseJSON keeps a JSON body as is and wraps anything else as a JSON string.
func responseJSON(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
