package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"punch.service/internal/ports/messaging"
)

// Client pushes punch records to the reporting system.
type Client interface {
	ExportPunch(ctx context.Context, event messaging.PunchRecordedEvent) error
}

// StatusError is a non-2xx answer from the reporting API.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("report api returned non-successful status code: %d", e.StatusCode)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// HTTPClient posts records as JSON to baseURL + "punches".
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
	}
}

// ExportPunch sends one record. The record id is sent as the idempotency key,
// so redelivered messages do not create duplicates downstream.
func (c *HTTPClient) ExportPunch(ctx context.Context, event messaging.PunchRecordedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal report api payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"punches", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create report api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.RecordID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call report api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	log.Ctx(ctx).Debug().Str("record_id", event.RecordID).Msg("Exported punch to report api")
	return nil
}
