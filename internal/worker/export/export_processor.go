package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"punch.service/internal/ports/messaging"
	"punch.service/internal/worker"
	"punch.service/internal/worker/reportapi"
)

// Processor forwards stored punches to the reporting API. A circuit breaker
// stops calls while the API is failing.
type Processor struct {
	reports reportapi.Client
	cb      *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the export queue.
func NewProcessor(reports reportapi.Client) *Processor {
	settings := gobreaker.Settings{
		Name:        "Report-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is at least 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		// A rejected payload says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			var statusErr *reportapi.StatusError
			return err == nil || (errors.As(err, &statusErr) && !statusErr.Retryable())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}

	return &Processor{
		reports: reports,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, errors.New("empty export message")
	}

	var event messaging.PunchRecordedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		return false, 0, fmt.Errorf("unmarshal export event: %w", err) // Do not retry on malformed message
	}
	if event.RecordID == "" {
		return false, 0, errors.New("export event without record id")
	}

	log.Ctx(ctx).Info().
		Str("record_id", event.RecordID).
		Str("subdomain", event.Subdomain).
		Bool("presence", event.Presence).
		Bool("missed_out", event.IsMissedOutPunch).
		Msg("Exporting punch")

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.reports.ExportPunch(ctx, event)
	})
	if err == nil {
		return false, 0, nil
	}

	var statusErr *reportapi.StatusError
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return false, 0, fmt.Errorf("report api rejected record %s: %w", event.RecordID, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Ctx(ctx).Warn().Msg("Circuit breaker is open; skipping report API call")
	}
	return true, worker.Backoff(worker.ReceiveCount(msg)), err
}

// State exposes the breaker state for health reporting.
func (p *Processor) State() gobreaker.State {
	return p.cb.State()
}
