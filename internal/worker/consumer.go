package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"punch.service/internal/metrics"
	"punch.service/pkg/logger"
	"punch.service/pkg/telemetry"
)

type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Processor handles one message. shouldRetry with a non-nil error puts the
// message back after retryDelay seconds; any other error drops it.
type Processor interface {
	Process(ctx context.Context, msg types.Message) (shouldRetry bool, retryDelay int32, err error)
}

// Worker polls one queue and hands messages to a pool of processors.
type Worker struct {
	client    SQSClient
	queueURL  string
	queue     string
	processor Processor
	metrics   *metrics.Metrics
	// Concurrency controls how many messages can be processed at the same time.
	Concurrency int
	// WaitTimeSeconds is the long-poll duration of each receive.
	WaitTimeSeconds int32
	// ReceiveErrorDelay is the pause after a failed receive.
	ReceiveErrorDelay time.Duration
}

// NewWorker creates a new SQS worker. queue names the queue in logs and metrics.
func NewWorker(client SQSClient, url, queue string, proc Processor, m *metrics.Metrics) *Worker {
	return &Worker{
		client:            client,
		queueURL:          url,
		queue:             queue,
		processor:         proc,
		metrics:           m,
		Concurrency:       10,
		WaitTimeSeconds:   20,
		ReceiveErrorDelay: 2 * time.Second,
	}
}

// Start runs the poller and the processors until ctx is canceled, then waits
// for in-flight messages to finish.
func (w *Worker) Start(ctx context.Context) error {
	log.Info().Str("queue", w.queue).Int("concurrency", w.Concurrency).Msg("SQS Worker started. Polling for messages...")

	messagesCh := make(chan types.Message, w.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.Concurrency; i++ {
		g.Go(func() error {
			w.processMessages(gctx, messagesCh)
			return nil
		})
	}
	g.Go(func() error {
		w.pollMessages(gctx, messagesCh)
		return nil
	})
	return g.Wait()
}

// pollMessages fetches messages from SQS and sends them to a channel.
func (w *Worker) pollMessages(ctx context.Context, messagesCh chan<- types.Message) {
	defer close(messagesCh)

	for {
		if ctx.Err() != nil {
			log.Info().Str("queue", w.queue).Msg("Poller shutting down...")
			return
		}

		output, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    &w.queueURL,
			MaxNumberOfMessages:         int32(min(w.Concurrency, 10)), // SQS caps a receive at 10
			WaitTimeSeconds:             w.WaitTimeSeconds,
			MessageAttributeNames:       []string{"All"}, // trace context and EventType
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Str("queue", w.queue).Dur("retry_in", w.ReceiveErrorDelay).Msg("Error receiving messages")
			select {
			case <-ctx.Done():
			case <-time.After(w.ReceiveErrorDelay):
			}
			continue
		}
		if len(output.Messages) > 0 {
			log.Debug().Int("count", len(output.Messages)).Str("queue", w.queue).Msg("Received messages")
		}
		for _, msg := range output.Messages {
			select {
			case messagesCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) processMessages(ctx context.Context, messagesCh <-chan types.Message) {
	for msg := range messagesCh {
		w.handleSingleMessage(ctx, msg)
	}
}

// handleSingleMessage calls the processor and then deletes the message or
// changes its visibility for a retry.
func (w *Worker) handleSingleMessage(ctx context.Context, msg types.Message) {
	ctx, span := telemetry.StartSpanFromSQSMessage(ctx, msg)
	defer span.End()

	ctx = logger.EnrichContextWithLogger(ctx)

	shouldRetry, retryDelay, err := w.processor.Process(ctx, msg)

	if err != nil && shouldRetry {
		log.Ctx(ctx).Warn().Err(err).Int32("retry_delay", retryDelay).Int("receive_count", ReceiveCount(msg)).Msg("Processing failed, will retry")
		w.metrics.IncrementMessage(w.queue, "retry")

		// Context may be canceled during shutdown; the message just becomes visible again.
		_, _ = w.client.ChangeMessageVisibility(context.WithoutCancel(ctx), &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          &w.queueURL,
			ReceiptHandle:     msg.ReceiptHandle,
			VisibilityTimeout: retryDelay,
		})
		return
	}

	if err != nil {
		// An unrecoverable error occurred (e.g., bad message format).
		log.Ctx(ctx).Error().Err(err).Msg("Unrecoverable error processing message, will not retry")
		w.metrics.IncrementMessage(w.queue, "dropped")
	} else {
		w.metrics.IncrementMessage(w.queue, "done")
	}

	// Poison messages are deleted as well so they stop cycling through the queue.
	if _, derr := w.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      &w.queueURL,
		ReceiptHandle: msg.ReceiptHandle,
	}); derr != nil {
		log.Ctx(ctx).Error().Err(derr).Msg("Failed to delete message")
	}
}

// ReceiveCount is how many times SQS has delivered msg, or 1 when unknown.
func ReceiveCount(msg types.Message) int {
	raw, ok := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
