package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender         MessageSender
	exportQueueURL string
	notifyQueueURL string
}

func NewProducer(sender MessageSender, exportQueueURL, notifyQueueURL string) *Producer {
	return &Producer{
		sender:         sender,
		exportQueueURL: exportQueueURL,
		notifyQueueURL: notifyQueueURL,
	}
}

func NewSQSProducer(client SQSClient, exportQueueURL, notifyQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, exportQueueURL, notifyQueueURL)
}

func (p *Producer) PublishExport(ctx context.Context, eventType string, body any) error {
	return p.publish(ctx, p.exportQueueURL, eventType, body)
}

func (p *Producer) PublishNotify(ctx context.Context, eventType string, body any) error {
	return p.publish(ctx, p.notifyQueueURL, eventType, body)
}

func (p *Producer) publish(ctx context.Context, destination, eventType string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with the worker id if the payload has one
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			WorkerID string `json:"workerId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.WorkerID != "" {
			span.SetAttributes(attribute.String("app.workerId", payload.WorkerID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, eventType, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
