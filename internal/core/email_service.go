package core

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"punch.service/internal/core/model"
	"punch.service/pkg/telemetry"
)

// MissedPunchNotice tells a worker that a departure was recorded on their behalf.
type MissedPunchNotice struct {
	WorkerName string
	Subdomain  string
	Date       model.Date
	Time       model.TimeOfDay
}

type EmailService interface {
	SendMissedPunchNotice(ctx context.Context, to string, notice MissedPunchNotice) error
}

type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESEmailService struct {
	client SESClient
	sender string
}

func NewSESEmailService(client SESClient, sender string) *SESEmailService {
	return &SESEmailService{client: client, sender: sender}
}

func (s *SESEmailService) SendMissedPunchNotice(ctx context.Context, to string, notice MissedPunchNotice) error {
	tracer := otel.Tracer("ses-email-service")
	ctx, span := tracer.Start(ctx, "send_email", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if workerID := telemetry.GetWorkerIDFromContext(ctx); workerID != "" {
		span.SetAttributes(attribute.String("app.workerId", workerID))
	}

	name := notice.WorkerName
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hello %s,\n\nNo exit scan was recorded for you on %s. "+
		"Your departure has been marked at %s, the end of shift for %s.\n\n"+
		"If you left at a different time, please contact your supervisor.",
		name, notice.Date, notice.Time, notice.Subdomain)

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Missed exit punch on " + notice.Date.String()),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send missed punch notice: %w", err)
	}
	return nil
}
