package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"punch.service/internal/core"
	"punch.service/internal/core/model"
	"punch.service/internal/ports/messaging"
	"punch.service/internal/ports/repository"
	"punch.service/internal/worker"
	"punch.service/pkg/platform/sentinel"
)

// Processor emails workers whose departure was synthesized.
type Processor struct {
	emailService core.EmailService
	directory    repository.WorkerDirectory
}

// NewProcessor needs the directory to find the worker's address.
func NewProcessor(emailService core.EmailService, directory repository.WorkerDirectory) *Processor {
	return &Processor{
		emailService: emailService,
		directory:    directory,
	}
}

func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, errors.New("empty notify message")
	}

	var event messaging.MissedPunchEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		return false, 0, fmt.Errorf("unmarshal missed punch event: %w", err) // Do not retry on malformed message
	}

	w, err := p.directory.FindByID(ctx, event.WorkerID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, 0, fmt.Errorf("worker of record %s: %w", event.RecordID, err)
	}
	if err != nil {
		// If we can't get the worker, retry after a short delay.
		return true, 10, fmt.Errorf("failed to get worker for missed punch notice: %w", err)
	}

	if w.Email == "" {
		log.Ctx(ctx).Info().Str("worker_id", w.ID).Str("record_id", event.RecordID).Msg("Worker has no email. Skipping notice.")
		return false, 0, nil
	}

	err = p.emailService.SendMissedPunchNotice(ctx, w.Email, core.MissedPunchNotice{
		WorkerName: w.Name,
		Subdomain:  event.Subdomain,
		Date:       model.Date(event.Date),
		Time:       model.TimeOfDay(event.Time),
	})
	if err != nil {
		return true, worker.Backoff(worker.ReceiveCount(msg)), err
	}

	log.Ctx(ctx).Info().Str("worker_id", w.ID).Str("date", event.Date).Msg("Missed punch notice sent")
	return false, 0, nil
}
