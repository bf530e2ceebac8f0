package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/suite"

	"punch.service/internal/ports/messaging"
	"punch.service/internal/worker/reportapi"
)

type fakeReports struct {
	calls int
	err   error
	got   []messaging.PunchRecordedEvent
}

func (f *fakeReports) ExportPunch(ctx context.Context, event messaging.PunchRecordedEvent) error {
	f.calls++
	f.got = append(f.got, event)
	return f.err
}

type ExportProcessorSuite struct {
	suite.Suite
	reports   *fakeReports
	processor *Processor
	ctx       context.Context
}

func TestExportProcessorSuite(t *testing.T) {
	suite.Run(t, new(ExportProcessorSuite))
}

func (s *ExportProcessorSuite) SetupTest() {
	s.reports = &fakeReports{}
	s.processor = NewProcessor(s.reports)
	s.ctx = context.Background()
}

func (s *ExportProcessorSuite) message(receiveCount string) types.Message {
	body, err := json.Marshal(messaging.PunchRecordedEvent{RecordID: "r-1", Subdomain: "acme", WorkerID: "w-1", Presence: true})
	s.Require().NoError(err)
	return types.Message{
		MessageId:  aws.String("m-1"),
		Body:       aws.String(string(body)),
		Attributes: map[string]string{"ApproximateReceiveCount": receiveCount},
	}
}

func (s *ExportProcessorSuite) TestExportsRecord() {
	retry, _, err := s.processor.Process(s.ctx, s.message("1"))
	s.Require().NoError(err)
	s.False(retry)
	s.Require().Len(s.reports.got, 1)
	s.Equal("r-1", s.reports.got[0].RecordID)
}

func (s *ExportProcessorSuite) TestMalformedMessageIsDropped() {
	retry, _, err := s.processor.Process(s.ctx, types.Message{Body: aws.String("{")})
	s.Error(err)
	s.False(retry)

	retry, _, err = s.processor.Process(s.ctx, types.Message{Body: aws.String("{}")})
	s.Error(err)
	s.False(retry)
	s.Zero(s.reports.calls)
}

func (s *ExportProcessorSuite) TestServerErrorRetriesWithBackoff() {
	s.reports.err = &reportapi.StatusError{StatusCode: 503}

	retry, delay, err := s.processor.Process(s.ctx, s.message("3"))
	s.Error(err)
	s.True(retry)
	s.Equal(int32(80), delay)
}

func (s *ExportProcessorSuite) TestRejectedPayloadIsDropped() {
	s.reports.err = &reportapi.StatusError{StatusCode: 400}

	retry, _, err := s.processor.Process(s.ctx, s.message("1"))
	s.Error(err)
	s.False(retry)
}

func (s *ExportProcessorSuite) TestBreakerOpensAfterRepeatedFailures() {
	s.reports.err = errors.New("connection refused")

	for i := 0; i < 10; i++ {
		retry, _, err := s.processor.Process(s.ctx, s.message("1"))
		s.Error(err)
		s.True(retry)
	}
	s.Equal(gobreaker.StateOpen, s.processor.State())

	retry, _, err := s.processor.Process(s.ctx, s.message("1"))
	s.ErrorIs(err, gobreaker.ErrOpenState)
	s.True(retry)
	s.Equal(10, s.reports.calls, "open breaker must not call the api")
}

func (s *ExportProcessorSuite) TestRejectionsDoNotTripBreaker() {
	s.reports.err = &reportapi.StatusError{StatusCode: 422}

	for i := 0; i < 12; i++ {
		_, _, _ = s.processor.Process(s.ctx, s.message("1"))
	}
	s.Equal(gobreaker.StateClosed, s.processor.State())
}
