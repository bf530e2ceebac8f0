package core

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, f.err
}

func TestSendMissedPunchNotice(t *testing.T) {
	client := &fakeSES{}
	svc := NewSESEmailService(client, "attendance@punch.local")

	err := svc.SendMissedPunchNotice(context.Background(), "kavin@techvaseegrah.com", MissedPunchNotice{
		WorkerName: "Kavin",
		Subdomain:  "techvaseegrah",
		Date:       "2024-01-01",
		Time:       "7:00:00 PM",
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "attendance@punch.local", *client.input.Source)
	assert.Equal(t, []string{"kavin@techvaseegrah.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Missed exit punch on 2024-01-01", *client.input.Message.Subject.Data)
	assert.Contains(t, *client.input.Message.Body.Text.Data, "Hello Kavin")
	assert.Contains(t, *client.input.Message.Body.Text.Data, "marked at 7:00:00 PM")
}

func TestSendMissedPunchNoticeError(t *testing.T) {
	svc := NewSESEmailService(&fakeSES{err: errors.New("throttled")}, "attendance@punch.local")

	err := svc.SendMissedPunchNotice(context.Background(), "x@y.z", MissedPunchNotice{Date: "2024-01-01"})
	assert.ErrorContains(t, err, "throttled")
}
