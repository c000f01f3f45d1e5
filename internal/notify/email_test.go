package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "front@clinic.test"}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSender_FromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "front@clinic.test"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.fromName)

	sender = NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "front@clinic.test", FromName: "Lakeside Clinic"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Lakeside Clinic", sender.fromName)
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "patient@example.com", Subject: "Test"})
	assert.Error(t, err)
}

func TestStubEmailSender_Send(t *testing.T) {
	err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "patient@example.com"})
	assert.NoError(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestSESSender_BuildsInput(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "front@clinic.test"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "patient@example.com",
		Subject: "Appointment reminder",
		Body:    "See you tomorrow",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "Your Clinic <front@clinic.test>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"patient@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "See you tomorrow", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
}

func TestSESSender_WrapsError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	err := NewSESSender(client, SESConfig{FromEmail: "front@clinic.test"}, nil).
		Send(context.Background(), EmailMessage{To: "patient@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
