package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SMSMessage is the payload handed to the SMS delivery service.
type SMSMessage struct {
	CommunicationID string `json:"communication_id"`
	OrgID           string `json:"org_id"`
	To              string `json:"to"`
	Body            string `json:"body"`
}

// SQSPublisher hands SMS messages to the messaging service through SQS.
// Delivery and carrier retries happen on the consumer side.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) (*SQSPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		return nil, fmt.Errorf("notify: SQS queue URL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, msg SMSMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode sms: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"org_id": {DataType: aws.String("String"), StringValue: aws.String(msg.OrgID)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: publish sms: %w", err)
	}
	return nil
}
