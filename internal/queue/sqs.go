package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of the SQS client the channel uses. Satisfied by
// *sqs.Client.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQS adapts an Amazon SQS queue to the dispatch channel contract. The
// queue's own visibility timeout must exceed the worst-case reconciliation
// time plus the lock lease; that is deployment configuration, not code.
type SQS struct {
	client   SQSAPI
	queueURL string
	waitSecs int32
}

// NewSQS creates a channel over the given queue URL. Receive uses long
// polling with the supplied wait (seconds, capped at SQS's 20).
func NewSQS(client SQSAPI, queueURL string, waitSecs int32) *SQS {
	if waitSecs > 20 {
		waitSecs = 20
	}
	return &SQS{client: client, queueURL: queueURL, waitSecs: waitSecs}
}

// Publish sends one snapshot payload and returns the SQS message ID.
func (s *SQS) Publish(ctx context.Context, body []byte) (string, error) {
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("queue: send message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for exactly one message. A batch with more than one
// message is a misconfigured queue and is surfaced as ErrBatchTooLarge
// rather than silently processing only the first.
func (s *SQS) Receive(ctx context.Context) (*Delivery, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     s.waitSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	if len(out.Messages) > 1 {
		return nil, ErrBatchTooLarge
	}

	msg := out.Messages[0]
	return &Delivery{
		ID:      aws.ToString(msg.MessageId),
		Body:    []byte(aws.ToString(msg.Body)),
		Receipt: aws.ToString(msg.ReceiptHandle),
	}, nil
}

// Ack deletes the message by receipt handle.
func (s *SQS) Ack(ctx context.Context, d *Delivery) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(d.Receipt),
	})
	if err != nil {
		return fmt.Errorf("queue: delete message %s: %w", d.ID, err)
	}
	return nil
}
