package queue

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent     []string
	messages []types.Message
	deleted  []string
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(params.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQS_PublishReturnsMessageID(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQS(fake, "https://sqs.example/queue", 10)

	id, err := q.Publish(context.Background(), []byte(`{"services":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	assert.Equal(t, []string{`{"services":[]}`}, fake.sent)
}

func TestSQS_ReceiveMapsDelivery(t *testing.T) {
	fake := &fakeSQS{messages: []types.Message{{
		MessageId:     aws.String("m-7"),
		Body:          aws.String("body"),
		ReceiptHandle: aws.String("rh-7"),
	}}}
	q := NewSQS(fake, "https://sqs.example/queue", 10)

	d, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "m-7", d.ID)
	assert.Equal(t, "rh-7", d.Receipt)
	assert.Equal(t, []byte("body"), d.Body)
}

func TestSQS_ReceiveEmptyQueue(t *testing.T) {
	q := NewSQS(&fakeSQS{}, "https://sqs.example/queue", 0)

	d, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSQS_ReceiveRejectsMultiMessageBatch(t *testing.T) {
	fake := &fakeSQS{messages: []types.Message{
		{MessageId: aws.String("m-1")},
		{MessageId: aws.String("m-2")},
	}}
	q := NewSQS(fake, "https://sqs.example/queue", 0)

	_, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestSQS_AckDeletesByReceipt(t *testing.T) {
	fake := &fakeSQS{}
	q := NewSQS(fake, "https://sqs.example/queue", 0)

	err := q.Ack(context.Background(), &Delivery{ID: "m-7", Receipt: "rh-7"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rh-7"}, fake.deleted)
}
