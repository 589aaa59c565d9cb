package lane

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	sqsMaxBatch      = 10
	sqsMaxWait       = 20 * time.Second
	sqsMaxVisibility = 12 * time.Hour
)

// sqsAPI is the subset of *sqs.Client used by SQSTransport.
type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, opts ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSTransport maps each lane to an SQS queue of the same name (plus an
// optional prefix) and its dead-letter destination to "{lane}_dlq".
// Delayed redelivery uses ChangeMessageVisibility, so delays are rounded up
// to whole seconds and capped at twelve hours.
type SQSTransport struct {
	client     sqsAPI
	prefix     string
	visibility time.Duration

	mu   sync.RWMutex
	urls map[string]string
}

// NewSQSTransport builds a transport on client; lane names map to queue names.
func NewSQSTransport(client sqsAPI, cfg Config) *SQSTransport {
	vis := cfg.VisibilityTimeout
	if vis <= 0 {
		vis = 30 * time.Second
	}
	return &SQSTransport{
		client:     client,
		prefix:     cfg.QueuePrefix,
		visibility: vis,
		urls:       make(map[string]string),
	}
}

func (t *SQSTransport) queueURL(ctx context.Context, name string) (string, error) {
	t.mu.RLock()
	url, ok := t.urls[name]
	t.mu.RUnlock()
	if ok {
		return url, nil
	}

	out, err := t.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(t.prefix + name)})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnknownLane, name, err)
	}

	t.mu.Lock()
	t.urls[name] = aws.ToString(out.QueueUrl)
	t.mu.Unlock()
	return aws.ToString(out.QueueUrl), nil
}

func (t *SQSTransport) Publish(ctx context.Context, lane string, body []byte) error {
	url, err := t.queueURL(ctx, lane)
	if err != nil {
		return err
	}
	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sqs publish to %s: %w", lane, err)
	}
	return nil
}

func (t *SQSTransport) PullBatch(ctx context.Context, lane string, limit int, wait time.Duration) ([]Delivery, error) {
	url, err := t.queueURL(ctx, lane)
	if err != nil {
		return nil, err
	}

	out, err := t.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: int32(min(max(limit, 1), sqsMaxBatch)),
		WaitTimeSeconds:     int32(max(min(wait, sqsMaxWait), 0) / time.Second),
		VisibilityTimeout:   seconds(t.visibility),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive from %s: %w", lane, err)
	}

	batch := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		batch = append(batch, Delivery{
			Lane:         lane,
			ID:           aws.ToString(m.MessageId),
			Receipt:      aws.ToString(m.ReceiptHandle),
			Body:         []byte(aws.ToString(m.Body)),
			ReceiveCount: count,
		})
	}
	return batch, nil
}

func (t *SQSTransport) Ack(ctx context.Context, d Delivery) error {
	url, err := t.queueURL(ctx, d.Lane)
	if err != nil {
		return err
	}
	_, err = t.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(d.Receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete from %s: %w", d.Lane, err)
	}
	return nil
}

func (t *SQSTransport) ReturnWithDelay(ctx context.Context, d Delivery, delay time.Duration) error {
	url, err := t.queueURL(ctx, d.Lane)
	if err != nil {
		return err
	}
	_, err = t.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     aws.String(d.Receipt),
		VisibilityTimeout: seconds(min(delay, sqsMaxVisibility)),
	})
	if err != nil {
		return fmt.Errorf("sqs change visibility on %s: %w", d.Lane, err)
	}
	return nil
}

// DeadLetter copies the body to "{lane}_dlq" with the reason as a message
// attribute, then deletes the original.
func (t *SQSTransport) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	dlqURL, err := t.queueURL(ctx, d.Lane+"_dlq")
	if err != nil {
		return err
	}
	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(dlqURL),
		MessageBody: aws.String(string(d.Body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"reason":      {DataType: aws.String("String"), StringValue: aws.String(nonEmpty(reason))},
			"source_lane": {DataType: aws.String("String"), StringValue: aws.String(d.Lane)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs dead-letter %s: %w", d.Lane, err)
	}
	return t.Ack(ctx, d)
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	return int32(math.Ceil(d.Seconds()))
}

// SQS rejects empty string attributes.
func nonEmpty(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
