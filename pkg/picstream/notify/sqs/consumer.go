// Package sqs consumes S3 event notifications from an SQS queue and feeds
// them into the moderation pipeline. Delivery is at least once; the
// pipeline's conditional transitions absorb replays, so the consumer only
// has to decide whether a message is worth redelivering.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/kavichu/picstream/pkg/picstream"
)

// API is the subset of the SQS client the consumer uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
}

// Handler processes one completion event.
type Handler interface {
	HandleUploadCompleted(ctx context.Context, event picstream.CompletionEvent) error
}

// Consumer long-polls one queue of S3 event notification messages.
type Consumer struct {
	client   API
	queueURL string
	handler  Handler
	waitTime int32
	batch    int32
}

// NewConsumer creates a consumer over the given queue.
func NewConsumer(client API, queueURL string, handler Handler) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("sqs client is required")
	}
	if queueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	return &Consumer{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		waitTime: 20,
		batch:    10,
	}, nil
}

// Run polls until ctx is cancelled. Receive errors are logged and polling
// continues after a short pause.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := c.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.batch,
			WaitTimeSeconds:     c.waitTime,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("receive message failed", "queue", c.queueURL, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, message := range out.Messages {
			c.process(ctx, message)
		}
	}
}

// process handles one message and deletes it unless the failure is worth a
// redelivery (transient store or analysis outages). Malformed messages are
// deleted; retrying cannot fix them.
func (c *Consumer) process(ctx context.Context, message types.Message) {
	events, err := parseNotification(aws.ToString(message.Body))
	if err != nil {
		slog.Error("dropping malformed notification", "error", err)
		c.delete(ctx, message)
		return
	}

	for _, event := range events {
		err := c.handler.HandleUploadCompleted(ctx, event)
		if err == nil {
			continue
		}
		if picstream.IsTransient(err) {
			slog.Warn("transient failure, leaving message for redelivery", "key", event.Key, "error", err)
			return
		}
		slog.Error("notification handling failed", "key", event.Key, "error", err)
	}

	c.delete(ctx, message)
}

func (c *Consumer) delete(ctx context.Context, message types.Message) {
	_, err := c.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: message.ReceiptHandle,
	})
	if err != nil {
		// The message reappears after the visibility timeout; the pipeline
		// treats the replay as a no-op.
		slog.Warn("delete message failed", "error", err)
	}
}

// s3Notification is the shape of an S3 event notification body.
type s3Notification struct {
	Records []struct {
		EventTime time.Time `json:"eventTime"`
		S3        struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// parseNotification extracts completion events from a notification body.
// Object keys arrive URL-encoded.
func parseNotification(body string) ([]picstream.CompletionEvent, error) {
	var notification s3Notification
	if err := json.Unmarshal([]byte(body), &notification); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	var events []picstream.CompletionEvent
	for _, record := range notification.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", record.S3.Object.Key, err)
		}
		if key == "" {
			continue
		}
		events = append(events, picstream.CompletionEvent{
			Key:       key,
			Timestamp: record.EventTime,
		})
	}

	return events, nil
}
