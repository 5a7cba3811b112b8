package sqs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavichu/picstream/pkg/picstream"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []types.Message
	deleted  []string
	received int
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.received++
	out := &awssqs.ReceiveMessageOutput{Messages: q.messages}
	q.messages = nil
	return out, nil
}

func (q *fakeQueue) DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deleted = append(q.deleted, aws.ToString(params.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (q *fakeQueue) receiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.received
}

type fakeHandler struct {
	keys []string
	err  error
}

func (h *fakeHandler) HandleUploadCompleted(ctx context.Context, event picstream.CompletionEvent) error {
	h.keys = append(h.keys, event.Key)
	return h.err
}

const notificationBody = `{
	"Records": [
		{
			"eventTime": "2024-06-01T12:00:00.000Z",
			"s3": {"object": {"key": "uploaded-images/rec-1.jpg"}}
		}
	]
}`

func message(id, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("receipt-" + id),
		Body:          aws.String(body),
	}
}

func TestNewConsumer(t *testing.T) {
	queue := &fakeQueue{}
	handler := &fakeHandler{}

	tests := []struct {
		name        string
		client      API
		queueURL    string
		handler     Handler
		expectError bool
	}{
		{"missing client", nil, "https://sqs.test/queue", handler, true},
		{"missing queue url", queue, "", handler, true},
		{"missing handler", queue, "https://sqs.test/queue", nil, true},
		{"valid", queue, "https://sqs.test/queue", handler, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer, err := NewConsumer(tt.client, tt.queueURL, tt.handler)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, consumer)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, consumer)
			}
		})
	}
}

func TestProcessDeliversAndDeletes(t *testing.T) {
	queue := &fakeQueue{}
	handler := &fakeHandler{}
	consumer, err := NewConsumer(queue, "https://sqs.test/queue", handler)
	require.NoError(t, err)

	consumer.process(context.Background(), message("m1", notificationBody))

	assert.Equal(t, []string{"uploaded-images/rec-1.jpg"}, handler.keys)
	assert.Equal(t, []string{"receipt-m1"}, queue.deleted)
}

func TestProcessLeavesMessageOnTransientFailure(t *testing.T) {
	queue := &fakeQueue{}
	handler := &fakeHandler{err: picstream.ErrAnalysisUnavailable}
	consumer, err := NewConsumer(queue, "https://sqs.test/queue", handler)
	require.NoError(t, err)

	consumer.process(context.Background(), message("m1", notificationBody))

	// The message stays on the queue so the visibility timeout redelivers it.
	assert.Len(t, handler.keys, 1)
	assert.Empty(t, queue.deleted)
}

func TestProcessDeletesOnPermanentFailure(t *testing.T) {
	queue := &fakeQueue{}
	handler := &fakeHandler{err: picstream.ErrNotFound}
	consumer, err := NewConsumer(queue, "https://sqs.test/queue", handler)
	require.NoError(t, err)

	consumer.process(context.Background(), message("m1", notificationBody))

	// Retrying cannot make an unknown record appear; the message is dropped.
	assert.Equal(t, []string{"receipt-m1"}, queue.deleted)
}

func TestProcessDropsMalformedBody(t *testing.T) {
	queue := &fakeQueue{}
	handler := &fakeHandler{}
	consumer, err := NewConsumer(queue, "https://sqs.test/queue", handler)
	require.NoError(t, err)

	consumer.process(context.Background(), message("m1", "not json"))

	assert.Empty(t, handler.keys)
	assert.Equal(t, []string{"receipt-m1"}, queue.deleted)
}

func TestParseNotification(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		events, err := parseNotification(notificationBody)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, "uploaded-images/rec-1.jpg", events[0].Key)
		assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), events[0].Timestamp)
	})

	t.Run("url-encoded key", func(t *testing.T) {
		body := `{"Records":[{"s3":{"object":{"key":"uploaded-images/rec+1%282%29.jpg"}}}]}`
		events, err := parseNotification(body)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, "uploaded-images/rec 1(2).jpg", events[0].Key)
	})

	t.Run("empty records", func(t *testing.T) {
		events, err := parseNotification(`{"Records":[]}`)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("test event without records", func(t *testing.T) {
		// S3 sends a bare test event when the notification is configured.
		events, err := parseNotification(`{"Service":"Amazon S3","Event":"s3:TestEvent"}`)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseNotification("{")
		assert.Error(t, err)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	queue := &fakeQueue{messages: []types.Message{message("m1", notificationBody)}}
	handler := &fakeHandler{}
	consumer, err := NewConsumer(queue, "https://sqs.test/queue", handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	// Let at least one poll complete, then stop.
	deadline := time.After(2 * time.Second)
	for queue.receiveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("consumer never polled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}
