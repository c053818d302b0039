package waqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue provides the producer-side operations: enqueue and depth. Workers
// use the lower-level stream/group primitives directly (see worker.go).
type Queue struct {
	redis *redis.Client
}

// NewQueue wraps an existing Redis client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{redis: client}
}

// Enqueue appends a message to instance's stream. Idempotent on
// messageID: a repeat call within 24h returns ErrIdempotentDuplicate
// without appending a second entry.
func (q *Queue) Enqueue(ctx context.Context, instance, to, text, messageID string, metadata map[string]any) error {
	if messageID == "" {
		messageID = fmt.Sprintf("%s-%d", instance, time.Now().UnixNano())
	}

	inserted, err := q.redis.SetNX(ctx, idempotencyKey(messageID), "1", idempotencyTTL).Result()
	if err != nil {
		return fmt.Errorf("waqueue: idempotency check: %w", err)
	}
	if !inserted {
		return ErrIdempotentDuplicate
	}

	msg := Message{
		MessageID: messageID,
		To:        to,
		Text:      text,
		QueuedAt:  time.Now().Unix(),
		Attempts:  0,
		Metadata:  metadata,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("waqueue: encode message: %w", err)
	}

	err = q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(instance),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("waqueue: xadd: %w", err)
	}
	return nil
}

// QueueDepth returns the current stream length for instance.
func (q *Queue) QueueDepth(ctx context.Context, instance string) (int64, error) {
	n, err := q.redis.XLen(ctx, streamKey(instance)).Result()
	if err != nil {
		return 0, fmt.Errorf("waqueue: xlen: %w", err)
	}
	return n, nil
}

// DLQDepth returns the current DLQ stream length for instance.
func (q *Queue) DLQDepth(ctx context.Context, instance string) (int64, error) {
	n, err := q.redis.XLen(ctx, dlqKey(instance)).Result()
	if err != nil {
		return 0, fmt.Errorf("waqueue: dlq xlen: %w", err)
	}
	return n, nil
}

func (q *Queue) requeue(ctx context.Context, instance string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("waqueue: encode requeue message: %w", err)
	}
	return q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(instance),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
}

func (q *Queue) deadLetter(ctx context.Context, instance string, entry DLQEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("waqueue: encode dlq entry: %w", err)
	}
	return q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqKey(instance),
		Values: map[string]any{"payload": payload},
	}).Err()
}
