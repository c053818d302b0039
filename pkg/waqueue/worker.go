package waqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthconcierge/wa-concierge/pkg/config"
	"github.com/healthconcierge/wa-concierge/pkg/evolution"
)

// Sender delivers a message to the provider. Implemented by
// *evolution.Client in production; stubbed in tests.
type Sender interface {
	SendText(ctx context.Context, instance, number, text string, delayMs int) (evolution.SendTextResult, error)
	ConnectionState(ctx context.Context, instance string) (string, error)
}

// Worker owns one consumer in the shared consumer group for a single
// tenant instance's stream. Mirrors the teacher's queue.Worker shape:
// an id, a stop channel closed exactly once, and a WaitGroup the caller
// can block on for graceful shutdown.
type Worker struct {
	instance   string
	consumer   string
	group      string
	redis      *redis.Client
	queue      *Queue
	bucket     *TokenBucket
	sender     Sender
	cfg        *config.QueueConfig
	logger     *slog.Logger
	semaphore  chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	connMu        sync.Mutex
	connState     string
	connCheckedAt time.Time
}

// NewWorker builds a Worker for instance, with consumerName unique across
// the process/replica (e.g. "<pod>-<instance>-<n>").
func NewWorker(instance, consumerName string, client *redis.Client, queue *Queue, bucket *TokenBucket, sender Sender, cfg *config.QueueConfig) *Worker {
	return &Worker{
		instance:  instance,
		consumer:  consumerName,
		group:     cfg.ConsumerGroup,
		redis:     client,
		queue:     queue,
		bucket:    bucket,
		sender:    sender,
		cfg:       cfg,
		logger:    slog.Default().With("component", "waqueue-worker", "instance", instance, "consumer", consumerName),
		semaphore: make(chan struct{}, maxInt(cfg.WorkerConcurrency, 1)),
		stopCh:    make(chan struct{}),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// EnsureGroup creates the consumer group at the stream tail ("$") if it
// doesn't already exist, so pre-existing entries are never replayed by a
// freshly started group.
func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, streamKey(w.instance), w.group, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("waqueue: create consumer group: %w", err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && containsString(err.Error(), "BUSYGROUP")
}

func containsString(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// Start launches the consume loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and blocks until its loop (and any
// in-flight sends bounded by the semaphore) have exited.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	if err := w.EnsureGroup(ctx); err != nil {
		w.logger.Error("failed to ensure consumer group", "error", err)
	}

	for {
		select {
		case <-w.stopCh:
			w.logger.Info("worker stopping")
			return
		case <-ctx.Done():
			return
		default:
		}

		w.reclaimPass(ctx)

		streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{streamKey(w.instance), ">"},
			Count:    w.cfg.ReadCount,
			Block:    w.cfg.ReadBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("xreadgroup error, reconnecting", "error", err)
			time.Sleep(250 * time.Millisecond)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				w.dispatch(ctx, entry)
			}
		}
	}
}

// reclaimPass adopts pending entries idle longer than WA_STREAM_CLAIM_IDLE_MS
// from dead or stalled consumers, guarding against orphaned entries after a
// worker crash.
func (w *Worker) reclaimPass(ctx context.Context) {
	claimed, _, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey(w.instance),
		Group:    w.group,
		Consumer: w.consumer,
		MinIdle:  w.cfg.ClaimIdle,
		Start:    "0",
		Count:    int64(w.cfg.ReadCount),
	}).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("reclaim pass failed", "error", err)
		return
	}
	for _, entry := range claimed {
		w.dispatch(ctx, entry)
	}
}

// dispatch acquires a semaphore slot and processes one stream entry,
// blocking the calling goroutine (not the whole worker) on token-bucket
// acquisition.
func (w *Worker) dispatch(ctx context.Context, entry redis.XMessage) {
	select {
	case w.semaphore <- struct{}{}:
	case <-ctx.Done():
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.semaphore }()
		w.process(ctx, entry)
	}()
}

func (w *Worker) process(ctx context.Context, entry redis.XMessage) {
	raw, ok := entry.Values["payload"]
	if !ok {
		w.ackAndDelete(ctx, entry.ID)
		return
	}
	payload, ok := raw.(string)
	if !ok {
		w.ackAndDelete(ctx, entry.ID)
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		w.logger.Warn("malformed queue entry, routing to DLQ", "entry_id", entry.ID, "error", err)
		_ = w.queue.deadLetter(ctx, w.instance, DLQEntry{FinalError: "json_decode_error", FailedAt: time.Now().Unix()})
		w.ackAndDelete(ctx, entry.ID)
		return
	}

	if err := w.bucket.Acquire(ctx, w.instance); err != nil {
		return // context cancelled during shutdown
	}

	if !w.cfg.OptimisticSend {
		if !w.connectionReady(ctx) {
			w.retry(ctx, entry.ID, msg)
			return
		}
	}

	if _, err := w.sender.SendText(ctx, w.instance, msg.To, msg.Text, 0); err != nil {
		w.logger.Warn("send failed", "message_id", msg.MessageID, "attempts", msg.Attempts, "error", err)
		w.retry(ctx, entry.ID, msg)
		return
	}

	w.ackAndDelete(ctx, entry.ID)
}

func (w *Worker) connectionReady(ctx context.Context) bool {
	w.connMu.Lock()
	if time.Since(w.connCheckedAt) < w.cfg.CheckConnTTL {
		ready := w.connState == "open"
		w.connMu.Unlock()
		return ready
	}
	w.connMu.Unlock()

	state, err := w.sender.ConnectionState(ctx, w.instance)
	w.connMu.Lock()
	defer w.connMu.Unlock()
	if err != nil {
		w.logger.Warn("connection state check failed", "error", err)
		return w.connState == "open"
	}
	w.connState = state
	w.connCheckedAt = time.Now()
	return state == "open"
}

// retry increments attempts and either re-appends the entry to the tail
// of the stream (best-effort FIFO) or, once MaxDeliveries is reached,
// moves it to the DLQ. Either way the current entry is acked and deleted
// so it never builds up in the pending list.
func (w *Worker) retry(ctx context.Context, entryID string, msg Message) {
	msg.Attempts++

	if msg.Attempts >= w.cfg.MaxDeliveries {
		w.logger.Warn("max deliveries exceeded, routing to DLQ", "message_id", msg.MessageID, "attempts", msg.Attempts)
		_ = w.queue.deadLetter(ctx, w.instance, DLQEntry{
			Message:    msg,
			FinalError: "max_deliveries_exceeded",
			FailedAt:   time.Now().Unix(),
		})
		w.ackAndDelete(ctx, entryID)
		return
	}

	// Ack and delete the pending entry before sleeping, not after: a
	// backoff (up to MaxBackoff) can exceed the claim-idle threshold,
	// and a still-pending entry is fair game for another worker's
	// XAutoClaim reclaim pass while this goroutine sleeps, causing the
	// same message to be retried twice.
	w.ackAndDelete(ctx, entryID)

	backoff := jitter(backoffFor(msg.Attempts, w.cfg.BaseBackoff, w.cfg.MaxBackoff))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
	}

	if err := w.queue.requeue(ctx, w.instance, msg); err != nil {
		w.logger.Error("failed to requeue message", "message_id", msg.MessageID, "error", err)
	}
}

func backoffFor(attempts int, base, max time.Duration) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts-1)))
	if d > max {
		d = max
	}
	return d
}

func (w *Worker) ackAndDelete(ctx context.Context, entryID string) {
	stream := streamKey(w.instance)
	if err := w.redis.XAck(ctx, stream, w.group, entryID).Err(); err != nil {
		w.logger.Warn("xack failed", "entry_id", entryID, "error", err)
	}
	if err := w.redis.XDel(ctx, stream, entryID).Err(); err != nil {
		w.logger.Warn("xdel failed", "entry_id", entryID, "error", err)
	}
}
