package waqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Admin exposes operator controls over a tenant instance's stream and
// consumer group, independent of any running Worker.
type Admin struct {
	redis *redis.Client
	queue *Queue
	group string
}

// NewAdmin builds an Admin bound to the given consumer group name.
func NewAdmin(client *redis.Client, group string) *Admin {
	return &Admin{redis: client, queue: NewQueue(client), group: group}
}

// ResetGroupToTail moves the group's read cursor to "$" (only future
// entries), discarding any backlog without touching the stream itself.
func (a *Admin) ResetGroupToTail(ctx context.Context, instance string) error {
	return a.setGroupID(ctx, instance, "$")
}

// ResetGroupToHead moves the group's read cursor to "0" so the next read
// replays the entire remaining stream.
func (a *Admin) ResetGroupToHead(ctx context.Context, instance string) error {
	return a.setGroupID(ctx, instance, "0")
}

func (a *Admin) setGroupID(ctx context.Context, instance, id string) error {
	if err := a.redis.XGroupSetID(ctx, streamKey(instance), a.group, id).Err(); err != nil {
		return fmt.Errorf("waqueue: reset group cursor: %w", err)
	}
	return nil
}

// RecreateGroup destroys and recreates the consumer group at the tail,
// for recovering from a corrupted or irreparably stuck group.
func (a *Admin) RecreateGroup(ctx context.Context, instance string) error {
	_ = a.redis.XGroupDestroy(ctx, streamKey(instance), a.group).Err()
	if err := a.redis.XGroupCreateMkStream(ctx, streamKey(instance), a.group, "$").Err(); err != nil {
		return fmt.Errorf("waqueue: recreate group: %w", err)
	}
	return nil
}

// ClaimPending force-claims up to count pending entries idle longer than
// minIdle onto consumerName, for manually draining a dead worker's backlog.
func (a *Admin) ClaimPending(ctx context.Context, instance, consumerName string, minIdle time.Duration, count int64) ([]redis.XMessage, error) {
	entries, _, err := a.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey(instance),
		Group:    a.group,
		Consumer: consumerName,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("waqueue: claim pending: %w", err)
	}
	return entries, nil
}

// HealthReport summarizes an instance's queue state for operator dashboards
// and alerting.
type HealthReport struct {
	Instance         string
	QueueDepth       int64
	DLQDepth         int64
	ConsumerCount    int
	PendingTotal     int64
	OldestPendingAge time.Duration
	Issues           []string
}

const (
	highQueueDepthThreshold = 1000
	highDLQDepthThreshold   = 50
	stuckConsumerIdle       = 5 * time.Minute
)

// Health builds a HealthReport for instance, tagging anomalies the way an
// operator would want paged: no active consumers despite a non-empty
// queue, a backlog past the high-water mark, pending entries with no
// owner, a swollen DLQ, or a consumer that's stopped making progress.
func (a *Admin) Health(ctx context.Context, instance string) (HealthReport, error) {
	report := HealthReport{Instance: instance}

	depth, err := a.queue.QueueDepth(ctx, instance)
	if err != nil {
		return report, err
	}
	report.QueueDepth = depth

	dlqDepth, err := a.queue.DLQDepth(ctx, instance)
	if err != nil {
		return report, err
	}
	report.DLQDepth = dlqDepth

	consumers, err := a.redis.XInfoConsumers(ctx, streamKey(instance), a.group).Result()
	if err != nil && !isNoSuchGroupErr(err) {
		return report, fmt.Errorf("waqueue: xinfo consumers: %w", err)
	}
	report.ConsumerCount = len(consumers)

	pending, err := a.redis.XPending(ctx, streamKey(instance), a.group).Result()
	if err != nil && !isNoSuchGroupErr(err) {
		return report, fmt.Errorf("waqueue: xpending: %w", err)
	}
	if pending != nil {
		report.PendingTotal = pending.Count
	}

	for _, c := range consumers {
		idle := time.Duration(c.Idle) * time.Millisecond
		if idle > report.OldestPendingAge {
			report.OldestPendingAge = idle
		}
		if c.Pending > 0 && idle > stuckConsumerIdle {
			report.Issues = append(report.Issues, "STUCK_CONSUMER_"+c.Name)
		}
	}

	if report.QueueDepth > 0 && report.ConsumerCount == 0 {
		report.Issues = append(report.Issues, "NO_ACTIVE_CONSUMERS")
	}
	if report.QueueDepth > highQueueDepthThreshold {
		report.Issues = append(report.Issues, "HIGH_QUEUE_DEPTH")
	}
	if report.PendingTotal > 0 && report.ConsumerCount == 0 {
		report.Issues = append(report.Issues, "PENDING_WITHOUT_CONSUMER")
	}
	if report.DLQDepth > highDLQDepthThreshold {
		report.Issues = append(report.Issues, "HIGH_DLQ_DEPTH")
	}

	return report, nil
}

func isNoSuchGroupErr(err error) bool {
	return err != nil && containsString(err.Error(), "NOGROUP")
}
