// Package waqueue is the egress queue-worker: it accepts outbound
// WhatsApp messages per tenant instance, rate-limits and retries
// delivery through the Evolution provider, and survives worker crashes
// without losing messages, using Redis Streams as the durable queue.
package waqueue

import "time"

// Message is the envelope stored in a stream entry's "payload" field.
type Message struct {
	MessageID string         `json:"message_id"`
	To        string         `json:"to"`
	Text      string         `json:"text"`
	QueuedAt  int64          `json:"queued_at"`
	Attempts  int            `json:"attempts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DLQEntry is a Message that exhausted retries or failed to decode,
// with the terminal failure recorded.
type DLQEntry struct {
	Message
	FinalError string `json:"final_error"`
	FailedAt   int64  `json:"failed_at"`
}

func streamKey(instance string) string    { return "wa:" + instance + ":stream" }
func dlqKey(instance string) string       { return "wa:" + instance + ":dlq" }
func bucketKey(instance string) string    { return "wa:" + instance + ":bucket" }
func bucketTSKey(instance string) string  { return "wa:" + instance + ":bucket:ts" }
func idempotencyKey(messageID string) string { return "wa:msg:" + messageID }

const (
	instanceAddedChannel   = "wa:instances:added"
	instanceRemovedChannel = "wa:instances:removed"

	idempotencyTTL = 24 * time.Hour
	streamMaxLen   = 10_000
)

// InstanceEvent is the payload published on the instance discovery
// channels.
type InstanceEvent struct {
	InstanceName   string `json:"instance_name"`
	OrganizationID string `json:"organization_id"`
	Action         string `json:"action"` // "add" or "remove"
}
