package waqueue

import "errors"

// ErrIdempotentDuplicate is returned by Enqueue when message_id was
// already seen within the idempotency TTL; the caller should treat this
// as success, not failure.
var ErrIdempotentDuplicate = errors.New("waqueue: message_id already enqueued")

// ErrProviderTransient names a non-2xx or transport-level failure when
// sending to the provider. Nothing in this package returns or checks it:
// the worker retries every SendText error with backoff.
var ErrProviderTransient = errors.New("waqueue: provider send failed")
