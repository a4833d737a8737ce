package queue

import "context"

const (
	// DispatchQueue holds one job per delivery record.
	DispatchQueue = "email.dispatch"
	// DispatchDLQ receives jobs rejected as unprocessable.
	DispatchDLQ = "dlq.email.dispatch"
)

// Publisher publishes delivery jobs to the dispatch queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery jobs from the dispatch queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// EnqueueGuard deduplicates initial enqueues by delivery record id, so
// submitting the same record twice cannot fan out into duplicate jobs.
// Retry re-enqueues bypass the guard on purpose.
type EnqueueGuard interface {
	Acquire(ctx context.Context, deliveryID string) (bool, error)
}
