package inline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Queue delivers message-created events to the subscribed handler in the publishing
// goroutine. It backs single-process deployments without a broker.
type Queue struct {
	mu      sync.RWMutex
	handler func(context.Context, string) error
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// PublishMessageCreated runs the handler synchronously. Without a subscriber the event is dropped.
// Handler errors are logged, not returned: the message is already stored.
func (q *Queue) PublishMessageCreated(ctx context.Context, messageID string) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()

	if handler == nil {
		q.logger.Warn("inline_queue_no_subscriber", "message_id", messageID)
		return nil
	}
	if err := handler(ctx, messageID); err != nil {
		q.logger.Error("message_handler_failed", "message_id", messageID, "error", err)
	}
	return nil
}

// Subscribe registers handler without blocking.
func (q *Queue) Subscribe(handler func(context.Context, string) error) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// SubscribeMessageCreated registers handler and blocks until ctx is done.
func (q *Queue) SubscribeMessageCreated(ctx context.Context, handler func(context.Context, string) error) error {
	if handler == nil {
		return errors.New("inline queue: handler is nil")
	}
	q.Subscribe(handler)
	<-ctx.Done()

	q.mu.Lock()
	q.handler = nil
	q.mu.Unlock()
	return nil
}
