package services

import (
	"context"
	"time"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/types"
	"github.com/google/uuid"
)

// EventPublisher delivers account events to the audit channel.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.AccountEvent) error
}

// publishTimeout caps how long a request waits on the event channel.
const publishTimeout = 2 * time.Second

type eventEmitter struct {
	publisher EventPublisher
	logger    logging.Logger
	timeout   time.Duration
}

func newEventEmitter(logger logging.Logger) eventEmitter {
	return eventEmitter{logger: logger, timeout: publishTimeout}
}

// emit publishes best-effort: a failed or slow publish is logged and never
// fails the calling operation. The publish outlives a cancelled request but
// not the timeout.
func (e eventEmitter) emit(ctx context.Context, event types.AccountEvent) {
	if e.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = publishTimeout
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := e.publisher.PublishEvent(publishCtx, event); err != nil {
		e.logger.Warn(ctx, "publish account event failed", "type", event.Type, "event_id", event.ID, "error", err)
	}
}

func actorRef(identity types.Identity) *int {
	id := identity.ID
	return &id
}
