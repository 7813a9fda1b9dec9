package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/types"
)

const (
	AttrEventID   = "event_id"
	AttrEventType = "event_type"
)

const (
	defaultHandleAttempts = 5
	defaultRetryBackoff   = 500 * time.Millisecond
	maxRetryBackoff       = 30 * time.Second
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// EventHandler processes one decoded account event.
type EventHandler func(ctx context.Context, event types.AccountEvent) error

// EventBus carries account events over a Backend on a single channel.
type EventBus struct {
	backend  Backend
	channel  string
	logger   logging.Logger
	attempts int
	backoff  time.Duration
}

// EventBusOption customizes an EventBus.
type EventBusOption func(*EventBus)

// WithRetry sets how many times a subscriber handler runs for one message
// and the initial wait between runs. The wait doubles after each failure.
func WithRetry(attempts int, backoff time.Duration) EventBusOption {
	return func(b *EventBus) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if backoff >= 0 {
			b.backoff = backoff
		}
	}
}

// NewEventBus constructs an EventBus publishing to channel.
func NewEventBus(backend Backend, channel string, logger logging.Logger, opts ...EventBusOption) (*EventBus, error) {
	if backend == nil {
		return nil, errors.New("mq backend is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("events channel is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	b := &EventBus{
		backend:  backend,
		channel:  channel,
		logger:   logger,
		attempts: defaultHandleAttempts,
		backoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// PublishEvent encodes the event as JSON and sends it to the channel.
func (b *EventBus) PublishEvent(ctx context.Context, event types.AccountEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		AttrEventID:   event.ID,
		AttrEventType: string(event.Type),
	}
	if _, err := b.backend.Publish(ctx, b.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// SubscribeEvents consumes the channel until ctx is done. Messages that do
// not decode are logged and acknowledged so they cannot block the queue.
// A failing handler is retried with backoff; once the attempts run out the
// event is logged and acknowledged. Only a cancelled ctx nacks.
func (b *EventBus) SubscribeEvents(ctx context.Context, handler EventHandler) error {
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var event types.AccountEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type == "" {
			b.logger.Warn(ctx, "dropping malformed event", "message_id", msg.ID, "error", err)
			return nil
		}
		return b.handleWithRetry(ctx, msg.ID, event, handler)
	})
}

func (b *EventBus) handleWithRetry(ctx context.Context, messageID string, event types.AccountEvent, handler EventHandler) error {
	wait := b.backoff
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err = handler(ctx, event); err == nil {
			return nil
		}
		if attempt == b.attempts {
			break
		}
		b.logger.Warn(ctx, "event handler failed, retrying", "message_id", messageID, "event_id", event.ID, "attempt", attempt, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, maxRetryBackoff)
	}
	b.logger.Error(ctx, "dropping event after retries", "message_id", messageID, "event_id", event.ID, "type", event.Type, "attempts", b.attempts, "error", err)
	return nil
}

// Close closes the underlying backend.
func (b *EventBus) Close() error {
	return b.backend.Close()
}
