package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/adminpanel/apiserver/config"
)

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("mq backend disabled")

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, ErrDisabled
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
