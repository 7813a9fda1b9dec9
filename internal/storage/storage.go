package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/types"
)

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("storage backend disabled")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.ArchiveConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, ErrDisabled
	case "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Archiver writes account events to object storage, one JSON object per
// event under <prefix>/<yyyy-mm-dd>/<event id>.json.
type Archiver struct {
	backend ObjectStorage
	prefix  string
	logger  logging.Logger
}

// NewArchiver constructs an Archiver for the provided backend.
func NewArchiver(backend ObjectStorage, prefix string, logger logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Archiver{
		backend: backend,
		prefix:  strings.Trim(strings.TrimSpace(prefix), "/"),
		logger:  logger,
	}
}

// Prepare ensures the target bucket exists.
func (a *Archiver) Prepare(ctx context.Context) error {
	if err := a.backend.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", a.backend.Bucket(), err)
	}
	return nil
}

// ObjectKey returns the key the event is archived under.
func (a *Archiver) ObjectKey(event types.AccountEvent) string {
	day := event.OccurredAt.UTC().Format("2006-01-02")
	return path.Join(a.prefix, day, event.ID+".json")
}

// Archive stores the event. Re-archiving the same event overwrites the same
// object, so redelivered messages are harmless.
func (a *Archiver) Archive(ctx context.Context, event types.AccountEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("event id is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	key := a.ObjectKey(event)
	if err := a.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Debug(ctx, "event archived", "event_id", event.ID, "type", event.Type, "key", key)
	return nil
}
