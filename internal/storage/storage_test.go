package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	ensured   bool
	ensureErr error
	putErr    error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error {
	f.ensured = true
	return f.ensureErr
}

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "audit-bucket" }

func TestArchiver_Archive(t *testing.T) {
	backend := newFakeObjectStorage()
	archiver := NewArchiver(backend, "/audit/", nil)
	ctx := context.Background()

	event := types.AccountEvent{
		ID:         "5b0c",
		Type:       types.EventUserLocked,
		Email:      "alice@x.com",
		OccurredAt: time.Date(2026, 4, 1, 23, 30, 0, 0, time.FixedZone("x", -2*3600)),
	}

	key := archiver.ObjectKey(event)
	assert.Equal(t, "audit/2026-04-02/5b0c.json", key, "dates are bucketed in UTC")

	require.NoError(t, archiver.Archive(ctx, event))
	assert.Equal(t, "application/json", backend.types[key])

	var loaded types.AccountEvent
	require.NoError(t, json.Unmarshal(backend.objects[key], &loaded))
	assert.Equal(t, event.Email, loaded.Email)
	assert.Equal(t, event.Type, loaded.Type)

	// Redelivery overwrites the same object.
	require.NoError(t, archiver.Archive(ctx, event))
	assert.Len(t, backend.objects, 1)
}

func TestArchiver_Errors(t *testing.T) {
	ctx := context.Background()

	archiver := NewArchiver(newFakeObjectStorage(), "audit", nil)
	assert.Error(t, archiver.Archive(ctx, types.AccountEvent{Type: types.EventUserDeleted}))

	assert.Empty(t, archiver.backend.(*fakeObjectStorage).objects)

	failing := newFakeObjectStorage()
	failing.putErr = errors.New("bucket full")
	err := NewArchiver(failing, "audit", nil).Archive(ctx, types.AccountEvent{ID: "1", Type: types.EventUserDeleted})
	assert.ErrorContains(t, err, "bucket full")
}

func TestArchiver_Prepare(t *testing.T) {
	backend := newFakeObjectStorage()
	require.NoError(t, NewArchiver(backend, "audit", nil).Prepare(context.Background()))
	assert.True(t, backend.ensured)

	backend.ensureErr = errors.New("denied")
	err := NewArchiver(backend, "audit", nil).Prepare(context.Background())
	assert.ErrorContains(t, err, "audit-bucket")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.ArchiveConfig{Backend: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(ctx, config.ArchiveConfig{Backend: "s4"})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Open(ctx, config.ArchiveConfig{Backend: "minio"})
	assert.ErrorContains(t, err, "minio endpoint is required")

	_, err = Open(ctx, config.ArchiveConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "gcs bucket is required")
}
