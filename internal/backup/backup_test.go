package backup

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/trailmark/internal/entity"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testMeta() Meta {
	return Meta{
		Name:      "checkpoint-2c9a7f04",
		Kind:      entity.KindCheckpoint,
		Operation: "create",
		EntityID:  "2c9a7f04-8f2e-4a27-9f3d-6f1f2b8a9c11",
	}
}

func TestContentIDDeterministic(t *testing.T) {
	a, err := ContentID([]byte("payload"))
	require.NoError(t, err)
	b, err := ContentID([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := ContentID([]byte("other"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte(`{"checkpointId":"abc"}`)

	id, err := store.Put(ctx, data, testMeta())
	require.NoError(t, err)

	wantID, err := ContentID(data)
	require.NoError(t, err)
	assert.Equal(t, wantID, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStorePutIdempotent(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("same bytes")

	id1, err := store.Put(ctx, data, testMeta())
	require.NoError(t, err)
	id2, err := store.Put(ctx, data, testMeta())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestFSStoreGetMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	missing, err := ContentID([]byte("never stored"))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), missing)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClientBackupSuccess(t *testing.T) {
	mem := NewMemStore()
	client := NewClient(mem, fixedNow, slog.Default())

	ptr := client.Backup(context.Background(), testMeta(), []byte("payload"))
	require.NotNil(t, ptr)
	assert.NotEmpty(t, ptr.ContentID)
	assert.Equal(t, fixedNow(), ptr.UploadedAt)
	assert.Equal(t, 1, mem.Len())
}

// Any store failure converts to a nil pointer: the boundary contract that
// lets create/update always proceed to persistence.
func TestClientBackupFailureIsNil(t *testing.T) {
	mem := NewMemStore()
	mem.PutErr = errors.New("store unavailable")
	client := NewClient(mem, fixedNow, slog.Default())

	ptr := client.Backup(context.Background(), testMeta(), []byte("payload"))
	assert.Nil(t, ptr)
}

func TestClientNilCAS(t *testing.T) {
	client := NewClient(nil, fixedNow, slog.Default())
	assert.Nil(t, client.Backup(context.Background(), testMeta(), []byte("x")))
}
