package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testRecord(kind entity.Kind, id string) Record {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Record{
		Kind: kind,
		ID:   id,
		Payload: canonical.Object{
			"batchId":   canonical.String(id),
			"productId": canonical.String("p-1"),
			"quantity":  canonical.Int(120),
			"status":    canonical.String("CREATED"),
		},
		Digest: digest.Digest("aa00000000000000000000000000000000000000000000000000000000000000"),
		TxRef:  "0xdeadbeef",
		Audit: Audit{
			CreatedBy: "user-1",
			UpdatedBy: "user-1",
			CreatedAt: at,
			UpdatedAt: at,
		},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord(entity.KindBatch, "b-1")
	rec.Backup = &backup.Pointer{
		ContentID:  "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
		UploadedAt: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
	}
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.Get(ctx, entity.KindBatch, "b-1")
	require.NoError(t, err)

	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Payload, got.Payload)
	assert.Equal(t, rec.Digest, got.Digest)
	assert.Equal(t, rec.TxRef, got.TxRef)
	require.NotNil(t, got.Backup)
	assert.Equal(t, rec.Backup.ContentID, got.Backup.ContentID)
	assert.True(t, rec.Backup.UploadedAt.Equal(got.Backup.UploadedAt))
	assert.True(t, rec.Audit.CreatedAt.Equal(got.Audit.CreatedAt))
	assert.Equal(t, "user-1", got.Audit.CreatedBy)
}

func TestInsertWithoutBackupLeavesNilPointer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testRecord(entity.KindBatch, "b-2")))

	got, err := s.Get(ctx, entity.KindBatch, "b-2")
	require.NoError(t, err)
	assert.Nil(t, got.Backup)
}

func TestInsertDuplicateFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord(entity.KindBatch, "b-3")
	require.NoError(t, s.Insert(ctx, rec))

	err := s.Insert(ctx, rec)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestSameIDDifferentKindsCoexist(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testRecord(entity.KindBatch, "shared-id")))
	require.NoError(t, s.Insert(ctx, testRecord(entity.KindProduct, "shared-id")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateMutatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord(entity.KindBatch, "b-4")
	require.NoError(t, s.Insert(ctx, rec))

	rec.Payload["status"] = canonical.String("SHIPPED")
	rec.Digest = digest.Digest("bb00000000000000000000000000000000000000000000000000000000000000")
	rec.TxRef = "0xfeedface"
	rec.Audit.UpdatedBy = "user-2"
	rec.Audit.UpdatedAt = rec.Audit.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.Update(ctx, rec))

	got, err := s.Get(ctx, entity.KindBatch, "b-4")
	require.NoError(t, err)
	assert.Equal(t, canonical.String("SHIPPED"), got.Payload["status"])
	assert.Equal(t, rec.Digest, got.Digest)
	assert.Equal(t, "0xfeedface", got.TxRef)
	assert.Equal(t, "user-2", got.Audit.UpdatedBy)
	// created-by/created-at survive the update
	assert.Equal(t, "user-1", got.Audit.CreatedBy)
	assert.True(t, got.Audit.UpdatedAt.After(got.Audit.CreatedAt))
}

func TestUpdateMissingRecordFails(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(context.Background(), testRecord(entity.KindBatch, "nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissingRecordFails(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), entity.KindBatch, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListKindOrdersAndFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testRecord(entity.KindBatch, "b-z")))
	require.NoError(t, s.Insert(ctx, testRecord(entity.KindBatch, "b-a")))
	require.NoError(t, s.Insert(ctx, testRecord(entity.KindProduct, "p-1")))

	recs, err := s.ListKind(ctx, entity.KindBatch)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b-a", recs[0].ID)
	assert.Equal(t, "b-z", recs[1].ID)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOverwriteDigestBypassesPipeline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testRecord(entity.KindBatch, "b-5")))

	tampered := "cc00000000000000000000000000000000000000000000000000000000000000"
	require.NoError(t, s.OverwriteDigest(ctx, "batch", "b-5", tampered))

	got, err := s.Get(ctx, entity.KindBatch, "b-5")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest(tampered), got.Digest)
}

func TestErrorsUnwrapToSentinels(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, entity.KindBatch, "absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "batch/absent")
}
