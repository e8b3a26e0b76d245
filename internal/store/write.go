package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/trailmark/trailmark/internal/entity"
)

// ErrDuplicate reports an insert for a (kind, id) that already exists.
var ErrDuplicate = errors.New("store: record already exists")

// Insert persists a freshly created record. A second insert for the same
// (kind, id) fails with ErrDuplicate: creates never overwrite.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	payloadJSON, err := marshalPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	backupCID, backupAt := backupColumns(rec)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(kind, id, payload, digest, tx_ref, backup_cid, backup_at, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(rec.Kind),
		rec.ID,
		payloadJSON,
		string(rec.Digest),
		rec.TxRef,
		backupCID,
		backupAt,
		rec.Audit.CreatedBy,
		rec.Audit.UpdatedBy,
		rec.Audit.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Audit.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("insert record %s/%s: %w", rec.Kind, rec.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert record %s/%s: %w", rec.Kind, rec.ID, err)
	}

	return nil
}

// Update mutates an existing record in place. Fails with ErrNotFound if
// the (kind, id) row does not exist. Created-by/created-at are preserved.
func (s *Store) Update(ctx context.Context, rec Record) error {
	payloadJSON, err := marshalPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	backupCID, backupAt := backupColumns(rec)

	result, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET payload = ?, digest = ?, tx_ref = ?, backup_cid = ?, backup_at = ?, updated_by = ?, updated_at = ?
		WHERE kind = ? AND id = ?
	`,
		payloadJSON,
		string(rec.Digest),
		rec.TxRef,
		backupCID,
		backupAt,
		rec.Audit.UpdatedBy,
		rec.Audit.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(rec.Kind),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %s/%s: %w", rec.Kind, rec.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %s/%s: rows affected: %w", rec.Kind, rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update record %s/%s: %w", rec.Kind, rec.ID, ErrNotFound)
	}

	return nil
}

// OverwriteDigest rewrites the digest column directly, bypassing the
// pipeline. Exists for tests that simulate out-of-band tampering with the
// database copy.
func (s *Store) OverwriteDigest(ctx context.Context, kind, id, newDigest string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE records SET digest = ? WHERE kind = ? AND id = ?`,
		newDigest, kind, id,
	)
	if err != nil {
		return fmt.Errorf("overwrite digest: %w", err)
	}
	return nil
}

// Delete removes a record row. Exists for tests that reconstruct
// partial-failure states; the pipeline itself never deletes.
func (s *Store) Delete(ctx context.Context, kind entity.Kind, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = ? AND id = ?`,
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", kind, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s/%s: rows affected: %w", kind, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete record %s/%s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func backupColumns(rec Record) (cid, at sql.NullString) {
	if rec.Backup == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: rec.Backup.ContentID, Valid: true},
		sql.NullString{String: rec.Backup.UploadedAt.UTC().Format(time.RFC3339Nano), Valid: true}
}
