package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// ErrNotFound reports that no record exists for the requested (kind, id).
var ErrNotFound = errors.New("store: record not found")

const recordColumns = `kind, id, payload, digest, tx_ref, backup_cid, backup_at, created_by, updated_by, created_at, updated_at`

// Get fetches one record by kind and id.
func (s *Store) Get(ctx context.Context, kind entity.Kind, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND id = ?`,
		string(kind), id,
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get record %s/%s: %w", kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get record %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

// ListKind returns every record of one kind, ordered by id for
// deterministic output.
func (s *Store) ListKind(ctx context.Context, kind entity.Kind) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE kind = ? ORDER BY id`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListAll returns every record, ordered by kind then id.
func (s *Store) ListAll(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY kind, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		kind, id, payloadJSON, digestHex, txRef string
		backupCID, backupAt                     sql.NullString
		createdBy, updatedBy                    string
		createdAt, updatedAt                    string
	)

	if err := row.Scan(&kind, &id, &payloadJSON, &digestHex, &txRef,
		&backupCID, &backupAt, &createdBy, &updatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Kind:    entity.Kind(kind),
		ID:      id,
		Payload: payload,
		Digest:  digest.Digest(digestHex),
		TxRef:   txRef,
		Audit: Audit{
			CreatedBy: createdBy,
			UpdatedBy: updatedBy,
		},
	}

	if rec.Audit.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if rec.Audit.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}

	if backupCID.Valid {
		ptr := &backup.Pointer{ContentID: backupCID.String}
		if backupAt.Valid {
			if ptr.UploadedAt, err = parseTime(backupAt.String); err != nil {
				return nil, fmt.Errorf("backup_at: %w", err)
			}
		}
		rec.Backup = ptr
	}

	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
