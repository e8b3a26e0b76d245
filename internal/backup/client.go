package backup

import (
	"context"
	"log/slog"
	"time"
)

// Pointer references a stored backup copy. Its absence is a valid,
// non-error state on a record.
type Pointer struct {
	ContentID  string
	UploadedAt time.Time
}

// Client wraps a CAS with the best-effort policy and logging.
type Client struct {
	cas CAS
	now func() time.Time
	log *slog.Logger
}

// NewClient builds a backup client. now may be nil (wall clock).
func NewClient(cas CAS, now func() time.Time, log *slog.Logger) *Client {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cas: cas, now: now, log: log}
}

// Backup uploads the payload and returns a pointer, or nil on any
// failure. Errors are logged and swallowed: nothing past this boundary
// may fail the caller's create or update.
func (c *Client) Backup(ctx context.Context, meta Meta, payload []byte) *Pointer {
	if c.cas == nil {
		return nil
	}

	id, err := c.cas.Put(ctx, payload, meta)
	if err != nil {
		c.log.Warn("backup upload failed, continuing without pointer",
			"kind", string(meta.Kind), "id", meta.EntityID,
			"operation", meta.Operation, "err", err)
		return nil
	}

	return &Pointer{
		ContentID:  id.String(),
		UploadedAt: c.now().UTC(),
	}
}
