package store

import (
	"time"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// Record is a database-resident anchored record: the normalized payload
// plus the digest persisted at anchor time, the ledger transaction
// reference, the optional backup pointer, and audit fields. Created by
// create, mutated in place by update, never soft-versioned.
type Record struct {
	Kind    entity.Kind
	ID      string
	Payload canonical.Object
	Digest  digest.Digest
	TxRef   string
	Backup  *backup.Pointer
	Audit   Audit
}

// Audit carries the who/when columns.
type Audit struct {
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
