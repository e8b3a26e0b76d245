// Package ledger anchors entity digests on per-kind ledger contracts and
// reads them back for verification.
//
// Clients are constructed once at application start and passed explicitly
// into the components that need them, so tests can substitute a fake.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// Receipt is the confirmed result of an anchoring transaction. The
// ConfirmedDigest is recovered from the contract's emitted event, not
// echoed from the input: it is the ledger's own record of what was
// anchored, and the caller compares it against the locally computed
// digest (fail-closed).
type Receipt struct {
	// TxRef is the transaction hash in hex.
	TxRef string
	// ConfirmedDigest is the digest the contract recorded, per its event.
	ConfirmedDigest digest.Digest
	// Submitter is the address the contract attributed the write to.
	Submitter string
	// ConfirmedAt is the contract's confirmation timestamp.
	ConfirmedAt time.Time
}

// Client is the anchoring interface the pipeline and verifier consume.
//
// AnchorCreate and AnchorUpdate block until the ledger confirms the
// transaction; there is no built-in timeout, but both honor context
// cancellation, so callers may bound the wait. Failures are surfaced to
// the caller with no automatic retry.
type Client interface {
	// AnchorCreate registers the entity's digest on its kind's contract.
	AnchorCreate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error)

	// AnchorUpdate overwrites the stored digest. The ledger keeps only
	// the latest digest; there is no on-ledger history.
	AnchorUpdate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error)

	// Fetch reads the currently anchored digest. found is false when the
	// entity was never registered (or the contract reports a zero digest).
	Fetch(ctx context.Context, kind entity.Kind, id uuid.UUID) (d digest.Digest, found bool, err error)
}

// ErrEventMissing reports that a confirmed transaction's logs did not
// contain the expected Registered/Updated event. That is a ledger-side
// invariant violation: the anchoring operation must be treated as failed
// even though the transaction was mined.
var ErrEventMissing = errors.New("ledger: confirmation logs missing anchor event")
