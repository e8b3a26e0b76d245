// Package backup uploads full normalized payloads to a content-addressed
// store, best-effort. A backup failure never fails the surrounding
// create/update: the caller proceeds with an absent pointer. This is a
// deliberate asymmetry against the ledger anchor client, which is allowed
// to fail the whole operation.
package backup

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/trailmark/trailmark/internal/entity"
)

// Meta tags an upload for later operational inspection. Tags do not
// participate in content addressing.
type Meta struct {
	Name      string
	Kind      entity.Kind
	Operation string // "create" | "update"
	EntityID  string
}

// CAS is a content-addressed store. Put must be idempotent: storing the
// same bytes twice yields the same content id and is not an error.
type CAS interface {
	Put(ctx context.Context, data []byte, meta Meta) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}

// ContentID returns the CIDv1 (raw codec, sha2-256 multihash) for data.
// This is the id a conforming CAS must return from Put.
func ContentID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("backup: multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
