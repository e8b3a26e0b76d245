package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// Fake is an in-memory Client for tests. It enforces the contract's
// register-once rule and supports fault injection: forced call errors and
// a confirmed-digest override to simulate a ledger that anchored
// something other than what was submitted.
type Fake struct {
	mu      sync.Mutex
	entries map[fakeKey]digest.Digest
	txSeq   int

	// AnchorErr, when set, fails AnchorCreate and AnchorUpdate.
	AnchorErr error
	// FetchErr, when set, fails Fetch.
	FetchErr error
	// ConfirmOverride, when non-empty, is reported as the confirmed
	// digest instead of the submitted one (and stored as such).
	ConfirmOverride digest.Digest

	// Creates and Updates record every successful anchoring call.
	Creates []uuid.UUID
	Updates []uuid.UUID
}

type fakeKey struct {
	kind entity.Kind
	id   uuid.UUID
}

var _ Client = (*Fake)(nil)

// NewFake returns an empty fake ledger.
func NewFake() *Fake {
	return &Fake{entries: make(map[fakeKey]digest.Digest)}
}

// AnchorCreate implements Client. A second create for the same id fails,
// mirroring the contract's double-registration guard.
func (f *Fake) AnchorCreate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AnchorErr != nil {
		return Receipt{}, f.AnchorErr
	}

	key := fakeKey{kind: kind, id: id}
	if _, exists := f.entries[key]; exists {
		return Receipt{}, fmt.Errorf("ledger: %s %s already registered", kind, id)
	}

	confirmed := d
	if f.ConfirmOverride != "" {
		confirmed = f.ConfirmOverride
	}
	f.entries[key] = confirmed
	f.Creates = append(f.Creates, id)
	return f.receipt(confirmed), nil
}

// AnchorUpdate implements Client. Updating an unregistered id fails.
func (f *Fake) AnchorUpdate(ctx context.Context, kind entity.Kind, id uuid.UUID, d digest.Digest) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AnchorErr != nil {
		return Receipt{}, f.AnchorErr
	}

	key := fakeKey{kind: kind, id: id}
	if _, exists := f.entries[key]; !exists {
		return Receipt{}, fmt.Errorf("ledger: %s %s not registered", kind, id)
	}

	confirmed := d
	if f.ConfirmOverride != "" {
		confirmed = f.ConfirmOverride
	}
	f.entries[key] = confirmed
	f.Updates = append(f.Updates, id)
	return f.receipt(confirmed), nil
}

// Fetch implements Client.
func (f *Fake) Fetch(ctx context.Context, kind entity.Kind, id uuid.UUID) (digest.Digest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FetchErr != nil {
		return "", false, f.FetchErr
	}

	d, ok := f.entries[fakeKey{kind: kind, id: id}]
	if !ok {
		return "", false, nil
	}
	return d, true, nil
}

// Tamper overwrites the stored digest out-of-band, simulating ledger-side
// tampering for verifier tests.
func (f *Fake) Tamper(kind entity.Kind, id uuid.UUID, d digest.Digest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[fakeKey{kind: kind, id: id}] = d
}

func (f *Fake) receipt(d digest.Digest) Receipt {
	f.txSeq++
	return Receipt{
		TxRef:           fmt.Sprintf("0xfake%060d", f.txSeq),
		ConfirmedDigest: d,
		Submitter:       "0x000000000000000000000000000000000000fa4e",
		ConfirmedAt:     time.Unix(1700000000+int64(f.txSeq), 0).UTC(),
	}
}
