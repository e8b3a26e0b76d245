// Package protocol implements the anchored-write pipeline: normalize the
// input, compute the digest, anchor it on the ledger, compare the
// confirmed digest fail-closed, back up the canonical payload
// best-effort, then persist. The database row is written last, so a row
// never exists without its ledger anchor.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
	"github.com/trailmark/trailmark/internal/integrity"
	"github.com/trailmark/trailmark/internal/ledger"
	"github.com/trailmark/trailmark/internal/normalize"
	"github.com/trailmark/trailmark/internal/store"
)

// Pipeline wires the normalizer, hasher, ledger, backup store, and
// record repository into the create/update/verify operations.
type Pipeline struct {
	mappings map[entity.Kind]entity.Mapping
	ledger   ledger.Client
	backup   *backup.Client
	store    *store.Store
	verifier *integrity.Verifier
	log      *slog.Logger
	now      func() time.Time
}

// Options configures optional pipeline behavior.
type Options struct {
	// VerifyConcurrency bounds the ledger fan-out of bulk verification.
	// Zero selects the default.
	VerifyConcurrency int
	// Now supplies timestamps for audit columns. Nil means wall clock.
	Now func() time.Time
	// Log may be nil.
	Log *slog.Logger
}

// New builds a pipeline over the given collaborators.
func New(mappings map[entity.Kind]entity.Mapping, lc ledger.Client, bc *backup.Client, st *store.Store, opts Options) *Pipeline {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		mappings: mappings,
		ledger:   lc,
		backup:   bc,
		store:    st,
		verifier: integrity.NewVerifier(mappings, lc, opts.VerifyConcurrency, log),
		log:      log,
		now:      now,
	}
}

// Prepared is a normalized payload together with its canonical
// serialization and digest, ready to anchor.
type Prepared struct {
	Payload   canonical.Object
	Canonical []byte
	Digest    digest.Digest
}

// Prepare normalizes the raw input and computes the digest. defaults
// supplies prior values for fields the input omits (updates merge over
// the stored payload this way).
func (p *Pipeline) Prepare(kind entity.Kind, id uuid.UUID, raw map[string]any, defaults canonical.Object) (Prepared, error) {
	m, ok := p.mappings[kind]
	if !ok {
		return Prepared{}, NewValidationError(kind, id.String(), fmt.Errorf("unsupported entity kind %q", kind))
	}

	payload, err := normalize.Payload(m, id.String(), raw, defaults)
	if err != nil {
		return Prepared{}, NewValidationError(kind, id.String(), err)
	}

	res, err := digest.Compute(m, payload)
	if err != nil {
		return Prepared{}, NewValidationError(kind, id.String(), err)
	}

	return Prepared{Payload: payload, Canonical: res.Canonical, Digest: res.Digest}, nil
}

// Create normalizes, anchors, backs up, and persists a new record.
//
// If the digest is already anchored on the ledger and matches the
// computed one, anchoring is skipped and the record is persisted
// directly; this recovers from a crash between a confirmed anchor and
// the database write. An anchored digest that differs fails the create.
func (p *Pipeline) Create(ctx context.Context, kind entity.Kind, id uuid.UUID, raw map[string]any, actor string) (*store.Record, error) {
	prep, err := p.Prepare(kind, id, raw, nil)
	if err != nil {
		return nil, err
	}

	anchored, found, err := p.ledger.Fetch(ctx, kind, id)
	if err != nil {
		return nil, NewLedgerFailureError(kind, id.String(), err)
	}

	var txRef string
	switch {
	case found && anchored == prep.Digest:
		p.log.Info("digest already anchored, resuming interrupted create",
			"kind", string(kind), "id", id.String())
	case found:
		return nil, NewHashMismatchError(kind, id.String(), string(prep.Digest), string(anchored))
	default:
		receipt, err := p.ledger.AnchorCreate(ctx, kind, id, prep.Digest)
		if err != nil {
			return nil, NewLedgerFailureError(kind, id.String(), err)
		}
		if receipt.ConfirmedDigest != prep.Digest {
			return nil, NewHashMismatchError(kind, id.String(), string(prep.Digest), string(receipt.ConfirmedDigest))
		}
		txRef = receipt.TxRef
	}

	rec := &store.Record{
		Kind:    kind,
		ID:      id.String(),
		Payload: prep.Payload,
		Digest:  prep.Digest,
		TxRef:   txRef,
		Backup:  p.backUp(ctx, kind, id, "create", prep),
	}
	at := p.now().UTC()
	rec.Audit = store.Audit{CreatedBy: actor, UpdatedBy: actor, CreatedAt: at, UpdatedAt: at}

	if err := p.store.Insert(ctx, *rec); err != nil {
		return nil, fmt.Errorf("persist %s/%s: %w", kind, id, err)
	}

	return rec, nil
}

// Update merges the mutation over the stored payload, re-anchors the new
// digest, and mutates the record in place. The prior payload supplies
// every field the mutation omits.
func (p *Pipeline) Update(ctx context.Context, kind entity.Kind, id uuid.UUID, mutation map[string]any, actor string) (*store.Record, error) {
	prior, err := p.store.Get(ctx, kind, id.String())
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", kind, id, err)
	}

	prep, err := p.Prepare(kind, id, mutation, prior.Payload)
	if err != nil {
		return nil, err
	}

	receipt, err := p.ledger.AnchorUpdate(ctx, kind, id, prep.Digest)
	if err != nil {
		return nil, NewLedgerFailureError(kind, id.String(), err)
	}
	if receipt.ConfirmedDigest != prep.Digest {
		return nil, NewHashMismatchError(kind, id.String(), string(prep.Digest), string(receipt.ConfirmedDigest))
	}

	rec := &store.Record{
		Kind:    kind,
		ID:      id.String(),
		Payload: prep.Payload,
		Digest:  prep.Digest,
		TxRef:   receipt.TxRef,
		Backup:  p.backUp(ctx, kind, id, "update", prep),
	}
	rec.Audit = store.Audit{
		CreatedBy: prior.Audit.CreatedBy,
		CreatedAt: prior.Audit.CreatedAt,
		UpdatedBy: actor,
		UpdatedAt: p.now().UTC(),
	}

	if err := p.store.Update(ctx, *rec); err != nil {
		return nil, fmt.Errorf("persist %s/%s: %w", kind, id, err)
	}

	return rec, nil
}

// backUp uploads the canonical payload best-effort. A nil pointer on
// failure is persisted as-is; backups never gate the write path.
func (p *Pipeline) backUp(ctx context.Context, kind entity.Kind, id uuid.UUID, operation string, prep Prepared) *backup.Pointer {
	if p.backup == nil {
		return nil
	}

	meta := backup.Meta{
		Kind:      kind,
		Operation: operation,
		EntityID:  id.String(),
	}
	if name, ok := prep.Payload["name"].(canonical.String); ok {
		meta.Name = string(name)
	}

	return p.backup.Backup(ctx, meta, prep.Canonical)
}

// Verify reconciles one stored record against the ledger.
func (p *Pipeline) Verify(ctx context.Context, kind entity.Kind, id string) (integrity.Report, error) {
	rec, err := p.store.Get(ctx, kind, id)
	if err != nil {
		return integrity.Report{}, fmt.Errorf("verify %s/%s: %w", kind, id, err)
	}
	return p.verifier.Verify(ctx, rec), nil
}

// VerifyKind reconciles every stored record of one kind.
func (p *Pipeline) VerifyKind(ctx context.Context, kind entity.Kind) ([]integrity.Report, error) {
	recs, err := p.store.ListKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	return p.verifier.VerifyAll(ctx, recs)
}

// VerifyAll reconciles every stored record.
func (p *Pipeline) VerifyAll(ctx context.Context) ([]integrity.Report, error) {
	recs, err := p.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return p.verifier.VerifyAll(ctx, recs)
}

// EnsureIntegrity verifies one record and converts any non-valid
// classification into an error. Callers gate sensitive reads on it.
func (p *Pipeline) EnsureIntegrity(ctx context.Context, kind entity.Kind, id string) (integrity.Report, error) {
	rep, err := p.Verify(ctx, kind, id)
	if err != nil {
		return rep, err
	}
	if rep.Err != nil {
		return rep, NewLedgerFailureError(kind, id, rep.Err)
	}
	if rep.Label != integrity.Valid {
		return rep, NewIntegrityViolationError(kind, id, string(rep.Label))
	}
	return rep, nil
}
