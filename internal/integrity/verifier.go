// Package integrity reconciles the three copies of every anchored
// record: the digest is recomputed from the stored payload and compared
// against the persisted digest column and against the digest the ledger
// reports. Both comparisons always run; a failure on one axis never
// short-circuits the other.
package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
	"github.com/trailmark/trailmark/internal/ledger"
	"github.com/trailmark/trailmark/internal/store"
)

// DefaultConcurrency bounds the ledger fan-out of VerifyAll when no
// explicit limit is configured.
const DefaultConcurrency = 8

// Verifier recomputes digests and reconciles them against the database
// and the ledger.
type Verifier struct {
	mappings map[entity.Kind]entity.Mapping
	ledger   ledger.Client
	limit    int
	log      *slog.Logger
}

// NewVerifier builds a verifier. limit <= 0 selects DefaultConcurrency;
// log may be nil.
func NewVerifier(mappings map[entity.Kind]entity.Mapping, lc ledger.Client, limit int, log *slog.Logger) *Verifier {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{mappings: mappings, ledger: lc, limit: limit, log: log}
}

// Verify checks one record against both reference copies and classifies
// it. The stored-axis verdict is informative even when the ledger call
// fails; in that case Err is set and the label is Unknown.
func (v *Verifier) Verify(ctx context.Context, rec *store.Record) Report {
	rep := Report{
		Kind:         rec.Kind,
		ID:           rec.ID,
		StoredDigest: rec.Digest,
	}

	m, ok := v.mappings[rec.Kind]
	if !ok {
		rep.Err = fmt.Errorf("no field mapping for entity kind %q", rec.Kind)
		rep.Label = Unknown
		return rep
	}

	res, err := digest.Compute(m, rec.Payload)
	if err != nil {
		rep.Err = fmt.Errorf("recompute digest for %s/%s: %w", rec.Kind, rec.ID, err)
		rep.Label = Unknown
		return rep
	}
	rep.RecomputedDigest = res.Digest

	if rep.StoredDigest == rep.RecomputedDigest {
		rep.StoredVerdict = Match
	} else if rep.StoredDigest == "" {
		rep.StoredVerdict = Missing
	} else {
		rep.StoredVerdict = Mismatch
	}

	id, err := uuid.Parse(rec.ID)
	if err != nil {
		rep.Err = fmt.Errorf("entity id %q is not a UUID: %w", rec.ID, err)
		rep.Label = Unknown
		return rep
	}

	anchored, found, err := v.ledger.Fetch(ctx, rec.Kind, id)
	if err != nil {
		rep.Err = fmt.Errorf("fetch anchored digest for %s/%s: %w", rec.Kind, rec.ID, err)
		rep.Label = Unknown
		return rep
	}

	switch {
	case !found:
		rep.LedgerVerdict = Missing
	case anchored == rep.RecomputedDigest:
		rep.LedgerDigest = anchored
		rep.LedgerVerdict = Match
	default:
		rep.LedgerDigest = anchored
		rep.LedgerVerdict = Mismatch
	}

	rep.Label = classify(rep.StoredVerdict, rep.LedgerVerdict)

	if rep.Label != Valid {
		v.log.Warn("integrity check flagged record",
			"kind", string(rep.Kind), "id", rep.ID,
			"label", string(rep.Label),
			"stored", string(rep.StoredVerdict),
			"ledger", string(rep.LedgerVerdict))
	}

	return rep
}

// VerifyAll checks every record with bounded ledger fan-out. Reports
// come back in input order. Per-record failures land in the report's
// Err; only context cancellation aborts the sweep.
func (v *Verifier) VerifyAll(ctx context.Context, recs []*store.Record) ([]Report, error) {
	reports := make([]Report, len(recs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.limit)

	for i, rec := range recs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = v.Verify(ctx, rec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
