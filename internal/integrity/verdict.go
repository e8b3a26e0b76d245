package integrity

import (
	"github.com/trailmark/trailmark/internal/digest"
	"github.com/trailmark/trailmark/internal/entity"
)

// Verdict is the outcome of comparing the recomputed digest against one
// reference copy (the database column or the ledger).
type Verdict string

const (
	// Match means the reference digest equals the recomputed one.
	Match Verdict = "MATCH"
	// Mismatch means the reference digest differs from the recomputed one.
	Mismatch Verdict = "MISMATCH"
	// Missing means the reference copy holds no digest for the entity.
	Missing Verdict = "MISSING"
)

// Label is the overall classification derived from the two per-axis
// verdicts.
type Label string

const (
	// Valid: both reference copies match the recomputed digest.
	Valid Label = "valid"
	// Tampered: at least one reference copy disagrees with the
	// recomputed digest.
	Tampered Label = "tampered"
	// NotOnChain: the ledger holds no digest for the entity.
	NotOnChain Label = "not_on_chain"
	// Unknown: a reference copy could not be consulted, so no
	// trustworthy classification exists. Err carries the cause.
	Unknown Label = "unknown"
)

// Report is the result of verifying one record. The stored axis is
// always evaluated; the ledger axis may be inconclusive when the ledger
// call fails, in which case Err is set and Label is Unknown.
type Report struct {
	Kind entity.Kind
	ID   string

	RecomputedDigest digest.Digest
	StoredDigest     digest.Digest
	LedgerDigest     digest.Digest

	StoredVerdict Verdict
	LedgerVerdict Verdict

	Label Label
	Err   error
}

// classify derives the overall label from the two axis verdicts.
// Mismatches dominate: a record that is both tampered and absent from
// the ledger reports as tampered.
func classify(stored, ledger Verdict) Label {
	if stored == Mismatch || ledger == Mismatch {
		return Tampered
	}
	if ledger == Missing {
		return NotOnChain
	}
	return Valid
}
