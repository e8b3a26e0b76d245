// Package digest computes the fixed-size digests that get anchored on the
// ledger. Two strategies coexist and are selected per entity kind via an
// explicit table, never inferred from the payload shape:
//
//   - CanonicalJSON hashes the canonical serialization of the full payload.
//     Structure-delimited, so adjacent fields can never be confused.
//   - PositionalTuple hashes the raw field values packed in declared order
//     without delimiters. This is the legacy batch encoding, kept only for
//     compatibility with already-anchored ledger state. It cannot in
//     principle distinguish "ab"+"c" from "a"+"bc"; do not extend it to
//     new kinds and do not silently unify it with the canonical strategy.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/entity"
)

// Digest is a lowercase hex-encoded SHA-256 digest.
type Digest string

// Size is the digest length in bytes.
const Size = sha256.Size

// Strategy identifies a hashing strategy.
type Strategy string

const (
	CanonicalJSON   Strategy = "canonical-json"
	PositionalTuple Strategy = "positional-tuple"
)

// strategyByKind is the explicit per-kind strategy table. Batch predates
// the canonical serialization and stays on the positional tuple.
var strategyByKind = map[entity.Kind]Strategy{
	entity.KindBatch:        PositionalTuple,
	entity.KindCheckpoint:   CanonicalJSON,
	entity.KindPackage:      CanonicalJSON,
	entity.KindProduct:      CanonicalJSON,
	entity.KindShipment:     CanonicalJSON,
	entity.KindSegment:      CanonicalJSON,
	entity.KindTelemetry:    CanonicalJSON,
	entity.KindBreach:       CanonicalJSON,
	entity.KindRegistration: CanonicalJSON,
}

// StrategyFor returns the hashing strategy for an entity kind.
func StrategyFor(kind entity.Kind) (Strategy, error) {
	s, ok := strategyByKind[kind]
	if !ok {
		return "", fmt.Errorf("no digest strategy for entity kind %q", kind)
	}
	return s, nil
}

// Result carries a computed digest together with the canonical string it
// was derived from. For the positional strategy the canonical string is
// still the canonical JSON serialization (persisted and backed up), even
// though the digest input is the packed tuple.
type Result struct {
	Digest    Digest
	Canonical []byte
}

// Compute canonicalizes the payload and hashes it under the kind's
// strategy.
func Compute(m entity.Mapping, payload canonical.Object) (Result, error) {
	canonicalBytes, err := canonical.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("digest %s: %w", m.Kind, err)
	}

	strategy, err := StrategyFor(entity.Kind(m.Kind))
	if err != nil {
		return Result{}, err
	}

	var sum [Size]byte
	switch strategy {
	case CanonicalJSON:
		sum = sha256.Sum256(canonicalBytes)
	case PositionalTuple:
		packed, err := packTuple(m, payload)
		if err != nil {
			return Result{}, fmt.Errorf("digest %s: %w", m.Kind, err)
		}
		sum = sha256.Sum256(packed)
	default:
		return Result{}, fmt.Errorf("digest %s: unknown strategy %q", m.Kind, strategy)
	}

	return Result{
		Digest:    Digest(hex.EncodeToString(sum[:])),
		Canonical: canonicalBytes,
	}, nil
}

// packTuple concatenates raw field values in declared field order with no
// delimiters. The legacy wire encoding: fields must be scalars.
func packTuple(m entity.Mapping, payload canonical.Object) ([]byte, error) {
	var packed []byte
	for _, f := range m.Fields {
		v, ok := payload[f.Name]
		if !ok {
			return nil, fmt.Errorf("field %q missing from payload", f.Name)
		}
		switch val := v.(type) {
		case canonical.String:
			packed = append(packed, val...)
		case canonical.Int:
			packed = append(packed, fmt.Sprintf("%d", val)...)
		case canonical.Bool:
			packed = append(packed, fmt.Sprintf("%t", val)...)
		case canonical.Null:
			// Absent: contributes nothing, like the empty string.
		default:
			return nil, fmt.Errorf("field %q: %T cannot be tuple-packed", f.Name, v)
		}
	}
	return packed, nil
}

// Bytes32 decodes the digest into the 32-byte form the ledger contract
// consumes.
func (d Digest) Bytes32() ([Size]byte, error) {
	var out [Size]byte
	raw, err := hex.DecodeString(string(d))
	if err != nil {
		return out, fmt.Errorf("digest %q is not hex: %w", d, err)
	}
	if len(raw) != Size {
		return out, fmt.Errorf("digest %q has %d bytes, want %d", d, len(raw), Size)
	}
	copy(out[:], raw)
	return out, nil
}

// FromBytes32 converts a ledger-side 32-byte digest to its hex form.
func FromBytes32(b [Size]byte) Digest {
	return Digest(hex.EncodeToString(b[:]))
}

// IsZero reports whether the digest is empty or the all-zero value the
// ledger returns for unregistered entities.
func (d Digest) IsZero() bool {
	if d == "" {
		return true
	}
	raw, err := hex.DecodeString(string(d))
	if err != nil {
		return false
	}
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}
