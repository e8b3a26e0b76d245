// Package entity defines the declarative field-mapping tables that
// parameterize the generic normalizer. The tables live in an embedded CUE
// file: CUE's schema unification rejects malformed tables (unknown coercion
// kinds, missing names) before the Go-side structural checks run.
//
// This replaces scattered per-entity coercion code with one table per kind
// consumed by a single normalizer.
package entity

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed mappings.cue
var mappingsCUE []byte

// FieldKind selects the coercion rule the normalizer applies to a field.
type FieldKind string

const (
	// FieldString trims and keeps the value as-is.
	FieldString FieldKind = "string"
	// FieldIdentifier trims and lower-cases; UUID-shaped values are
	// re-rendered through uuid.Parse so digests are case-insensitive
	// for identity fields.
	FieldIdentifier FieldKind = "identifier"
	// FieldNumeric coerces numeric-like input to its minimal decimal
	// string form, so 5, "5", and "5.0" hash identically.
	FieldNumeric FieldKind = "numeric"
	// FieldQuantity coerces to an integer-valued number (not a string).
	FieldQuantity FieldKind = "quantity"
	// FieldTimestamp normalizes to RFC 3339 in UTC.
	FieldTimestamp FieldKind = "timestamp"
	// FieldItems is a list of sub-records, content-sorted before
	// normalization so submission order never changes the digest.
	FieldItems FieldKind = "items"
)

// Field describes one logical field of an entity.
type Field struct {
	// Name is the internal field name used in the canonical payload.
	Name string `json:"name"`
	// Aliases are the external spellings unified onto Name.
	Aliases []string `json:"aliases,omitempty"`
	// Kind selects the coercion rule.
	Kind FieldKind `json:"kind"`
	// Item describes the sub-record shape for FieldItems fields.
	Item *ItemSpec `json:"item,omitempty"`
}

// ItemSpec describes the shape of elements in an items field.
type ItemSpec struct {
	// Fields are the sub-record's fields, same rules as top level.
	Fields []Field `json:"fields"`
	// SortKeys name the sub-fields used as the content-derived ordering
	// key, in priority order. The original input index is the final
	// tiebreak. List identity is content-based, not position-based.
	SortKeys []string `json:"sortKeys"`
}

// Mapping is the complete field table for one entity kind. The Fields
// slice order is significant: it is the tuple order for the legacy
// positional digest strategy.
type Mapping struct {
	Kind    string  `json:"kind"`
	IDField string  `json:"idField"`
	Fields  []Field `json:"fields"`
}

// FieldNames returns the internal field names in declared order.
func (m Mapping) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

var loadOnce = sync.OnceValues(loadMappings)

// Mappings returns the field-mapping table for every entity kind,
// compiled from the embedded CUE definitions on first use.
func Mappings() (map[Kind]Mapping, error) {
	return loadOnce()
}

// MappingFor returns the field mapping for one kind.
func MappingFor(kind Kind) (Mapping, error) {
	all, err := Mappings()
	if err != nil {
		return Mapping{}, err
	}
	m, ok := all[kind]
	if !ok {
		return Mapping{}, fmt.Errorf("no field mapping for entity kind %q", kind)
	}
	return m, nil
}

func loadMappings() (map[Kind]Mapping, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(mappingsCUE)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile field mappings: %w", err)
	}

	list := v.LookupPath(cue.ParsePath("mappings"))
	if !list.Exists() {
		return nil, fmt.Errorf("field mappings: missing top-level \"mappings\" list")
	}
	if err := list.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate field mappings: %w", err)
	}

	var decoded []Mapping
	if err := list.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode field mappings: %w", err)
	}

	out := make(map[Kind]Mapping, len(decoded))
	for _, m := range decoded {
		kind := Kind(m.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("field mappings: unknown entity kind %q", m.Kind)
		}
		if _, dup := out[kind]; dup {
			return nil, fmt.Errorf("field mappings: duplicate mapping for kind %q", m.Kind)
		}
		if err := checkMapping(m); err != nil {
			return nil, fmt.Errorf("field mappings: kind %q: %w", m.Kind, err)
		}
		out[kind] = m
	}

	for _, kind := range Kinds {
		if _, ok := out[kind]; !ok {
			return nil, fmt.Errorf("field mappings: no mapping defined for kind %q", kind)
		}
	}

	return out, nil
}

// checkMapping enforces the structural rules CUE cannot express locally:
// unique names and aliases, the id field present in the field list, and
// item sort keys referencing declared sub-fields.
func checkMapping(m Mapping) error {
	seen := make(map[string]bool)
	idFound := false

	for _, f := range m.Fields {
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Name == m.IDField {
			idFound = true
		}

		for _, a := range f.Aliases {
			if seen[a] {
				return fmt.Errorf("alias %q collides with another field or alias", a)
			}
			seen[a] = true
		}

		switch {
		case f.Kind == FieldItems && f.Item == nil:
			return fmt.Errorf("items field %q has no item spec", f.Name)
		case f.Kind != FieldItems && f.Item != nil:
			return fmt.Errorf("field %q has an item spec but kind %q", f.Name, f.Kind)
		}

		if f.Item != nil {
			sub := make(map[string]bool)
			for _, sf := range f.Item.Fields {
				if sub[sf.Name] {
					return fmt.Errorf("items field %q: duplicate sub-field %q", f.Name, sf.Name)
				}
				sub[sf.Name] = true
				if sf.Kind == FieldItems {
					return fmt.Errorf("items field %q: nested item lists are not supported", f.Name)
				}
			}
			if len(f.Item.SortKeys) == 0 {
				return fmt.Errorf("items field %q: at least one sort key is required", f.Name)
			}
			for _, k := range f.Item.SortKeys {
				if !sub[k] {
					return fmt.Errorf("items field %q: sort key %q is not a declared sub-field", f.Name, k)
				}
			}
		}
	}

	if !idFound {
		return fmt.Errorf("id field %q is not in the field list", m.IDField)
	}
	return nil
}
