// Package normalize maps a raw, loosely-typed record onto the fixed,
// ordered field list declared by its entity mapping, producing the
// canonical payload the hasher consumes.
//
// The output is purely a function of the input, the identifier, and the
// defaults object: no clock reads, no random values, no map-iteration
// ordering leaks. Running the normalizer over its own output is a no-op.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/canonical"
	"github.com/trailmark/trailmark/internal/entity"
)

// Payload normalizes raw input for one entity into its canonical payload.
//
// id is the entity's own identifier and always wins over any id spelling in
// raw. defaults carries the prior record's normalized fields for partial
// updates; a field absent from raw (or empty after trimming) falls back to
// its default, then to the empty-string sentinel. Fields are never omitted:
// omission would change the canonical key set and therefore the digest of
// what should be the same record.
func Payload(m entity.Mapping, id string, raw map[string]any, defaults canonical.Object) (canonical.Object, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("normalize %s: empty identifier", m.Kind)
	}

	payload := make(canonical.Object, len(m.Fields))

	for _, f := range m.Fields {
		if f.Name == m.IDField {
			payload[f.Name] = canonical.String(normalizeIdentifier(id))
			continue
		}

		rawVal, found := lookup(raw, f)
		if found {
			v, err := coerce(f, rawVal)
			if err != nil {
				return nil, fmt.Errorf("normalize %s.%s: %w", m.Kind, f.Name, err)
			}
			if v != nil {
				payload[f.Name] = v
				continue
			}
			// Empty after trimming: treated as absent, fall through.
		}

		if dv, ok := defaults[f.Name]; ok {
			payload[f.Name] = dv
			continue
		}

		payload[f.Name] = sentinel(f)
	}

	return payload, nil
}

// lookup finds a raw value under the field's internal name or any of its
// external alias spellings. The internal name wins when both are present.
func lookup(raw map[string]any, f entity.Field) (any, bool) {
	if v, ok := raw[f.Name]; ok {
		return v, true
	}
	for _, a := range f.Aliases {
		if v, ok := raw[a]; ok {
			return v, true
		}
	}
	return nil, false
}

// sentinel is the canonical representation of an absent field.
func sentinel(f entity.Field) canonical.Value {
	if f.Kind == entity.FieldItems {
		return canonical.Array{}
	}
	return canonical.String("")
}

// coerce applies the field's coercion rule. A nil Value with nil error
// means the input was effectively absent (empty after trimming).
func coerce(f entity.Field, raw any) (canonical.Value, error) {
	switch f.Kind {
	case entity.FieldString:
		s, err := stringValue(raw)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return canonical.String(s), nil

	case entity.FieldIdentifier:
		s, err := stringValue(raw)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return canonical.String(normalizeIdentifier(s)), nil

	case entity.FieldNumeric:
		s, err := numericString(raw)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return canonical.String(s), nil

	case entity.FieldQuantity:
		n, absent, err := quantityValue(raw)
		if err != nil {
			return nil, err
		}
		if absent {
			return nil, nil
		}
		return canonical.Int(n), nil

	case entity.FieldTimestamp:
		s, err := timestampString(raw)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return canonical.String(s), nil

	case entity.FieldItems:
		return coerceItems(f, raw)

	default:
		return nil, fmt.Errorf("unknown field kind %q", f.Kind)
	}
}

// normalizeIdentifier lower-cases cross-reference identifiers so digest
// computation is case-insensitive for identity fields. UUID-shaped values
// are re-rendered through uuid.Parse, which also strips urn:uuid: and
// brace forms onto the one canonical spelling.
func normalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	return strings.ToLower(s)
}

func stringValue(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case canonical.String:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", raw)
	}
}

// numericString renders a numeric-like input in its minimal decimal form,
// so 5, "5", and "5.0" coerce to the same "5".
func numericString(raw any) (string, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		s = strings.TrimSpace(v)
	case canonical.String:
		s = strings.TrimSpace(string(v))
	case canonical.Int:
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		if num, ok := raw.(interface{ String() string }); ok {
			s = strings.TrimSpace(num.String())
		} else {
			return "", fmt.Errorf("expected numeric, got %T", raw)
		}
	}

	if s == "" {
		return "", nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid numeric value %q", s)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// quantityValue coerces to an integer-valued number. Unlike other numeric
// fields, quantities stay native integers in the canonical payload.
func quantityValue(raw any) (n int64, absent bool, err error) {
	switch v := raw.(type) {
	case nil:
		return 0, true, nil
	case int:
		return int64(v), false, nil
	case int64:
		return v, false, nil
	case canonical.Int:
		return int64(v), false, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, false, fmt.Errorf("quantity %v is not integer-valued", v)
		}
		return int64(v), false, nil
	case string, canonical.String:
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" {
			return 0, true, nil
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return 0, false, fmt.Errorf("invalid quantity %q", s)
		}
		if f != float64(int64(f)) {
			return 0, false, fmt.Errorf("quantity %q is not integer-valued", s)
		}
		return int64(f), false, nil
	default:
		if num, ok := raw.(interface{ String() string }); ok {
			return quantityValue(num.String())
		}
		return 0, false, fmt.Errorf("expected quantity, got %T", raw)
	}
}

// timestampLayouts are the accepted input forms, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestampString normalizes to RFC 3339 seconds precision in UTC.
// Numeric input is interpreted as unix seconds.
func timestampString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case int:
		return time.Unix(int64(v), 0).UTC().Format(time.RFC3339), nil
	case int64:
		return time.Unix(v, 0).UTC().Format(time.RFC3339), nil
	case float64:
		return time.Unix(int64(v), 0).UTC().Format(time.RFC3339), nil
	case string, canonical.String:
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" {
			return "", nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(time.RFC3339), nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("unrecognized timestamp %q", s)
	default:
		if num, ok := raw.(interface{ String() string }); ok {
			return timestampString(num.String())
		}
		return "", fmt.Errorf("expected timestamp, got %T", raw)
	}
}

// coerceItems normalizes a list of sub-records and re-sorts it by the
// declared content keys (then original input index), so two requests
// differing only in submission order hash identically.
func coerceItems(f entity.Field, raw any) (canonical.Value, error) {
	if raw == nil {
		return nil, nil
	}

	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case []map[string]any:
		elems = make([]any, len(v))
		for i := range v {
			elems[i] = v[i]
		}
	case canonical.Array:
		elems = make([]any, len(v))
		for i := range v {
			elems[i] = v[i]
		}
	default:
		return nil, fmt.Errorf("expected list, got %T", raw)
	}

	type sortedItem struct {
		obj   canonical.Object
		index int
	}

	items := make([]sortedItem, 0, len(elems))
	for i, elem := range elems {
		sub, err := itemFields(elem)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		obj := make(canonical.Object, len(f.Item.Fields))
		for _, sf := range f.Item.Fields {
			rawVal, found := lookup(sub, sf)
			if found {
				v, err := coerce(sf, rawVal)
				if err != nil {
					return nil, fmt.Errorf("item %d: %s: %w", i, sf.Name, err)
				}
				if v != nil {
					obj[sf.Name] = v
					continue
				}
			}
			obj[sf.Name] = sentinel(sf)
		}
		items = append(items, sortedItem{obj: obj, index: i})
	}

	sort.SliceStable(items, func(a, b int) bool {
		for _, key := range f.Item.SortKeys {
			ka := sortKeyString(items[a].obj[key])
			kb := sortKeyString(items[b].obj[key])
			if ka != kb {
				return ka < kb
			}
		}
		return items[a].index < items[b].index
	})

	out := make(canonical.Array, len(items))
	for i, it := range items {
		out[i] = it.obj
	}
	return out, nil
}

// itemFields extracts the sub-record's raw field map.
func itemFields(elem any) (map[string]any, error) {
	switch v := elem.(type) {
	case map[string]any:
		return v, nil
	case canonical.Object:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", elem)
	}
}

// sortKeyString renders a canonical value as a sort key. Integers are
// biased into unsigned space and zero-padded so lexicographic order
// agrees with numeric order across the full int64 range.
func sortKeyString(v canonical.Value) string {
	switch val := v.(type) {
	case canonical.String:
		return string(val)
	case canonical.Int:
		return fmt.Sprintf("%020d", uint64(int64(val))+1<<63)
	case nil:
		return ""
	default:
		b, err := canonical.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
