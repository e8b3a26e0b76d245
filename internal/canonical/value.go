package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Value is a sealed interface over the JSON-compatible types a normalized
// payload may contain. Only Null, String, Int, Bool, Array, and Object
// implement it. There is NO float type - the normalizer renders numeric
// fields as canonical strings (or integer quantities) before they get here,
// so float nondeterminism can never reach the hasher.
type Value interface {
	canonicalValue() // Sealed - only these types implement it
}

// Null represents an explicit JSON null sentinel.
// The normalizer prefers the empty-string sentinel for absent fields;
// Null exists so inputs carrying literal nulls remain representable.
type Null struct{}

func (Null) canonicalValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string value.
type String string

func (String) canonicalValue() {}

// Int represents an integer value. Always int64, never float64.
type Int int64

func (Int) canonicalValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) canonicalValue() {}

// Array represents an ordered sequence of values. Element order is
// semantically significant and preserved by serialization.
type Array []Value

func (Array) canonicalValue() {}

// Object represents a map of field name to value.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) canonicalValue() {}

// SortedKeys returns the object's keys in lexicographic byte order, the
// ordering the canonical serialization is defined over.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow-copied Object sharing the same values.
// Used by the normalizer when layering a mutation over prior fields.
func (obj Object) Clone() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalValue decodes a JSON value into the appropriate Value type.
// Floats are rejected; numerics must be integers or arrive as strings.
func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var arr Array
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number not representable: %s", string(data))
		}
		return Int(i), nil
	}
}

// FromJSON parses external JSON into a Value. Floats are rejected so that
// callers are forced through the normalizer's string coercion for numeric
// fields; null is accepted and becomes the Null sentinel.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return FromGo(raw)
}

// FromGo recursively converts a loosely-typed Go value into a Value.
// json.Number and integer types are accepted; floats are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("float %s not representable: coerce numeric fields to strings first", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	case float64, float32:
		return nil, fmt.Errorf("float %v not representable: coerce numeric fields to strings first", val)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
