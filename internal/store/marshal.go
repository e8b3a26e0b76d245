package store

import (
	"fmt"

	"github.com/trailmark/trailmark/internal/canonical"
)

// marshalPayload converts a normalized payload to its canonical JSON TEXT
// for storage. Storing the canonical form means the stored bytes are the
// exact hashing input, which the verifier re-derives on read.
func marshalPayload(payload canonical.Object) (string, error) {
	data, err := canonical.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back to a payload object.
func unmarshalPayload(data string) (canonical.Object, error) {
	if data == "" || data == "{}" {
		return canonical.Object{}, nil
	}
	v, err := canonical.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	obj, ok := v.(canonical.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal payload: expected object, got %T", v)
	}
	return obj, nil
}
