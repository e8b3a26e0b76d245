package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/trailmark/trailmark/internal/entity"
)

// LoadInput reads a JSON object payload from a file path, or from stdin
// when path is "-". Numbers decode as json.Number so the normalizer sees
// the original digits, not a float64 approximation.
func LoadInput(path string, stdin io.Reader) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("cannot read input %s", path), err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, WrapExitError(ExitCommandError, "input is not a JSON object", err)
	}
	// trailing garbage after the object is an error, not ignored
	if dec.More() {
		return nil, NewExitError(ExitCommandError, "input contains data after the JSON object")
	}

	return raw, nil
}

// parseKind validates an entity kind argument.
func parseKind(arg string) (entity.Kind, error) {
	kind := entity.Kind(strings.ToLower(arg))
	if !kind.Valid() {
		return "", NewExitError(ExitCommandError,
			fmt.Sprintf("unknown entity kind %q (want one of %s)", arg, kindList()))
	}
	return kind, nil
}

// parseID validates a UUID argument.
func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, fmt.Sprintf("entity id %q is not a UUID", arg), err)
	}
	return id, nil
}

func kindList() string {
	names := make([]string, len(entity.Kinds))
	for i, k := range entity.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
