// Package canonical produces deterministic JSON for hashing.
//
// Audit chain hashes must not depend on struct field order or map iteration
// order, so every value is re-encoded through a map representation before
// marshalling: encoding/json writes map keys in sorted order, which gives a
// stable byte stream for identical logical content.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal returns the canonical JSON encoding of v: object keys sorted,
// no insignificant whitespace, numbers preserved verbatim.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical re-decode: %w", err)
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical re-encode: %w", err)
	}
	return out, nil
}

// MustMarshal is Marshal for values known to be encodable. It panics on
// encoding failure and exists for test fixtures only.
func MustMarshal(v any) []byte {
	out, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}
