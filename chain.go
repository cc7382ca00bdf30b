package auditx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hengadev/auditx/internal/canonical"
)

// The audit log forms a hash chain: every entry's hash covers the previous
// entry's hash plus the entry's own canonical serialization, so recomputing
// the chain from the first entry must reproduce every stored hash. Any edit,
// removal or reorder of a stored entry changes every hash after it.
// Corrections are therefore append-only compensating entries, never in-place
// edits.

// canonicalBytes serializes v deterministically (sorted keys) so hashes do
// not depend on field insertion order.
func canonicalBytes(v any) ([]byte, error) {
	return canonical.Marshal(v)
}

// EntryHash computes SHA256(prevHash | canonical(entry)) with the entry's own
// DataHash field zeroed, and returns it hex encoded.
func EntryHash(prevHash string, e *Entry) (string, error) {
	unhashed := *e
	unhashed.DataHash = ""

	payload, err := canonicalBytes(&unhashed)
	if err != nil {
		return "", fmt.Errorf("hashing audit entry %s: %w", e.ID, err)
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte("|"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain walks entries in stored order, recomputing each hash from the
// genesis value, and returns the index of the first broken link along with
// ErrChainBroken. A fully intact chain returns (-1, nil).
//
// Both link conditions are checked per entry: the entry must reference the
// previous entry's hash, and its own stored hash must match the recomputed
// value.
func VerifyChain(entries []*Entry, genesis string) (int, error) {
	prev := genesis
	for i, e := range entries {
		if e.PrevHash != prev {
			return i, NewChainBrokenError(i, e.ID)
		}
		recomputed, err := EntryHash(prev, e)
		if err != nil {
			return i, err
		}
		if recomputed != e.DataHash {
			return i, NewChainBrokenError(i, e.ID)
		}
		prev = recomputed
	}
	return -1, nil
}
