// Package account defines the rollup's account identity and snapshot
// types (spec.md §3: AccountKey, AccountSnapshot).
package account

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// KeySize is the fixed width of an AccountKey, matching a Solana-style
// 32-byte public key.
const KeySize = 32

// Key is an opaque 32-byte account identifier with a total order, safe to
// use as a map key.
type Key [KeySize]byte

// String returns the base-58 external form of the key.
func (k Key) String() string {
	return base58.Encode(k[:])
}

// Less defines the total order used to canonicalize transfer pairs
// (spec.md §3, TransferBundlerKey: "the pair is sorted").
func (k Key) Less(other Key) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}

	return false
}

// ParseKey decodes a base-58 string into a Key.
func ParseKey(s string) (Key, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Key{}, fmt.Errorf("account: invalid base58 key %q: %w", s, err)
	}

	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("account: key %q decodes to %d bytes, want %d", s, len(raw), KeySize)
	}

	var k Key

	copy(k[:], raw)

	return k, nil
}

// Snapshot is the serializable state of an account at a point in time
// (spec.md §3: AccountSnapshot).
type Snapshot struct {
	Lamports   uint64
	Owner      Key
	Executable bool
	Data       []byte
}

// Clone returns a deep copy, so callers holding onto a Snapshot never
// observe later in-place mutation of its Data slice.
func (s Snapshot) Clone() Snapshot {
	data := make([]byte, len(s.Data))
	copy(data, s.Data)

	return Snapshot{
		Lamports:   s.Lamports,
		Owner:      s.Owner,
		Executable: s.Executable,
		Data:       data,
	}
}
