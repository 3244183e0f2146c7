// Package plumbing holds the low-level primitives shared by the remote
// orchestration engine: object hashes and reference names. It mirrors the
// small, dependency-free "plumbing" layer that the rest of the engine is
// built on top of.
package plumbing

import (
	"encoding/hex"
	"sort"
)

// Hash is a SHA1 object id, held as its 20 raw bytes.
type Hash [20]byte

// ZeroHash is a Hash with all bytes set to zero, used to represent the
// absence of an object (e.g. a ref being created or deleted).
var ZeroHash Hash

// NewHash returns a new Hash from a hexadecimal string. Invalid input
// results in the zero hash, mirroring git's own leniency when reading
// references from disk.
func NewHash(s string) Hash {
	h, _ := FromHex(s)
	return h
}

// FromHex parses a hexadecimal object id. ok is false if s is not a valid
// 40-character hex string.
func FromHex(s string) (h Hash, ok bool) {
	if len(s) != len(h)*2 {
		return h, false
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, false
	}

	copy(h[:], b)
	return h, true
}

// IsHash reports whether s looks like a valid hex-encoded object id.
func IsHash(s string) bool {
	_, ok := FromHex(s)
	return ok
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the hexadecimal representation of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Slice(a, func(i, j int) bool {
		return a[i].String() < a[j].String()
	})
}
