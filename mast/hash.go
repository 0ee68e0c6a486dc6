package mast

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// HashSize is the width, in bytes, of every node hash and rank in the tree.
const HashSize = 32

// Hash identifies a persisted Node by the BLAKE3 digest of its canonical
// encoding. Two nodes with identical (key, value, left, right) always
// produce the same Hash and are therefore stored once.
type Hash [HashSize]byte

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the zero value, used to represent "no such
// hash" where a *Hash pointer is inconvenient (table keys, test fixtures).
func (h Hash) IsZero() bool { return h == Hash{} }

// String implements fmt.Stringer, giving Hash readable output in log
// fields and test failures instead of a raw byte array dump.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler so the structured JSON
// logger renders a Hash as a hex string rather than an array of numbers.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// hashBytes returns the BLAKE3 digest of b.
func hashBytes(b []byte) Hash {
	return Hash(blake3.Sum256(b))
}

// Rank is the balancing priority of a key: BLAKE3(key), compared as raw
// big-endian bytes. Two different keys collide in rank only with
// cryptographically negligible probability; the tie-break rule below
// covers the case regardless.
type Rank [HashSize]byte

// rankOf computes the rank of a key.
func rankOf(key []byte) Rank {
	return Rank(blake3.Sum256(key))
}

// less reports whether r sorts strictly before o when compared as raw
// bytes, the ordering BinarySearchPath and zipUp use (through
// higherPriority) to pick the higher-priority node.
func (r Rank) less(o Rank) bool {
	for i := range r {
		if r[i] != o[i] {
			return r[i] < o[i]
		}
	}
	return false
}

// greater reports whether r sorts strictly after o.
func (r Rank) greater(o Rank) bool {
	return o.less(r)
}

// equal reports whether r and o are byte-identical.
func (r Rank) equal(o Rank) bool {
	return r == o
}

// higherPriority reports whether the node identified by (aRank, aKey) must
// sit strictly above the node identified by (bRank, bKey) in zip-tree heap
// order.
//
// When the ranks differ this is simply the raw rank comparison. When they
// tie, a specific resolution is forced: equal ranks are only ever allowed
// between a node and its left child (ranks are non-increasing going left,
// strictly decreasing going right), so for any two distinct keys with the
// same rank, the one that must end up as ancestor is the one whose key is
// larger — placing the smaller-keyed node as its left child keeps the tie
// on the one descent direction that tolerates it. This tie-break rule is
// used by both BinarySearchPath's split test and zipUp.
func higherPriority(aRank Rank, aKey []byte, bRank Rank, bKey []byte) bool {
	if !aRank.equal(bRank) {
		return aRank.greater(bRank)
	}
	return compareBytes(aKey, bKey) > 0
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
