package mast

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Canonical framing constants. The format is frozen: any change
// changes every hash in every existing tree, so it is versioned only by
// wholesale migration, never by a flag in the encoding itself.
const (
	flagHasLeft  = 1 << 0
	flagHasRight = 1 << 1
)

// ErrTruncated is returned by decodeNode/decodeRecord when the input ends
// before a length-prefixed field is fully present. It is always wrapped
// into ErrCorruption by callers that read from the store.
var ErrTruncated = errors.New("mast: truncated node encoding")

// encodeNode produces the canonical byte representation of n's
// (key, value, left, right) tuple: u16 key_len ‖ key ‖ u32 value_len ‖
// value ‖ u8 flags ‖ [left_hash(32)]? ‖ [right_hash(32)]?. The ref_count
// field never participates in this encoding and therefore never affects
// the resulting Hash.
func encodeNode(n *Node) []byte {
	size := 2 + len(n.Key) + 4 + len(n.Value) + 1
	var flags byte
	if n.Left != nil {
		flags |= flagHasLeft
		size += HashSize
	}
	if n.Right != nil {
		flags |= flagHasRight
		size += HashSize
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(n.Key)))
	off += 2
	off += copy(buf[off:], n.Key)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(n.Value)))
	off += 4
	off += copy(buf[off:], n.Value)
	buf[off] = flags
	off++
	if n.Left != nil {
		off += copy(buf[off:], n.Left[:])
	}
	if n.Right != nil {
		off += copy(buf[off:], n.Right[:])
	}
	return buf
}

// decodeNode parses the canonical encoding produced by encodeNode. It
// performs only structural validation; BST order and heap order are
// properties of the whole tree, not of one node's bytes, and are checked
// by the property tests rather than here.
func decodeNode(b []byte) (*Node, error) {
	if len(b) < 2 {
		return nil, ErrTruncated
	}
	keyLen := int(binary.LittleEndian.Uint16(b))
	off := 2
	if len(b) < off+keyLen {
		return nil, ErrTruncated
	}
	key := append([]byte(nil), b[off:off+keyLen]...)
	off += keyLen

	if len(b) < off+4 {
		return nil, ErrTruncated
	}
	valLen := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+valLen {
		return nil, ErrTruncated
	}
	value := append([]byte(nil), b[off:off+valLen]...)
	off += valLen

	if len(b) < off+1 {
		return nil, ErrTruncated
	}
	flags := b[off]
	off++

	n := &Node{Key: key, Value: value}

	if flags&flagHasLeft != 0 {
		if len(b) < off+HashSize {
			return nil, ErrTruncated
		}
		var h Hash
		copy(h[:], b[off:off+HashSize])
		n.Left = &h
		off += HashSize
	}
	if flags&flagHasRight != 0 {
		if len(b) < off+HashSize {
			return nil, ErrTruncated
		}
		var h Hash
		copy(h[:], b[off:off+HashSize])
		n.Right = &h
		off += HashSize
	}
	if off != len(b) {
		return nil, fmt.Errorf("mast: %w: %d trailing bytes", ErrTruncated, len(b)-off)
	}
	return n, nil
}

// encodeRecord wraps a node's canonical bytes with its reference count,
// producing the value stored at key Hash(canonical): u64 ref_count ‖
// bytes canonical_node.
func encodeRecord(refCount uint64, canonical []byte) []byte {
	buf := make([]byte, 8+len(canonical))
	binary.LittleEndian.PutUint64(buf, refCount)
	copy(buf[8:], canonical)
	return buf
}

// decodeRecord splits a stored record back into its ref_count and
// canonical node bytes.
func decodeRecord(b []byte) (refCount uint64, canonical []byte, err error) {
	if len(b) < 8 {
		return 0, nil, ErrTruncated
	}
	refCount = binary.LittleEndian.Uint64(b)
	canonical = b[8:]
	return refCount, canonical, nil
}
