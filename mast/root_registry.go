package mast

import (
	"fmt"

	"github.com/Nuhvi/pubky-core/kvstore"
)

// RootRegistry binds opaque owner identifiers to the current root hash of
// their tree: the named-root lookup a homeserver needs to find "this
// user's tree" before any tree operation can run. It is a thin table over
// root hashes with the same refcounting discipline as the node store: a
// named root holds exactly one reference on whatever node its hash
// currently points at.
type RootRegistry struct {
	table kvstore.Table
	store *Store
}

// NewRootRegistry binds a registry to the given table (named roots) and the
// node store that owns the referenced hashes.
func NewRootRegistry(table kvstore.Table, store *Store) *RootRegistry {
	return &RootRegistry{table: table, store: store}
}

// Get returns the current root hash bound to owner, or (nil, false) if
// owner has no tree yet.
func (r *RootRegistry) Get(owner []byte) (*Hash, bool, error) {
	raw, ok, err := r.table.Get(owner)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get root for owner: %v", ErrStore, err)
	}
	if !ok {
		return nil, false, nil
	}
	if len(raw) != HashSize {
		r.store.logger.Error("malformed root registry record", "owner", owner, "length", len(raw), "want", HashSize)
		return nil, false, fmt.Errorf("%w: root registry record has length %d, want %d", ErrCorruption, len(raw), HashSize)
	}
	var h Hash
	copy(h[:], raw)
	return &h, true, nil
}

// Set rebinds owner to newRoot, referencing newRoot first and then
// dereferencing whatever owner previously pointed at, so rebinding an
// owner to the root it already has never drops that node's count to zero
// in between.
func (r *RootRegistry) Set(owner []byte, newRoot Hash) error {
	old, had, err := r.Get(owner)
	if err != nil {
		return err
	}

	newNode, err := r.store.Open(newRoot)
	if err != nil {
		return err
	}
	if newNode == nil {
		r.store.logger.Error("set root references missing node", "owner", owner, "root", newRoot)
		return fmt.Errorf("%w: set root for owner: no such node %x", ErrCorruption, newRoot)
	}
	if err := r.store.Reference(newNode); err != nil {
		return err
	}

	if had {
		oldNode, err := r.store.Open(*old)
		if err != nil {
			return err
		}
		if oldNode != nil {
			if err := r.store.Dereference(oldNode); err != nil {
				return err
			}
		}
	}

	if err := r.table.Put(owner, newRoot.Bytes()); err != nil {
		return fmt.Errorf("%w: set root for owner: %v", ErrStore, err)
	}
	return nil
}

// Delete unbinds owner entirely, dereferencing the tree it pointed at. It
// is not an error to delete an owner with no registered root.
func (r *RootRegistry) Delete(owner []byte) error {
	old, had, err := r.Get(owner)
	if err != nil {
		return err
	}
	if !had {
		return nil
	}

	oldNode, err := r.store.Open(*old)
	if err != nil {
		return err
	}
	if oldNode != nil {
		if err := r.store.Dereference(oldNode); err != nil {
			return err
		}
	}

	if err := r.table.Delete(owner); err != nil {
		return fmt.Errorf("%w: delete root for owner: %v", ErrStore, err)
	}
	return nil
}
