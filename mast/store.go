// Package mast implements the Merkle Affix Search Tree: a persistent,
// content-addressed, reference-counted ordered map layered on a
// transactional key-value table (kvstore.Table).
package mast

import (
	"fmt"

	"github.com/Nuhvi/pubky-core/kvstore"
	"github.com/Nuhvi/pubky-core/log"
)

// Store is a thin, refcounted layer over one kvstore.Table, the "nodes"
// table bound to the caller's transaction. It never mutates a Node's
// (key, value, left, right) in place; every structural change goes through
// the rewrite helpers below, producing a fresh Hash.
//
// Store layers reference counting directly over the caller's transactional
// table, which already gives atomic commit/abort, so there is no separate
// in-memory refcount cache to keep in sync: ref_count is persisted beside
// the payload in the table itself.
type Store struct {
	table  kvstore.Table
	cache  *nodeCache
	logger *log.Logger
}

// NewStore binds a Store to the given table for the lifetime of one
// transaction.
func NewStore(table kvstore.Table) *Store {
	return &Store{table: table, cache: newNodeCache(), logger: log.Default().Module("mast")}
}

// Open loads and decodes the node at hash h, returning (nil, nil) if no
// such node is stored.
func (s *Store) Open(h Hash) (*Node, error) {
	if cached, ok := s.cache.get(h); ok {
		return cached, nil
	}

	raw, ok, err := s.table.Get(h.Bytes())
	if err != nil {
		s.logger.Error("table get failed", "hash", h, "err", err)
		return nil, fmt.Errorf("%w: open %x: %v", ErrStore, h, err)
	}
	if !ok {
		return nil, nil
	}

	refCount, canonical, err := decodeRecord(raw)
	if err != nil {
		s.logger.Error("corrupt record", "hash", h, "err", err)
		return nil, fmt.Errorf("%w: open %x: %v", ErrCorruption, h, err)
	}
	n, err := decodeNode(canonical)
	if err != nil {
		s.logger.Error("corrupt node encoding", "hash", h, "err", err)
		return nil, fmt.Errorf("%w: open %x: %v", ErrCorruption, h, err)
	}
	n.RefCount = refCount

	s.cache.put(h, n)
	return n, nil
}

// Save persists n's current (ref_count, canonical) record under Hash(n). A
// node whose RefCount has reached zero is deleted instead.
func (s *Store) Save(n *Node) error {
	h := n.Hash()
	if n.RefCount == 0 {
		if err := s.table.Delete(h.Bytes()); err != nil {
			s.logger.Error("table delete failed", "hash", h, "err", err)
			return fmt.Errorf("%w: delete %x: %v", ErrStore, h, err)
		}
		s.cache.forget(h)
		return nil
	}

	record := encodeRecord(n.RefCount, encodeNode(n))
	if err := s.table.Put(h.Bytes(), record); err != nil {
		s.logger.Error("table put failed", "hash", h, "err", err)
		return fmt.Errorf("%w: save %x: %v", ErrStore, h, err)
	}
	s.cache.put(h, n)
	return nil
}

// InsertNew persists a brand-new node (one not previously reachable from
// any root) with RefCount 1, the initial reference created by whichever
// parent or named root is about to link to it. If a node with the
// same hash already exists (an identical (key, value, left, right) tuple
// inserted before), its existing record already reflects the correct
// refcount from its prior references and InsertNew only adds the one
// implied by this new link.
func (s *Store) InsertNew(n *Node) error {
	existing, err := s.Open(n.Hash())
	if err != nil {
		return err
	}
	if existing != nil {
		n.RefCount = existing.RefCount
	}
	n.RefCount++
	return s.Save(n)
}

// Rewrite implements the canonical "decrement old, save; mutate; increment
// new, save" pattern that every structural edit to an already-referenced
// node must follow: no node is ever mutated in place while still
// referenced, so the old record's refcount drops by one (and is deleted if
// that reaches zero), then mutate changes the node's child pointers (which
// changes its Hash), and the resulting node's refcount is incremented by
// one and saved under its new hash.
//
// Rewrite is the single place this four-step dance lives, so insert and
// remove cannot drift out of sync with each other.
func (s *Store) Rewrite(n *Node, mutate func(*Node)) (*Node, error) {
	if n.RefCount == 0 {
		s.logger.Error("rewrite of unreferenced node", "hash", n.Hash())
		return nil, fmt.Errorf("%w: rewrite %x: reference count already zero", ErrCorruption, n.Hash())
	}
	n.RefCount--
	if err := s.Save(n); err != nil {
		return nil, err
	}

	mutate(n)

	n.RefCount++
	if err := s.Save(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Reference increments n's refcount in place and persists the result, for
// the case where no structural edit accompanies the new reference (a named
// root binding to an already-existing node).
func (s *Store) Reference(n *Node) error {
	n.RefCount++
	return s.Save(n)
}

// Dereference decrements n's refcount in place and persists the result
// (deleting the record if it reaches zero). It reports ErrCorruption if
// the count was already zero.
func (s *Store) Dereference(n *Node) error {
	if n.RefCount == 0 {
		s.logger.Error("dereference of unreferenced node", "hash", n.Hash())
		return fmt.Errorf("%w: dereference %x: reference count already zero", ErrCorruption, n.Hash())
	}
	n.RefCount--
	return s.Save(n)
}

// Stats holds aggregate statistics about the node store, gathered by
// scanning the whole table. It is used by the mastctl stats subcommand and
// is not on any hot path.
type Stats struct {
	TotalNodes      int
	ReferencedNodes int
	UnreferencedCnt int
	TotalBytes      int64
	MaxRefCount     uint64
}

// GatherStats scans every record in the table and summarizes it. A nonzero
// UnreferencedCnt indicates a bug: under this store's eager deletion
// policy (RefCount reaching zero deletes the record immediately) no
// unreferenced node should ever be observable.
func (s *Store) GatherStats() (Stats, error) {
	var st Stats
	it := s.table.Iterate(nil)
	defer it.Release()
	for it.Next() {
		refCount, _, err := decodeRecord(it.Value())
		if err != nil {
			s.logger.Error("corrupt record during stats scan", "key", it.Key(), "err", err)
			return Stats{}, fmt.Errorf("%w: gather stats: %v", ErrCorruption, err)
		}
		st.TotalNodes++
		st.TotalBytes += int64(len(it.Value()))
		if refCount == 0 {
			st.UnreferencedCnt++
		} else {
			st.ReferencedNodes++
		}
		if refCount > st.MaxRefCount {
			st.MaxRefCount = refCount
		}
	}
	return st, nil
}

// CollectGarbage deletes any record observed with a zero reference count.
// Under normal operation Save already deletes a node the instant its
// refcount reaches zero, so this is a defensive sweep for the mastctl gc
// subcommand rather than a required part of any mutation path: it adds no
// new deletion policy, only re-applies the existing one. Returns the
// number of records removed.
func (s *Store) CollectGarbage() (int, error) {
	s.logger.Info("garbage collection sweep starting")

	var toDelete [][]byte
	it := s.table.Iterate(nil)
	for it.Next() {
		refCount, _, err := decodeRecord(it.Value())
		if err != nil {
			it.Release()
			s.logger.Error("corrupt record during gc scan", "key", it.Key(), "err", err)
			return 0, fmt.Errorf("%w: collect garbage: %v", ErrCorruption, err)
		}
		if refCount == 0 {
			key := append([]byte(nil), it.Key()...)
			toDelete = append(toDelete, key)
		}
	}
	it.Release()

	for _, key := range toDelete {
		if err := s.table.Delete(key); err != nil {
			s.logger.Error("table delete failed during gc", "key", key, "err", err)
			return 0, fmt.Errorf("%w: collect garbage: %v", ErrStore, err)
		}
	}

	s.logger.Info("garbage collection sweep complete", "removed", len(toDelete))
	return len(toDelete), nil
}
