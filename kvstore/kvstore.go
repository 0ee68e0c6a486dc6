// Package kvstore defines the transactional key-value store contract that
// the mast package is built against, plus an in-memory reference
// implementation suitable for tests and the mastctl tool. The engine itself
// never talks to a concrete storage engine directly; it only ever sees a Tx
// bound to one of these tables, so a real on-disk engine can be swapped in
// without touching mast.
package kvstore

import "errors"

// Sentinel errors returned by Store, Tx, and Table implementations.
var (
	// ErrNotFound names the missing-key condition. MemStore never returns
	// it: Table.Get reports a missing key through its ok result with a nil
	// error.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrTxClosed is returned by a table's Get, Has, Put, or Delete when its
	// transaction has already been committed or aborted. Commit and Abort
	// on a closed transaction are no-ops and do not return it.
	ErrTxClosed = errors.New("kvstore: transaction already closed")

	// ErrReadOnlyTx is returned when a write operation is attempted against a
	// transaction opened with write == false.
	ErrReadOnlyTx = errors.New("kvstore: write attempted on read-only transaction")

	// ErrStoreClosed is returned when Begin is called on a closed Store.
	ErrStoreClosed = errors.New("kvstore: store is closed")
)

// Store is the backing engine the mast package is layered on. A real
// on-disk engine is out of scope here; Store is the seam it would
// implement.
type Store interface {
	// Begin starts a new transaction. A write transaction serializes with
	// every other write transaction (single-writer); a read transaction
	// observes a consistent snapshot and never blocks on, or is blocked by,
	// concurrent writers.
	Begin(write bool) (Tx, error)

	// Close releases any resources held by the store. Pending transactions
	// are not implicitly committed.
	Close() error
}

// Tx is one atomic unit of work against a Store. All table operations
// performed through a Tx are either all visible after Commit or none are.
type Tx interface {
	// Table returns the named table bound to this transaction. The same
	// name always addresses the same underlying namespace.
	Table(name string) Table

	// Commit makes all staged writes visible atomically. Read transactions
	// may also call Commit as a no-op cleanup; it never fails for a read
	// transaction.
	Commit() error

	// Abort discards all staged writes. It is always safe to call, including
	// after Commit (where it is a no-op), so callers can defer Abort
	// unconditionally after Begin.
	Abort()
}

// Table is a named key-value namespace within a transaction, keyed by
// arbitrary byte slices (the mast package only ever uses 32-byte node
// hashes, but the contract itself does not require fixed-width keys).
type Table interface {
	// Get reports the value stored at key, and whether it was present.
	Get(key []byte) (value []byte, ok bool, err error)

	// Put stores value at key, overwriting any existing value.
	Put(key, value []byte) error

	// Delete removes key. It is not an error to delete a missing key.
	Delete(key []byte) error

	// Has reports whether key is present, without copying its value.
	Has(key []byte) (bool, error)

	// Iterate returns an iterator over all keys with the given prefix, in
	// ascending lexicographic order. A nil or empty prefix iterates the
	// entire table. Iterators are not required by the mast core itself but
	// are used by the no-orphans property test and by mastctl's stats and
	// roots subcommands.
	Iterate(prefix []byte) Iterator
}

// Iterator walks a snapshot of a table's contents in ascending key order.
type Iterator interface {
	// Next advances the iterator, returning false once exhausted.
	Next() bool

	// Key returns the current entry's key. Valid only after a Next that
	// returned true.
	Key() []byte

	// Value returns the current entry's value. Valid only after a Next that
	// returned true.
	Value() []byte

	// Release frees any resources held by the iterator.
	Release()
}
