package kvstore

import (
	"bytes"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/Nuhvi/pubky-core/log"
)

// tableSnapshot is an immutable view of one table's contents. Commits never
// mutate a published snapshot in place; they build a new map and swap the
// pointer under MemStore.mu, so a Tx holding an older snapshot keeps seeing
// a consistent view even while a later write transaction commits.
type tableSnapshot map[string][]byte

// MemStore is an in-memory Store with real Begin/Commit/Abort transaction
// semantics: write transactions stage fully in memory and either land
// atomically on Commit or vanish entirely on Abort. It adds a
// single-writer lock and copy-on-write table snapshots so that a read
// transaction's view stays fixed at Begin even while a later writer
// commits.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string]tableSnapshot
	// writeMu serializes write transactions rather than relying on callers
	// to coordinate.
	writeMu sync.Mutex
	closed  bool
	logger  *log.Logger
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{tables: make(map[string]tableSnapshot), logger: log.Default().Module("kvstore")}
}

// Begin starts a transaction. See Store.Begin.
func (s *MemStore) Begin(write bool) (Tx, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.logger.Warn("begin on closed store")
		return nil, ErrStoreClosed
	}

	if write {
		s.writeMu.Lock()
	}

	s.mu.RLock()
	base := make(map[string]tableSnapshot, len(s.tables))
	for name, snap := range s.tables {
		base[name] = snap
	}
	s.mu.RUnlock()

	tx := &memTx{store: s, write: write, base: base}
	if write {
		tx.staged = make(map[string]map[string]*stagedOp)
	}
	return tx, nil
}

// Snapshot returns a deep copy of every table's current committed contents,
// keyed by table name then key. It is used by mastctl to persist a MemStore
// across process invocations, since the reference store otherwise only
// lives for the lifetime of one process.
func (s *MemStore) Snapshot() map[string]map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string][]byte, len(s.tables))
	for name, snap := range s.tables {
		table := make(map[string][]byte, len(snap))
		for k, v := range snap {
			table[k] = append([]byte(nil), v...)
		}
		out[name] = table
	}
	return out
}

// LoadSnapshot replaces the store's committed contents with data, as
// produced by a prior Snapshot. It must only be called before any
// transaction has begun.
func (s *MemStore) LoadSnapshot(data map[string]map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make(map[string]tableSnapshot, len(data))
	for name, table := range data {
		snap := make(tableSnapshot, len(table))
		for k, v := range table {
			snap[k] = append([]byte(nil), v...)
		}
		s.tables[name] = snap
	}
}

// Close marks the store closed. In-flight transactions are unaffected.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stagedOp records a pending write against one key. A nil value with
// deleted == true represents a staged deletion.
type stagedOp struct {
	value   []byte
	deleted bool
}

// memTx implements Tx over a MemStore snapshot.
type memTx struct {
	store  *MemStore
	write  bool
	closed bool

	base   map[string]tableSnapshot        // table name -> snapshot at Begin time
	staged map[string]map[string]*stagedOp // table name -> key -> pending op (write tx only)
}

func (t *memTx) Table(name string) Table {
	return &memTable{tx: t, name: name}
}

func (t *memTx) Commit() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if !t.write {
		return nil
	}
	defer t.store.writeMu.Unlock()

	t.store.mu.Lock()
	for name, ops := range t.staged {
		next := make(tableSnapshot, len(t.base[name])+len(ops))
		for k, v := range t.base[name] {
			next[k] = v
		}
		for k, op := range ops {
			if op.deleted {
				delete(next, k)
			} else {
				next[k] = op.value
			}
		}
		t.store.tables[name] = next
	}
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	if t.write {
		t.store.writeMu.Unlock()
	}
}

// memTable implements Table against one named namespace of a memTx.
type memTable struct {
	tx   *memTx
	name string
}

func (mt *memTable) opsFor() map[string]*stagedOp {
	if mt.tx.staged == nil {
		return nil
	}
	ops, ok := mt.tx.staged[mt.name]
	if !ok {
		ops = make(map[string]*stagedOp)
		mt.tx.staged[mt.name] = ops
	}
	return ops
}

func (mt *memTable) Get(key []byte) ([]byte, bool, error) {
	if mt.tx.closed {
		mt.tx.store.logger.Warn("get on closed transaction", "table", mt.name)
		return nil, false, ErrTxClosed
	}
	if ops := mt.tx.staged[mt.name]; ops != nil {
		if op, ok := ops[string(key)]; ok {
			if op.deleted {
				return nil, false, nil
			}
			return cloneBytes(op.value), true, nil
		}
	}
	val, ok := mt.tx.base[mt.name][string(key)]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(val), true, nil
}

func (mt *memTable) Has(key []byte) (bool, error) {
	_, ok, err := mt.Get(key)
	return ok, err
}

func (mt *memTable) Put(key, value []byte) error {
	if mt.tx.closed {
		mt.tx.store.logger.Warn("put on closed transaction", "table", mt.name)
		return ErrTxClosed
	}
	if !mt.tx.write {
		mt.tx.store.logger.Warn("put on read-only transaction", "table", mt.name)
		return ErrReadOnlyTx
	}
	mt.opsFor()[string(key)] = &stagedOp{value: cloneBytes(value)}
	return nil
}

func (mt *memTable) Delete(key []byte) error {
	if mt.tx.closed {
		mt.tx.store.logger.Warn("delete on closed transaction", "table", mt.name)
		return ErrTxClosed
	}
	if !mt.tx.write {
		mt.tx.store.logger.Warn("delete on read-only transaction", "table", mt.name)
		return ErrReadOnlyTx
	}
	mt.opsFor()[string(key)] = &stagedOp{deleted: true}
	return nil
}

func (mt *memTable) Iterate(prefix []byte) Iterator {
	base := mt.tx.base[mt.name]
	ops := mt.tx.staged[mt.name]

	seen := make(map[string]struct{}, len(base)+len(ops))
	keys := make([]string, 0, len(base)+len(ops))
	for k := range base {
		if _, staged := ops[k]; staged {
			continue
		}
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
			seen[k] = struct{}{}
		}
	}
	for k, op := range ops {
		if op.deleted {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	items := make([]kvItem, 0, len(keys))
	for _, k := range keys {
		v, ok, _ := mt.Get([]byte(k))
		if !ok {
			continue
		}
		items = append(items, kvItem{key: []byte(k), value: v})
	}
	return &memIterator{items: items, pos: -1}
}

func hasPrefix(key string, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	return bytes.HasPrefix([]byte(key), prefix)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

type kvItem struct {
	key   []byte
	value []byte
}

// memIterator iterates a pre-sorted, pre-materialized snapshot of entries.
type memIterator struct {
	items []kvItem
	pos   int
}

func (it *memIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memIterator) Release() {}

var (
	_ Store = (*MemStore)(nil)
	_ Tx    = (*memTx)(nil)
	_ Table = (*memTable)(nil)
)
