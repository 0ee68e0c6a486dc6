package mast

import "github.com/Nuhvi/pubky-core/kvstore"

// NodesTable and RootsTable are the conventional kvstore.Tx table names the
// package-level operations below bind to. Callers embedding mast inside a
// larger schema are free to construct Store/RootRegistry directly against
// their own table names instead of using these wrappers.
const (
	NodesTable = "mast_nodes"
	RootsTable = "mast_roots"
)

// Insert opens the nodes table on tx and inserts (key, value) under root,
// returning the new root hash. root may be nil for an empty tree.
func Insert(tx kvstore.Tx, root *Hash, key, value []byte) (*Hash, error) {
	store := NewStore(tx.Table(NodesTable))
	return insertCore(store, root, key, value)
}

// Remove opens the nodes table on tx and removes key from the tree rooted
// at root, returning the new root hash, the removed value and whether key
// was present.
func Remove(tx kvstore.Tx, root *Hash, key []byte) (*Hash, []byte, bool, error) {
	store := NewStore(tx.Table(NodesTable))
	return removeCore(store, root, key)
}

// Get opens the nodes table on tx and looks up key in the tree rooted at
// root without mutating anything.
func Get(tx kvstore.Tx, root *Hash, key []byte) ([]byte, bool, error) {
	store := NewStore(tx.Table(NodesTable))
	return getCore(store, root, key)
}

// OpenRootRegistry binds the roots table on tx to a Store sharing the same
// nodes table, for callers that need named-root lookups rather than
// threading root hashes through by hand.
func OpenRootRegistry(tx kvstore.Tx) *RootRegistry {
	store := NewStore(tx.Table(NodesTable))
	return NewRootRegistry(tx.Table(RootsTable), store)
}

// RootHash is an identity helper: a *Hash already is the root identifier,
// so this exists only so callers holding a bare root value have the same
// named entry point as Insert/Remove/Get.
func RootHash(root *Hash) *Hash {
	return root
}
