package mast

import "bytes"

// insertCore returns the hash of the new root after inserting (key, value)
// under root, which may be nil for an empty tree. insertCore never mutates
// any Node value the caller might still be holding; every rewritten node
// is saved under a new hash.
func insertCore(store *Store, root *Hash, key, value []byte) (*Hash, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	path, err := BinarySearchPath(store, root, key)
	if err != nil {
		return nil, err
	}

	var newSubRoot Hash
	switch {
	case path.Found != nil && bytes.Equal(path.Found.Value, value):
		// Idempotent: identical key and value already persisted under the
		// current root hash, so there is nothing to rewrite and the
		// existing root hash is returned unchanged.
		return root, nil

	case path.Found != nil:
		// The key exists with a different value. Its position in the tree
		// is unaffected (rank depends only on key), so only its own record
		// changes; nothing needs unzipping.
		rewritten, err := store.Rewrite(path.Found, func(n *Node) {
			n.Value = append([]byte(nil), value...)
			n.hash = nil
		})
		if err != nil {
			return nil, err
		}
		newSubRoot = rewritten.Hash()

	default:
		newSubRoot, err = unzipInsert(store, path.Lower, key, value)
		if err != nil {
			return nil, err
		}
	}

	final, err := propagate(store, path.Upper, newSubRoot)
	if err != nil {
		return nil, err
	}
	return final, nil
}

// unzipInsert performs the unzip/stitch step of insertion: it splits lower
// (the descent below the split point, in descent order) into a left chain
// (keys < key) and a right chain (keys > key), relinks each chain through
// the rewrite helper, and saves a brand-new leaf holding (key, value) with
// the two chain heads as its children.
func unzipInsert(store *Store, lower []Step, key, value []byte) (Hash, error) {
	var leftChain, rightChain []*Node
	for _, step := range lower {
		if step.Branch == Right {
			// step.Node.Key < key (the search went right, toward larger
			// keys, from this node) — it belongs in the new node's left
			// subtree together with its already-correct left child.
			leftChain = append(leftChain, step.Node)
		} else {
			rightChain = append(rightChain, step.Node)
		}
	}

	leftHead, err := relinkChain(store, leftChain, true)
	if err != nil {
		return Hash{}, err
	}
	rightHead, err := relinkChain(store, rightChain, false)
	if err != nil {
		return Hash{}, err
	}

	newNode := NewLeaf(append([]byte(nil), key...), append([]byte(nil), value...))
	newNode.SetLeftChild(leftHead)
	newNode.SetRightChild(rightHead)
	if err := store.InsertNew(newNode); err != nil {
		return Hash{}, err
	}
	return newNode.Hash(), nil
}

// relinkChain rewrites a chain of same-side nodes (collected shallowest
// first) so that each links to the next deeper node in the chain via its
// inward pointer (Right for the left chain, Left for the right chain),
// and the deepest node's inward pointer becomes nil (the position where
// the search found no further node). It returns the hash of the
// shallowest (head) node, or nil if the chain is empty.
func relinkChain(store *Store, chain []*Node, leftChain bool) (*Hash, error) {
	if len(chain) == 0 {
		return nil, nil
	}

	var next *Hash
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		target := next
		rewritten, err := store.Rewrite(n, func(n *Node) {
			if leftChain {
				n.SetRightChild(target)
			} else {
				n.SetLeftChild(target)
			}
		})
		if err != nil {
			return nil, err
		}
		h := rewritten.Hash()
		next = &h
	}
	return next, nil
}

// propagate walks upper from the bottom (closest to the mutation) to the
// top (root), rewriting each
// ancestor's recorded child pointer to the current subtree root, and
// return the final top hash. When upper is empty, subRoot is already the
// new overall root.
func propagate(store *Store, upper []Step, subRoot Hash) (*Hash, error) {
	current := subRoot
	for i := len(upper) - 1; i >= 0; i-- {
		step := upper[i]
		target := current
		rewritten, err := store.Rewrite(step.Node, func(n *Node) {
			if step.Branch == Left {
				n.SetLeftChild(&target)
			} else {
				n.SetRightChild(&target)
			}
		})
		if err != nil {
			return nil, err
		}
		current = rewritten.Hash()
	}
	return &current, nil
}
