package mast

import (
	"bytes"
	"fmt"
)

// Step is one (Node, Branch) pair recorded while descending the tree.
// Callers own the Nodes in a Step sequence because insert and remove
// rewrite them in place during propagation.
type Step struct {
	Node   *Node
	Branch Branch
}

// Path is the result of BinarySearchPath: the three disjoint sequences
// described below.
type Path struct {
	// Upper holds ancestors above the split point, root first, each
	// carrying the branch the search took from that ancestor. Upper must
	// be rebuilt by any mutation since each ancestor's child pointer
	// changes.
	Upper []Step

	// Lower holds ancestors below the split point, continuing the descent,
	// in descent order. Insert's unzip rewrites every Lower node's inward
	// child pointer. Remove only reads Lower[0], as the unchanged subtree
	// root to propagate when key is absent; when key is found, Lower is
	// empty.
	Lower []Step

	// Found is the matching node, if key exists in the tree.
	Found *Node
}

// BinarySearchPath descends from root looking for key, splitting the
// descent into Upper/Lower at the first node whose priority is not higher
// than that of key itself, whose rank is computed here as rankOf(key)
// (under the higherPriority tie-break rule). The same split serves insert
// and remove: it identifies exactly the node an insert of key would stop
// its unzip at. When key is found the descent stops there, so every
// visited node is in Upper.
func BinarySearchPath(store *Store, root *Hash, key []byte) (Path, error) {
	targetRank := rankOf(key)

	var path Path
	cur := root
	for cur != nil {
		n, err := store.Open(*cur)
		if err != nil {
			return Path{}, err
		}
		if n == nil {
			store.logger.Error("dangling child hash", "hash", *cur)
			return Path{}, fmt.Errorf("%w: dangling child hash %x", ErrCorruption, *cur)
		}

		cmp := bytes.Compare(key, n.Key)
		if cmp == 0 {
			path.Found = n
			return path, nil
		}

		var branch Branch
		var next *Hash
		if cmp < 0 {
			branch = Left
			next = n.Left
		} else {
			branch = Right
			next = n.Right
		}

		step := Step{Node: n, Branch: branch}
		if splitHere(n.Rank(), n.Key, targetRank, key) {
			path.Lower = append(path.Lower, step)
		} else {
			path.Upper = append(path.Upper, step)
		}

		cur = next
	}
	return path, nil
}

// splitHere reports whether node n (rank nodeRank, key nodeKey) is at or
// below the split point for a search/insert of targetKey with the given
// targetRank: the split point is the first node on the descent whose
// zip-tree priority is not strictly higher than the target's, using the
// resolved tie-break order from higherPriority.
func splitHere(nodeRank Rank, nodeKey []byte, targetRank Rank, targetKey []byte) bool {
	return !higherPriority(nodeRank, nodeKey, targetRank, targetKey)
}
