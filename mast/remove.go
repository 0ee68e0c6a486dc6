package mast

// removeCore returns the new root hash (nil for an empty result), the
// removed value and whether key was present. The tree
// below the split point is left completely untouched when key is absent —
// only path.Upper, if any, is rewritten to point at the unchanged subtree.
func removeCore(store *Store, root *Hash, key []byte) (newRoot *Hash, removedValue []byte, found bool, err error) {
	if len(key) == 0 {
		return nil, nil, false, ErrEmptyKey
	}

	path, err := BinarySearchPath(store, root, key)
	if err != nil {
		return nil, nil, false, err
	}

	var subRoot *Hash
	if path.Found != nil {
		merged, err := zip(store, path.Found)
		if err != nil {
			return nil, nil, false, err
		}
		if merged != nil {
			h := merged.Hash()
			subRoot = &h
		}
		found = true
		removedValue = path.Found.Value
	} else if len(path.Lower) > 0 {
		// Nothing below the split point changes; the deepest surviving
		// head is the unchanged subtree to propagate upward.
		h := path.Lower[0].Node.Hash()
		subRoot = &h
	}
	// Found and Lower both absent: the descent ended at a missing child of
	// the last Upper node (or the tree is empty), so subRoot stays nil and
	// propagation sets that child pointer to the nil it already was,
	// leaving every hash unchanged.

	final, err := propagateOptional(store, path.Upper, subRoot)
	if err != nil {
		return nil, nil, false, err
	}
	return final, removedValue, found, nil
}

// zip merges target's two children into the subtree that would have resulted had
// target never been inserted, and unlinks target itself. It returns nil if
// target had no children.
func zip(store *Store, target *Node) (*Node, error) {
	if err := store.Dereference(target); err != nil {
		return nil, err
	}

	leftSpine, err := spine(store, target.Left, false)
	if err != nil {
		return nil, err
	}
	rightSpine, err := spine(store, target.Right, true)
	if err != nil {
		return nil, err
	}

	depth := len(leftSpine)
	if len(rightSpine) > depth {
		depth = len(rightSpine)
	}

	var previous *Node
	for i := depth; i > 0; i-- {
		var l, r *Node
		if i-1 < len(leftSpine) {
			l = leftSpine[i-1]
		}
		if i-1 < len(rightSpine) {
			r = rightSpine[i-1]
		}
		previous, err = zipUp(store, previous, l, r)
		if err != nil {
			return nil, err
		}
	}
	return previous, nil
}

// spine walks from start (inclusive) following the right child when
// followRight is false (building the left subtree's right-spine) or the
// left child when followRight is true (building the right subtree's
// left-spine). The returned slice is ordered shallowest first.
func spine(store *Store, start *Hash, followRight bool) ([]*Node, error) {
	if start == nil {
		return nil, nil
	}
	var nodes []*Node
	cur := start
	for cur != nil {
		n, err := store.Open(*cur)
		if err != nil {
			return nil, err
		}
		if n == nil {
			store.logger.Error("dangling child hash on spine walk", "hash", *cur)
			return nil, ErrCorruption
		}
		nodes = append(nodes, n)
		if followRight {
			cur = n.Left
		} else {
			cur = n.Right
		}
	}
	return nodes, nil
}

// zipUp merges the two spines one level at a time, from the deepest level
// upward. When only one side has a node at this level, it is adopted
// unchanged: its existing child pointer already correctly links to
// whatever came before it on its own spine, since that half of the merge
// needed no rewiring.
func zipUp(store *Store, previous, left, right *Node) (*Node, error) {
	switch {
	case left != nil && right == nil:
		return left, nil
	case left == nil && right != nil:
		return right, nil
	case left == nil && right == nil:
		return nil, nil
	}

	var prevHash *Hash
	if previous != nil {
		h := previous.Hash()
		prevHash = &h
	}

	if higherPriority(left.Rank(), left.Key, right.Rank(), right.Key) {
		// left outranks right: right becomes left's inward (right) child,
		// left becomes the new subtree root.
		newRight, err := store.Rewrite(right, func(n *Node) { n.SetLeftChild(prevHash) })
		if err != nil {
			return nil, err
		}
		rh := newRight.Hash()
		newLeft, err := store.Rewrite(left, func(n *Node) { n.SetRightChild(&rh) })
		if err != nil {
			return nil, err
		}
		return newLeft, nil
	}

	newLeft, err := store.Rewrite(left, func(n *Node) { n.SetRightChild(prevHash) })
	if err != nil {
		return nil, err
	}
	lh := newLeft.Hash()
	newRight, err := store.Rewrite(right, func(n *Node) { n.SetLeftChild(&lh) })
	if err != nil {
		return nil, err
	}
	return newRight, nil
}

// propagateOptional is propagate (insert.go) generalized to an optional
// starting subtree root, as remove needs when the tree becomes empty.
func propagateOptional(store *Store, upper []Step, subRoot *Hash) (*Hash, error) {
	current := subRoot
	for i := len(upper) - 1; i >= 0; i-- {
		step := upper[i]
		target := current
		rewritten, err := store.Rewrite(step.Node, func(n *Node) {
			if step.Branch == Left {
				n.SetLeftChild(target)
			} else {
				n.SetRightChild(target)
			}
		})
		if err != nil {
			return nil, err
		}
		h := rewritten.Hash()
		current = &h
	}
	return current, nil
}
