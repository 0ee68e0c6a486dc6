package mast

// getCore performs a read-only descent from root looking for key. It
// returns (nil, false, nil) if key is absent, never allocating beyond the
// decode of the nodes it visits.
func getCore(store *Store, root *Hash, key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}

	cur := root
	for cur != nil {
		n, err := store.Open(*cur)
		if err != nil {
			return nil, false, err
		}
		if n == nil {
			store.logger.Error("dangling child hash", "hash", *cur)
			return nil, false, ErrCorruption
		}

		switch {
		case bytesEqual(key, n.Key):
			return n.Value, true, nil
		case bytesLess(key, n.Key):
			cur = n.Left
		default:
			cur = n.Right
		}
	}
	return nil, false, nil
}

func bytesEqual(a, b []byte) bool { return compareBytes(a, b) == 0 }
func bytesLess(a, b []byte) bool  { return compareBytes(a, b) < 0 }
