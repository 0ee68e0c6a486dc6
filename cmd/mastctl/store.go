package main

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/Nuhvi/pubky-core/kvstore"
)

// loadStore reads a previously saved snapshot from path, or returns an
// empty store if path does not exist yet. The on-disk format is a gob
// encoding of MemStore.Snapshot's return value; it exists purely so
// mastctl invocations can see each other's writes, not as a general
// persistence layer for mast itself.
func loadStore(path string) (*kvstore.MemStore, error) {
	store := kvstore.NewMemStore()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mastctl: open %s: %w", path, err)
	}
	defer f.Close()

	var data map[string]map[string][]byte
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("mastctl: decode %s: %w", path, err)
	}
	store.LoadSnapshot(data)
	return store, nil
}

// saveStore writes store's current committed contents to path, overwriting
// whatever was there before.
func saveStore(store *kvstore.MemStore, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mastctl: create %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(store.Snapshot()); err != nil {
		return fmt.Errorf("mastctl: encode %s: %w", path, err)
	}
	return nil
}

// withReadTx loads the store at dbPath, runs fn against a read transaction,
// and reports any error to stderr with exit code 1.
func withReadTx(dbPath string, fn func(tx kvstore.Tx) error) int {
	store, err := loadStore(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	tx, err := store.Begin(false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer tx.Abort()

	if err := fn(tx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// withWriteTx loads the store at dbPath, runs fn against a write
// transaction, commits and persists the result if fn succeeds, and aborts
// (leaving the file untouched) otherwise.
func withWriteTx(dbPath string, fn func(tx kvstore.Tx) error) int {
	store, err := loadStore(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	tx, err := store.Begin(true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := fn(tx); err != nil {
		tx.Abort()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := tx.Commit(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := saveStore(store, dbPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
