package kvstore

import "testing"

func TestMemStore_PutGetCommit(t *testing.T) {
	db := NewMemStore()

	tx, err := db.Begin(true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	table := tx.Table("t")
	if err := table.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTx, err := db.Begin(false)
	if err != nil {
		t.Fatalf("Begin read: %v", err)
	}
	got, ok, err := readTx.Table("t").Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "v" {
		t.Fatalf("Get = (%q, %v), want (%q, true)", got, ok, "v")
	}
}

func TestMemStore_AbortDiscardsWrites(t *testing.T) {
	db := NewMemStore()

	tx, err := db.Begin(true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Table("t").Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	tx.Abort()

	readTx, err := db.Begin(false)
	if err != nil {
		t.Fatalf("Begin read: %v", err)
	}
	_, ok, err := readTx.Table("t").Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("aborted write is visible")
	}
}

func TestMemStore_ReadSnapshotIsolatedFromLaterWrite(t *testing.T) {
	db := NewMemStore()

	setupTx, _ := db.Begin(true)
	if err := setupTx.Table("t").Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := setupTx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTx, err := db.Begin(false)
	if err != nil {
		t.Fatalf("Begin read: %v", err)
	}

	writeTx, err := db.Begin(true)
	if err != nil {
		t.Fatalf("Begin write: %v", err)
	}
	if err := writeTx.Table("t").Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := writeTx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _, err := readTx.Table("t").Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get from snapshot = %q, want %q (isolated from the later commit)", got, "v1")
	}
}

func TestMemStore_DeleteStagesAndCommits(t *testing.T) {
	db := NewMemStore()

	tx, _ := db.Begin(true)
	table := tx.Table("t")
	if err := table.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := table.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, err := table.Has([]byte("k")); err != nil || ok {
		t.Fatalf("Has after staged delete = (%v, %v), want (false, nil)", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTx, _ := db.Begin(false)
	if ok, err := readTx.Table("t").Has([]byte("k")); err != nil || ok {
		t.Fatalf("Has after commit = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMemStore_IterateOrdersKeysAndSkipsDeletes(t *testing.T) {
	db := NewMemStore()
	tx, _ := db.Begin(true)
	table := tx.Table("t")
	for _, k := range []string{"c", "a", "b"} {
		if err := table.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	if err := table.Delete([]byte("b")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	it := table.Iterate(nil)
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Iterate yielded %v, want [a c]", got)
	}
}

func TestMemStore_ReadOnlyTxRejectsWrites(t *testing.T) {
	db := NewMemStore()
	tx, err := db.Begin(false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Table("t").Put([]byte("k"), []byte("v")); err != ErrReadOnlyTx {
		t.Fatalf("err = %v, want ErrReadOnlyTx", err)
	}
}

func TestMemStore_BeginAfterCloseFails(t *testing.T) {
	db := NewMemStore()
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := db.Begin(true); err != ErrStoreClosed {
		t.Fatalf("err = %v, want ErrStoreClosed", err)
	}
}
