package mast

import (
	"testing"

	"github.com/Nuhvi/pubky-core/kvstore"
)

func TestRemove_EmptyKeyRejected(t *testing.T) {
	tx, _ := kvstore.NewMemStore().Begin(true)
	if _, _, _, err := Remove(tx, nil, nil); err != ErrEmptyKey {
		t.Fatalf("err = %v, want ErrEmptyKey", err)
	}
}

func TestRemove_FromEmptyTree(t *testing.T) {
	tx, _ := kvstore.NewMemStore().Begin(true)
	root, value, found, err := Remove(tx, nil, []byte("k"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if found || value != nil || root != nil {
		t.Fatalf("Remove on empty tree = (%v, %q, %v), want (nil, nil, false)", root, value, found)
	}
}

func TestRemove_LeavesOtherKeysIntact(t *testing.T) {
	tx, _ := kvstore.NewMemStore().Begin(true)

	keys := []string{"m", "a", "z", "c", "q", "b", "y", "d", "r", "x"}
	var root *Hash
	var err error
	for _, k := range keys {
		root, err = Insert(tx, root, []byte(k), []byte("val-"+k))
		if err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	root, removedValue, found, err := Remove(tx, root, []byte("q"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !found || string(removedValue) != "val-q" {
		t.Fatalf("Remove(q) = (%q, %v), want (%q, true)", removedValue, found, "val-q")
	}

	if _, found, err := Get(tx, root, []byte("q")); err != nil {
		t.Fatalf("Get(q): %v", err)
	} else if found {
		t.Fatal("q still present after removal")
	}

	for _, k := range keys {
		if k == "q" {
			continue
		}
		got, found, err := Get(tx, root, []byte(k))
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if !found || string(got) != "val-"+k {
			t.Fatalf("Get(%s) = (%q, %v), want (%q, true)", k, got, found, "val-"+k)
		}
	}
}

func TestRemove_TwiceReportsNotFoundSecondTime(t *testing.T) {
	tx, _ := kvstore.NewMemStore().Begin(true)

	root, err := Insert(tx, nil, []byte("k"), []byte("v"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	root, _, found, err := Remove(tx, root, []byte("k"))
	if err != nil || !found {
		t.Fatalf("first Remove: found=%v err=%v", found, err)
	}
	_, _, found, err = Remove(tx, root, []byte("k"))
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if found {
		t.Fatal("second Remove of the same key reported found")
	}
}
