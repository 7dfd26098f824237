package core

import "testing"

func TestSMTSetGetRoundTrip(t *testing.T) {
	h := NewHasher(6, 4)
	tree := NewAccountsTree(h, 6)

	leaf := h.HashLeaf([]byte("account-1"))
	if err := tree.Set(5, leaf); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := tree.Get(5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != leaf {
		t.Fatalf("get returned %x, want %x", got, leaf)
	}
}

func TestSMTRootStableWithoutMutation(t *testing.T) {
	h := NewHasher(6, 4)
	tree := NewAccountsTree(h, 6)
	if err := tree.Set(2, h.HashLeaf([]byte("x"))); err != nil {
		t.Fatalf("set: %v", err)
	}
	r1 := tree.Root()
	r2 := tree.Root()
	if r1 != r2 {
		t.Fatalf("root changed without mutation: %x != %x", r1, r2)
	}
}

func TestSMTWitnessReconstructsRoot(t *testing.T) {
	h := NewHasher(6, 4)
	tree := NewAccountsTree(h, 6)

	ids := []uint64{0, 1, 7, 32, 63}
	for _, id := range ids {
		if err := tree.Set(id, h.HashLeaf([]byte{byte(id)})); err != nil {
			t.Fatalf("set(%d): %v", id, err)
		}
	}

	for _, id := range ids {
		leaf, err := tree.Get(id)
		if err != nil {
			t.Fatalf("get(%d): %v", id, err)
		}
		witness, err := tree.Witness(id)
		if err != nil {
			t.Fatalf("witness(%d): %v", id, err)
		}
		root, err := tree.VerifyWitness(id, leaf, witness)
		if err != nil {
			t.Fatalf("verify witness(%d): %v", id, err)
		}
		if root != tree.Root() {
			t.Fatalf("witness(%d) reconstructed %x, want %x", id, root, tree.Root())
		}
	}
}

func TestSMTSetOnlyTouchesOnePath(t *testing.T) {
	h := NewHasher(6, 4)
	tree := NewAccountsTree(h, 6)
	if err := tree.Set(1, h.HashLeaf([]byte{1})); err != nil {
		t.Fatalf("set(1): %v", err)
	}
	rootAfterFirst := tree.Root()

	other, err := tree.Get(63)
	if err != nil {
		t.Fatalf("get(63): %v", err)
	}
	if other != h.EmptyAccountsSubtree(0) {
		t.Fatalf("id 63 should still be empty")
	}

	if err := tree.Set(63, h.HashLeaf([]byte{63})); err != nil {
		t.Fatalf("set(63): %v", err)
	}
	if tree.Root() == rootAfterFirst {
		t.Fatalf("root did not change after second set")
	}
	back, err := tree.Get(1)
	if err != nil {
		t.Fatalf("get(1): %v", err)
	}
	if back != h.HashLeaf([]byte{1}) {
		t.Fatalf("id 1's leaf was disturbed by setting id 63")
	}
}

func TestSMTOutOfRangeID(t *testing.T) {
	h := NewHasher(4, 4)
	tree := NewAccountsTree(h, 4)
	if err := tree.Set(16, h.HashLeaf(nil)); err == nil {
		t.Fatalf("expected InvalidAccountId for out-of-range id")
	} else if re, ok := AsRejected(err); !ok || re.Reason != FailInvalidAccountID {
		t.Fatalf("expected FailInvalidAccountID, got %v", err)
	}
}

func TestSMTCloneIsolation(t *testing.T) {
	h := NewHasher(6, 4)
	tree := NewAccountsTree(h, 6)
	if err := tree.Set(3, h.HashLeaf([]byte{3})); err != nil {
		t.Fatalf("set: %v", err)
	}
	clone := tree.Clone()
	if err := clone.Set(3, h.HashLeaf([]byte{9})); err != nil {
		t.Fatalf("set on clone: %v", err)
	}
	if tree.Root() == clone.Root() {
		t.Fatalf("mutating clone affected original tree")
	}
	orig, _ := tree.Get(3)
	if orig != h.HashLeaf([]byte{3}) {
		t.Fatalf("original tree mutated by clone")
	}
}
