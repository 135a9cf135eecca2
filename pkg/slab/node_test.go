package slab

import (
	"bytes"
	"fmt"
	"testing"
)

func TestNewClampsNodeSize(t *testing.T) {
	n := New(Leaf, 0, 100)
	if n.Cap() != MinNodeSize {
		t.Fatalf("expected clamp to MinNodeSize, got %d", n.Cap())
	}
	n = New(Leaf, 0, MaxNodeSize*2)
	if n.Cap() != MaxNodeSize {
		t.Fatalf("expected clamp to MaxNodeSize, got %d", n.Cap())
	}
}

func TestLeafInsertAndSearch(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)

	if err := n.InsertLeaf([]byte("key1"), 100); err != nil {
		t.Fatalf("insert key1: %v", err)
	}
	if err := n.InsertLeaf([]byte("key3"), 300); err != nil {
		t.Fatalf("insert key3: %v", err)
	}
	if err := n.InsertLeaf([]byte("key2"), 200); err != nil {
		t.Fatalf("insert key2: %v", err)
	}

	v, found, err := n.Search([]byte("key2"))
	if err != nil || !found || v != 200 {
		t.Fatalf("expected key2=200, got v=%d found=%v err=%v", v, found, err)
	}

	if _, found, err := n.Search([]byte("key9")); err != nil || found {
		t.Fatalf("expected key9 absent, got found=%v err=%v", found, err)
	}

	if n.Count() != 3 {
		t.Fatalf("expected 3 records, got %d", n.Count())
	}
}

func TestLeafInsertDuplicate(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	if err := n.InsertLeaf([]byte("key1"), 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := n.InsertLeaf([]byte("key1"), 2); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestLeafInsertInvalidKey(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	if err := n.InsertLeaf(nil, 1); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for empty key, got %v", err)
	}
	big := bytes.Repeat([]byte("x"), DefaultMaxKeySize+1)
	if err := n.InsertLeaf(big, 1); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for oversized key, got %v", err)
	}
}

func TestLeafNoSpace(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	var i int
	var err error
	for i = 0; i < 100000; i++ {
		key := []byte(fmt.Sprintf("key-%06d", i))
		if err = n.InsertLeaf(key, uint64(i)); err != nil {
			break
		}
	}
	if err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace eventually, got %v after %d inserts", err, i)
	}
}

func TestWrongKindOperations(t *testing.T) {
	leaf := New(Leaf, 0, MinNodeSize)
	branch := New(Branch, 1, MinNodeSize)

	if err := branch.InsertLeaf([]byte("k"), 1); err != ErrNotLeaf {
		t.Fatalf("expected ErrNotLeaf, got %v", err)
	}
	if err := leaf.InsertBranch([]byte("k"), leaf); err != ErrNotBranch {
		t.Fatalf("expected ErrNotBranch, got %v", err)
	}
	if _, err := leaf.Descend([]byte("k")); err != ErrNotBranch {
		t.Fatalf("expected ErrNotBranch from Descend on leaf, got %v", err)
	}
	if _, _, err := branch.Search([]byte("k")); err != ErrNotLeaf {
		t.Fatalf("expected ErrNotLeaf from Search on branch, got %v", err)
	}
}

func TestBranchDescend(t *testing.T) {
	n := New(Branch, 1, MinNodeSize)
	leftmost := New(Leaf, 0, MinNodeSize)
	n.FirstChild = leftmost

	childB := New(Leaf, 0, MinNodeSize)
	childC := New(Leaf, 0, MinNodeSize)
	if err := n.InsertBranch([]byte("m"), childB); err != nil {
		t.Fatalf("insert separator m: %v", err)
	}
	if err := n.InsertBranch([]byte("t"), childC); err != nil {
		t.Fatalf("insert separator t: %v", err)
	}

	tests := []struct {
		key  string
		want *Node
	}{
		{"a", leftmost},
		{"m", childB}, // separator is smallest key of right subtree: inclusive
		{"n", childB},
		{"t", childC},
		{"z", childC},
	}
	for _, tc := range tests {
		got, err := n.Descend([]byte(tc.key))
		if err != nil {
			t.Fatalf("descend(%q): %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("descend(%q): got wrong child", tc.key)
		}
	}
}

func TestSplitLeafFenceKey(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	keys := []string{"apple", "banana", "cherry", "date", "fig", "grape"}
	for i, k := range keys {
		if err := n.InsertLeaf([]byte(k), uint64(i)); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	sibling, sep, _ := n.Split()

	if n.Next != sibling {
		t.Fatalf("expected n.Next to point at sibling")
	}

	// every key in n must be < sep, every key in sibling must be >= sep.
	for i := 0; i < n.Count(); i++ {
		if bytes.Compare(n.fullKeyAt(i), sep) >= 0 {
			t.Fatalf("left half key %q not < separator %q", n.fullKeyAt(i), sep)
		}
	}
	for i := 0; i < sibling.Count(); i++ {
		if bytes.Compare(sibling.fullKeyAt(i), sep) < 0 {
			t.Fatalf("right half key %q not >= separator %q", sibling.fullKeyAt(i), sep)
		}
	}

	if n.Count()+sibling.Count() != len(keys) {
		t.Fatalf("expected %d total records after split, got %d+%d", len(keys), n.Count(), sibling.Count())
	}

	// all original keys must still be reachable from one half or the other.
	for _, k := range keys {
		_, foundLeft, _ := n.Search([]byte(k))
		_, foundRight, _ := sibling.Search([]byte(k))
		if !foundLeft && !foundRight {
			t.Fatalf("key %q lost across split", k)
		}
	}
}

func TestSplitBranchPromotesMedianWithoutDuplication(t *testing.T) {
	n := New(Branch, 1, MinNodeSize)
	n.FirstChild = New(Leaf, 0, MinNodeSize)
	keys := []string{"b", "d", "f", "h", "j", "l"}
	for _, k := range keys {
		if err := n.InsertBranch([]byte(k), New(Leaf, 0, MinNodeSize)); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	sibling, sep, _ := n.Split()

	// the promoted separator must not appear as a resident key in either half.
	if _, found := n.search(sep); found {
		t.Fatalf("separator %q still resident in left half", sep)
	}
	_, sepSuffix := sibling.splitSuffix(sep)
	_ = sepSuffix
	if sibling.FirstChild == nil {
		t.Fatalf("sibling.FirstChild must be set to the promoted key's child")
	}

	if n.Count()+sibling.Count()+1 != len(keys) {
		t.Fatalf("expected left+right+1(promoted) == %d, got %d+%d+1", len(keys), n.Count(), sibling.Count())
	}
}

func TestPrefixCompressionGrowsSharedPrefix(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	keys := []string{"user:001", "user:002", "user:003"}
	for i, k := range keys {
		if err := n.InsertLeaf([]byte(k), uint64(i)); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}
	sibling, _, _ := n.Split()
	if len(sibling.Prefix()) == 0 && len(n.Prefix()) == 0 {
		t.Fatalf("expected at least one half to pick up a shared prefix after split")
	}
	for _, k := range keys {
		_, foundLeft, _ := n.Search([]byte(k))
		_, foundRight, _ := sibling.Search([]byte(k))
		if !foundLeft && !foundRight {
			t.Fatalf("key %q lost after prefix recompression", k)
		}
	}
}

func TestLowHighKey(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	empty := n.LowKey()
	if len(empty) != 0 {
		t.Fatalf("expected empty LowKey on empty node, got %q", empty)
	}
	for _, k := range []string{"m", "a", "z", "c"} {
		if err := n.InsertLeaf([]byte(k), 0); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}
	if string(n.LowKey()) != "a" {
		t.Fatalf("expected LowKey=a, got %q", n.LowKey())
	}
	if string(n.HighKey()) != "z" {
		t.Fatalf("expected HighKey=z, got %q", n.HighKey())
	}
}

func TestShortestSeparator(t *testing.T) {
	cases := []struct {
		left, right, want string
	}{
		{"apple", "banana", "b"},
		{"cherry", "cherryade", "cherrya"},
		{"abc", "abd", "abd"},
	}
	for _, tc := range cases {
		got := shortestSeparator([]byte(tc.left), []byte(tc.right))
		if string(got) != tc.want {
			t.Fatalf("shortestSeparator(%q,%q) = %q, want %q", tc.left, tc.right, got, tc.want)
		}
		if bytes.Compare(got, []byte(tc.left)) <= 0 {
			t.Fatalf("separator %q must be > left %q", got, tc.left)
		}
		if bytes.Compare(got, []byte(tc.right)) > 0 {
			t.Fatalf("separator %q must be <= right %q", got, tc.right)
		}
	}
}

func TestSizeBudgetNeverExceedsCap(t *testing.T) {
	n := New(Leaf, 0, MinNodeSize)
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("k%04d", i))
		if err := n.InsertLeaf(key, uint64(i)); err != nil {
			break
		}
	}
	used := int(n.used) + len(n.slots)*indexEntry
	if used > len(n.buf) {
		t.Fatalf("node exceeded its byte budget: used=%d cap=%d", used, len(n.buf))
	}
}
