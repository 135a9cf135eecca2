// Package blink implements a concurrent B-link tree: a B+ tree whose nodes
// carry a right-sibling pointer, letting readers and writers disagree
// momentarily about a node's fence key without either blocking the other.
//
// Node routing (separator keys, descend, split, prefix compression) is
// delegated to pkg/slab; concurrency control is delegated to pkg/latch.
// This package owns the tree shape: the ancestor-stack writer descent, the
// move-right protocol, and split promotion up to a new root.
package blink

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ssargent/latchtree/pkg/latch"
	"github.com/ssargent/latchtree/pkg/slab"
)

// maxAncestorDepth bounds the writer's ancestor stack. Insert on a tree
// taller than this returns ErrTooDeep rather than growing the stack
// unboundedly.
const maxAncestorDepth = 7

var (
	// ErrDuplicate mirrors slab.ErrDuplicate at the tree level.
	ErrDuplicate = errors.New("blink: duplicate key")
	// ErrTooDeep is returned when a single descent exceeds maxAncestorDepth;
	// the caller should retry, since the tree shape may have changed.
	ErrTooDeep = errors.New("blink: ancestor stack exceeded bounded depth")
)

// Node is one B-link tree node: a latched version word, the slab holding
// its sorted keys, and (for branch nodes) the parallel child pointers the
// slab's own branch slots can't hold directly (they'd need to be *Node, and
// pkg/slab doesn't know this package exists).
type Node struct {
	v    latch.Node
	data *slab.Node

	// nextPtr is the right-sibling pointer; nil means "rightmost", the
	// infinity fence. Optimistic readers follow it without taking n's
	// latch, and a split publishes it from under the writer's latch, so
	// it rides behind an atomic pointer rather than a plain field for the
	// same reason childPtr does.
	nextPtr atomic.Pointer[Node]

	// childPtr holds the branch child array (len == data.Count()+1) behind
	// an atomic pointer: optimistic readers load a whole-slice snapshot
	// without taking n's latch, so the slice itself must never be mutated
	// in place while a reader might be mid-load. Writers build the next
	// version off to the side and swap the pointer under n's latch.
	childPtr atomic.Pointer[[]*Node]
}

// next returns the current right sibling, or nil if n is rightmost. Safe to
// call without holding n's latch.
func (n *Node) next() *Node { return n.nextPtr.Load() }

// setNext publishes a new right sibling. The caller must hold n's latch.
func (n *Node) setNext(next *Node) { n.nextPtr.Store(next) }

func newNode(kind slab.Kind, level uint8, nodeSize, maxKeySize int) *Node {
	n := &Node{data: slab.New(kind, level, nodeSize)}
	n.data.MaxKeySize = maxKeySize
	n.v.SetBorder(kind == slab.Leaf)
	if kind == slab.Branch {
		cs := make([]*Node, 1)
		n.childPtr.Store(&cs)
	}
	return n
}

// children returns the current child-array snapshot. Safe to call without
// holding n's latch.
func (n *Node) children() []*Node {
	p := n.childPtr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// setChildren atomically publishes a new child-array snapshot. The caller
// must hold n's latch.
func (n *Node) setChildren(cs []*Node) {
	n.childPtr.Store(&cs)
}

// highKey returns the node's current highest resident key and whether the
// node is rightmost at its level (the infinity sentinel: no key ever
// compares greater than it, so move-right never triggers).
func (n *Node) highKey() (key []byte, infinite bool) {
	if n.next() == nil {
		return nil, true
	}
	return n.data.HighKey(), false
}

// Tree is a concurrent B-link tree over byte-string keys and uint64
// values.
type Tree struct {
	mu         sync.RWMutex // protects root only; node-internal concurrency is pkg/latch's job
	root       *Node
	nodeSize   int
	maxKeySize int
}

func (t *Tree) loadRoot() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// NewTree constructs an empty tree with a single leaf root.
func NewTree(nodeSize, maxKeySize int) *Tree {
	root := newNode(slab.Leaf, 0, nodeSize, maxKeySize)
	root.v.Lock()
	root.v.SetRoot(true)
	root.v.Unlock()
	return &Tree{root: root, nodeSize: nodeSize, maxKeySize: maxKeySize}
}

// Search performs an optimistic-read point lookup: it descends following
// version snapshots rather than locks, validating each hop, and retries
// from the root on any detected concurrent structural change.
func (t *Tree) Search(key []byte) (uint64, bool) {
	for {
		n := t.loadRoot()
		for {
			v := n.v.StableVersion()

			for {
				hk, inf := n.highKey()
				if inf || bytes.Compare(key, hk) <= 0 {
					break
				}
				n = n.next()
				v = n.v.StableVersion()
			}

			if latch.IsBorder(v) {
				val, found, _ := n.data.Search(key)
				if !latch.SameVersion(v, n.v.Version()) {
					break // structural change mid-read: retry from root
				}
				return val, found
			}

			idx, err := n.data.DescendIndex(key)
			if err != nil {
				break
			}
			cs := n.children()
			if idx >= len(cs) {
				break // concurrent split moved this key out from under us
			}
			child := cs[idx]
			if !latch.SameVersion(v, n.v.Version()) {
				break
			}
			n = child
		}
	}
}

// Insert adds key/value, splitting nodes and growing the tree as needed.
// Duplicate keys return ErrDuplicate.
func (t *Tree) Insert(key []byte, value uint64) error {
	for {
		var stack [maxAncestorDepth]*Node
		depth := 0

		n := t.loadRoot()
		for {
			v := n.v.StableVersion()

			for n.next() != nil {
				hk, _ := n.highKey()
				if bytes.Compare(key, hk) <= 0 {
					break
				}
				n = n.next()
				v = n.v.StableVersion()
			}

			if latch.IsBorder(v) {
				break
			}

			idx, err := n.data.DescendIndex(key)
			if err != nil {
				return err
			}
			cs := n.children()
			if idx >= len(cs) {
				break // retry: concurrent split changed this node's shape
			}
			child := cs[idx]
			if !latch.SameVersion(v, n.v.Version()) {
				depth = 0
				n = t.loadRoot()
				continue
			}
			if depth >= maxAncestorDepth {
				return ErrTooDeep
			}
			stack[depth] = n
			depth++
			n = child
		}

		if !latch.IsBorder(n.v.StableVersion()) {
			continue // descent bailed out early; restart
		}

		result, err := t.insertAtLeaf(n, key, value)
		if err != nil {
			return err
		}
		if !result.split {
			return nil
		}
		return t.promote(stack[:depth], result.sibling, result.separator)
	}
}

type leafInsertResult struct {
	split     bool
	sibling   *Node
	separator []byte
}

func (t *Tree) insertAtLeaf(n *Node, key []byte, value uint64) (leafInsertResult, error) {
	n.v.Lock()

	for n.next() != nil {
		hk, _ := n.highKey()
		if bytes.Compare(key, hk) <= 0 {
			break
		}
		right := n.next()
		right.v.Lock()
		n.v.Unlock()
		n = right
	}

	n.v.BeginInsert()
	err := n.data.InsertLeaf(key, value)
	n.v.EndInsert()

	switch {
	case err == nil:
		n.v.Unlock()
		return leafInsertResult{}, nil
	case errors.Is(err, slab.ErrDuplicate):
		n.v.Unlock()
		return leafInsertResult{}, ErrDuplicate
	case errors.Is(err, slab.ErrNoSpace):
		// n remains locked across splitLeaf; it owns deciding which half
		// gets the new key before releasing anything.
		sibling, separator := t.splitLeaf(n)
		if bytes.Compare(key, separator) >= 0 {
			sibling.v.Lock()
			sibling.v.BeginInsert()
			_ = sibling.data.InsertLeaf(key, value)
			sibling.v.EndInsert()
			sibling.v.Unlock()
		} else {
			n.v.BeginInsert()
			_ = n.data.InsertLeaf(key, value)
			n.v.EndInsert()
		}
		n.v.Unlock()
		return leafInsertResult{split: true, sibling: sibling, separator: separator}, nil
	default:
		n.v.Unlock()
		return leafInsertResult{}, err
	}
}

// splitLeaf splits n, which the caller must already hold write-locked, and
// returns the new sibling and separator. n remains locked on return; the
// caller is responsible for unlocking it.
func (t *Tree) splitLeaf(n *Node) (*Node, []byte) {
	n.v.BeginSplit()
	slabSibling, sep, _ := n.data.Split()
	sibling := &Node{data: slabSibling}
	sibling.v.SetBorder(true)
	sibling.setNext(n.next())
	n.setNext(sibling)
	n.v.EndSplit()
	return sibling, append([]byte(nil), sep...)
}

// splitBranch splits a branch node, which the caller must already hold
// write-locked, partitioning its parallel children slice at the same index
// slab.Node.Split used for its keys. n remains locked on return.
func (t *Tree) splitBranch(n *Node) (*Node, []byte) {
	n.v.BeginSplit()
	slabSibling, sep, mid := n.data.Split()
	sibling := &Node{data: slabSibling}
	sibling.v.SetBorder(false)

	medianChildIdx := mid + 1
	cs := n.children()
	sibling.setChildren(append([]*Node{}, cs[medianChildIdx:]...))
	n.setChildren(append([]*Node{}, cs[:medianChildIdx]...))

	sibling.setNext(n.next())
	n.setNext(sibling)
	n.v.EndSplit()
	return sibling, append([]byte(nil), sep...)
}

// promote inserts separator/sibling into the parent named at the top of
// stack, splitting and recursing upward as needed; an empty stack grows a
// new root.
func (t *Tree) promote(stack []*Node, sibling *Node, separator []byte) error {
	if len(stack) == 0 {
		return t.growRoot(sibling, separator)
	}

	parent := stack[len(stack)-1]
	parent.v.Lock()

	for parent.next() != nil {
		hk, _ := parent.highKey()
		if bytes.Compare(separator, hk) <= 0 {
			break
		}
		right := parent.next()
		right.v.Lock()
		parent.v.Unlock()
		parent = right
	}

	idx, err := parent.data.DescendIndex(separator)
	if err != nil {
		parent.v.Unlock()
		return err
	}

	parent.v.BeginInsert()
	insertErr := parent.data.InsertBranch(separator, nil)
	parent.v.EndInsert()

	if insertErr != nil {
		if !errors.Is(insertErr, slab.ErrNoSpace) {
			parent.v.Unlock()
			return insertErr
		}
		// parent remains locked across splitBranch, same protocol as the
		// leaf no-space path.
		newSibling, newSep := t.splitBranch(parent)
		var target *Node
		if bytes.Compare(separator, newSep) >= 0 {
			target = newSibling
			target.v.Lock()
		} else {
			target = parent
		}
		insertErr = insertSeparatorIntoLocked(target, separator, sibling)
		if target != parent {
			target.v.Unlock()
		}
		parent.v.Unlock()
		if insertErr != nil {
			return insertErr
		}
		return t.promote(stack[:len(stack)-1], newSibling, newSep)
	}

	insertPos := idx + 1
	cs := parent.children()
	next := make([]*Node, len(cs)+1)
	copy(next[:insertPos], cs[:insertPos])
	next[insertPos] = sibling
	copy(next[insertPos+1:], cs[insertPos:])
	parent.setChildren(next)
	parent.v.Unlock()
	return nil
}

// insertSeparatorIntoLocked inserts separator/child into a branch node that
// was just created or resized by a split. The caller must already hold n's
// write lock; this bypasses the full promote() retry logic since the
// caller already knows this node has room.
func insertSeparatorIntoLocked(n *Node, separator []byte, child *Node) error {
	idx, err := n.data.DescendIndex(separator)
	if err != nil {
		return err
	}
	n.v.BeginInsert()
	err = n.data.InsertBranch(separator, nil)
	n.v.EndInsert()
	if err != nil {
		return err
	}
	insertPos := idx + 1
	cs := n.children()
	next := make([]*Node, len(cs)+1)
	copy(next[:insertPos], cs[:insertPos])
	next[insertPos] = child
	copy(next[insertPos+1:], cs[insertPos:])
	n.setChildren(next)
	return nil
}

// growRoot installs a fresh root above the current one: the old root
// becomes the new root's first child, and sibling becomes its second
// child, separated by separator. The special case in the design note: the
// old root is demoted from root status, not rebuilt.
func (t *Tree) growRoot(sibling *Node, separator []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldRoot := t.root
	level := oldRoot.data.Level + 1

	newRoot := newNode(slab.Branch, level, t.nodeSize, t.maxKeySize)
	newRoot.setChildren([]*Node{oldRoot})
	if err := newRoot.data.InsertBranch(separator, nil); err != nil {
		return err
	}
	newRoot.setChildren(append(newRoot.children(), sibling))

	oldRoot.v.Lock()
	oldRoot.v.SetRoot(false)
	oldRoot.v.Unlock()

	newRoot.v.Lock()
	newRoot.v.SetRoot(true)
	newRoot.v.Unlock()

	t.root = newRoot
	return nil
}
