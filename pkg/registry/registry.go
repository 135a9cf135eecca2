// Package registry manages named top-level indexes, each backed by one
// pluggable tree implementation (blink, masstree, or art). Adapted from
// the teacher's pkg/index secondary-index manager, which kept one
// bptree.BPlusTree per indexed field; here each named index is a
// whole top-level tree rather than a field projection of one primary
// store, since this module has no primary store to project from.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ssargent/latchtree/pkg/art"
	"github.com/ssargent/latchtree/pkg/blink"
	"github.com/ssargent/latchtree/pkg/config"
	"github.com/ssargent/latchtree/pkg/masstree"
)

// Index is the common put/get surface every tree kind satisfies.
type Index interface {
	Get(key []byte) (uint64, bool)
	Insert(key []byte, value uint64) error
}

// blinkIndex adapts blink.Tree's Search to the Get name shared by
// masstree and art.
type blinkIndex struct {
	t *blink.Tree
}

func (b blinkIndex) Get(key []byte) (uint64, bool)      { return b.t.Search(key) }
func (b blinkIndex) Insert(key []byte, value uint64) error { return b.t.Insert(key, value) }

// ErrUnknownIndex is returned when a named index has not been created.
type ErrUnknownIndex struct{ Name string }

func (e ErrUnknownIndex) Error() string { return fmt.Sprintf("registry: unknown index %q", e.Name) }

// ErrUnknownKind is returned when Create is asked for a tree kind this
// registry doesn't know how to build.
type ErrUnknownKind struct{ Kind config.TreeKind }

func (e ErrUnknownKind) Error() string { return fmt.Sprintf("registry: unknown tree kind %q", e.Kind) }

// ErrInvalidKey is returned by Put/Get for a key of length 0 or over this
// registry's configured maxKeySize, checked once here regardless of which
// tree kind backs the named index, rather than relying on each kind's own
// (possibly absent) internal check.
var ErrInvalidKey = errors.New("registry: invalid key length")

// entry pairs an index with its own diagnostic counters. Per-index
// counters replace the process-wide node-id counter a global registry
// would otherwise need.
type entry struct {
	idx   Index
	kind  config.TreeKind
	puts  atomic.Uint64
	gets  atomic.Uint64
	dups  atomic.Uint64
	hits  atomic.Uint64
}

// Stats is a snapshot of one index's diagnostic counters.
type Stats struct {
	Kind        config.TreeKind
	Puts        uint64
	Gets        uint64
	Duplicates  uint64
	Hits        uint64
}

// Registry owns a set of named indexes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	nodeSize   int
	maxKeySize int
}

// New constructs an empty registry. nodeSize/maxKeySize size every tree
// created through it.
func New(nodeSize, maxKeySize int) *Registry {
	return &Registry{
		entries:    make(map[string]*entry),
		nodeSize:   nodeSize,
		maxKeySize: maxKeySize,
	}
}

// Create builds a new named index of the given kind. Re-creating an
// existing name replaces it with a fresh, empty tree.
func (r *Registry) Create(name string, kind config.TreeKind) error {
	var idx Index
	switch kind {
	case config.TreeBlink:
		idx = blinkIndex{t: blink.NewTree(r.nodeSize, r.maxKeySize)}
	case config.TreeMasstree:
		idx = masstree.NewTree(r.nodeSize, r.maxKeySize)
	case config.TreeArt:
		idx = art.NewTree(r.maxKeySize)
	default:
		return ErrUnknownKind{Kind: kind}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{idx: idx, kind: kind}
	return nil
}

// Get looks up key in the named index. A malformed key (length 0 or over
// this registry's maxKeySize) returns ErrInvalidKey without touching the
// index.
func (r *Registry) Get(name string, key []byte) (uint64, bool, error) {
	if len(key) == 0 || len(key) > r.maxKeySize {
		return 0, false, ErrInvalidKey
	}
	e, err := r.lookup(name)
	if err != nil {
		return 0, false, err
	}
	e.gets.Add(1)
	v, ok := e.idx.Get(key)
	if ok {
		e.hits.Add(1)
	}
	return v, ok, nil
}

// Put inserts key/value into the named index. A malformed key (length 0 or
// over this registry's maxKeySize) returns ErrInvalidKey without touching
// the index.
func (r *Registry) Put(name string, key []byte, value uint64) error {
	if len(key) == 0 || len(key) > r.maxKeySize {
		return ErrInvalidKey
	}
	e, err := r.lookup(name)
	if err != nil {
		return err
	}
	e.puts.Add(1)
	if ierr := e.idx.Insert(key, value); ierr != nil {
		if ierr == blink.ErrDuplicate || ierr == masstree.ErrDuplicate || ierr == art.ErrDuplicate {
			e.dups.Add(1)
		}
		return ierr
	}
	return nil
}

// Stats returns a snapshot of the named index's diagnostic counters.
func (r *Registry) Stats(name string) (Stats, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Kind:       e.kind,
		Puts:       e.puts.Load(),
		Gets:       e.gets.Load(),
		Duplicates: e.dups.Load(),
		Hits:       e.hits.Load(),
	}, nil
}

// Names lists every registered index name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, ErrUnknownIndex{Name: name}
	}
	return e, nil
}
