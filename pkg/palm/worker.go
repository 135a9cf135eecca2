package palm

import "github.com/ssargent/latchtree/pkg/slab"

// wstate is one worker's transient state for a single batch: the Go
// translation of original_source/src/worker.h's worker struct, minus the
// manual path/fence arena growth (Go slices grow themselves) and the
// pointer-ring navigation (this package threads the full []*wstate through
// instead of prev/next pointers, since Go has no trouble passing a slice
// around).
type wstate struct {
	id, total int

	paths []*path

	begPath, totPath int

	// fences[p] holds the pending splits produced while processing one
	// parity of tree level; stage 3 alternates which parity is being read
	// versus written, exactly as worker_insert_fence's `level % 2` does.
	fences             [2][]fence
	begFence, totFence int

	// seqSplitDone bounds the sequential-insert optimization to at most one
	// suppressed split per node per batch, per spec's open-question
	// resolution: an unbounded version would let one long ascending run of
	// inserts skip splitting forever, growing a single node past its slab
	// capacity.
	seqSplitDone map[*slab.Node]bool

	myFirst, myLast, theirFirst, theirLast *slab.Node
}

func newWstate(id, total int) *wstate {
	return &wstate{id: id, total: total, seqSplitDone: make(map[*slab.Node]bool)}
}

// setBoundsFromPaths computes my_first/my_last for the point-to-point sync
// at the given level, from this worker's stage-1 descent paths.
func (w *wstate) setBoundsFromPaths(level int) {
	if len(w.paths) == 0 {
		w.myFirst, w.myLast = nil, nil
		return
	}
	w.myFirst = w.paths[0].nodeAtLevel(level)
	w.myLast = w.paths[len(w.paths)-1].nodeAtLevel(level)
}

// setBoundsFromFences computes my_first/my_last for a stage-3 sync from the
// fences produced at the given buffer parity.
func (w *wstate) setBoundsFromFences(parity, level int) {
	fs := w.fences[parity]
	if len(fs) == 0 {
		w.myFirst, w.myLast = nil, nil
		return
	}
	w.myFirst = fs[0].pth.nodeAtLevel(level)
	w.myLast = fs[len(fs)-1].pth.nodeAtLevel(level)
}

// insertFence inserts f into fences[level%2] in ascending key order,
// mirroring worker_insert_fence, and returns its index.
func (w *wstate) insertFence(level int, f fence) int {
	idx := level % 2
	fs := w.fences[idx]
	i := 0
	for i < len(fs) && bytesLess(fs[i].key, f.key) {
		i++
	}
	fs = append(fs, fence{})
	copy(fs[i+1:], fs[i:])
	fs[i] = f
	w.fences[idx] = fs
	return i
}

// nextFenceAfter returns the fence immediately after index i in
// fences[level%2], mirroring worker_update_fence's "advance the tracked
// fence" behavior.
func (w *wstate) nextFenceAfter(level, i int) (fence, bool) {
	idx := level % 2
	fs := w.fences[idx]
	if i+1 < len(fs) {
		return fs[i+1], true
	}
	return fence{}, false
}

func bytesLess(a, b []byte) bool {
	return bytesCompare(a, b) <= 0
}
