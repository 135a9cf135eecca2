// Package palm implements the PALM batched engine: a pool of workers that
// applies a whole batch of reads/writes to a B+ tree in four
// barrier-synchronized stages (descend, leaf modification, branch
// propagation, root split), with point-to-point ownership hand-off between
// neighboring workers replacing per-node locking.
//
// Grounded on original_source/src/palm_tree.c (palm_tree_execute's stage
// order and handle_root_split) and original_source/src/worker.c
// (worker_sync's point-to-point protocol and worker_redistribute_work's
// leftmost-wins ownership rule), translated from pthreads + busy-spin
// channels into goroutines, a sync.WaitGroup per-batch join, and buffered
// Go channels for the mailbox handshake. See DESIGN.md for the full list
// of deviations.
package palm

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ssargent/latchtree/pkg/queue"
	"github.com/ssargent/latchtree/pkg/slab"
)

// maxWorkers is the small implementation-defined cap spec §6 asks for.
const maxWorkers = 32

// ErrInvalidKey is returned by Execute when a batch carries an op whose key
// has length 0 or exceeds the engine's configured maxKeySize. Checked once,
// for the whole batch, before any op is enqueued, so a malformed key never
// reaches a worker mid-stage.
var ErrInvalidKey = errors.New("palm: invalid key length")

// Engine is a PALM batched engine over a single B+ tree.
type Engine struct {
	root atomic.Pointer[slab.Node]

	nodeSize    int
	maxKeySize  int
	workerCount int

	Strategy DescendStrategy

	queue   *queue.Queue
	stopped sync.WaitGroup
}

// NewEngine constructs an engine with an empty tree and starts its batch
// dispatcher. workerCount is clamped to [1, maxWorkers]; queueDepth is
// clamped to >= 1 by pkg/queue.
func NewEngine(workerCount, queueDepth, nodeSize, maxKeySize int) *Engine {
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > maxWorkers {
		workerCount = maxWorkers
	}

	e := &Engine{
		nodeSize:    nodeSize,
		maxKeySize:  maxKeySize,
		workerCount: workerCount,
		Strategy:    LevelStrategy{},
		queue:       queue.New(queueDepth),
	}

	root := slab.New(slab.Leaf, 0, nodeSize)
	root.MaxKeySize = maxKeySize
	e.root.Store(root)

	e.stopped.Add(1)
	go e.dispatch()
	return e
}

// Execute enqueues batch for processing and returns immediately. Every op's
// key is validated against the engine's maxKeySize first; if any op is
// malformed, the whole batch is rejected rather than enqueued, so a bad key
// can never reach a worker mid-execute.
func (e *Engine) Execute(b *Batch) error {
	for _, op := range b.ops {
		if len(op.Key) == 0 || len(op.Key) > e.maxKeySize {
			return ErrInvalidKey
		}
	}
	return e.queue.Enqueue(b)
}

// MaxKeySize returns the key length ceiling this engine enforces.
func (e *Engine) MaxKeySize() int { return e.maxKeySize }

// Flush blocks until every enqueued batch has been applied.
func (e *Engine) Flush() {
	e.queue.WaitEmpty()
}

// Shutdown marks the engine closed and waits for the dispatcher to exit.
// An in-flight batch always completes all four stages before the
// dispatcher observes the shutdown.
func (e *Engine) Shutdown() {
	e.queue.Clear()
	e.stopped.Wait()
}

func (e *Engine) dispatch() {
	defer e.stopped.Done()
	for {
		v, ok := e.queue.PeekAt(0)
		if !ok {
			return
		}
		e.executeBatch(v.(*Batch))
		e.queue.Dequeue()
	}
}

// executeBatch runs one batch through all four PALM stages against the
// tree root captured at entry, then publishes any root split.
func (e *Engine) executeBatch(b *Batch) {
	root := e.root.Load()
	rootLevel := int(root.Level)
	n := e.workerCount
	m := b.Len()

	workers := make([]*wstate, n)
	for i := range workers {
		workers[i] = newWstate(i, n)
	}

	levels := rootLevel + 2
	mailboxes := make([][]*mailbox, levels)
	for l := range mailboxes {
		mailboxes[l] = make([]*mailbox, n)
		for i := range mailboxes[l] {
			mailboxes[l][i] = newMailbox()
		}
	}

	part := 0
	if n > 0 {
		part = (m + n - 1) / n
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			runWorker(workers, id, root, rootLevel, b, part, mailboxes, e.Strategy)
		}(i)
	}
	wg.Wait()

	fences := gatherRootFences(workers, rootLevel)
	e.applyRootSplit(root, fences)
}

// runWorker is one worker's full stage 1-3 sequence for a batch.
func runWorker(
	workers []*wstate,
	id int,
	root *slab.Node,
	rootLevel int,
	b *Batch,
	part int,
	mailboxes [][]*mailbox,
	strategy DescendStrategy,
) {
	w := workers[id]
	m := b.Len()

	beg := id * part
	if beg > m {
		beg = m
	}
	end := beg + part
	if end > m {
		end = m
	}

	// Stage 1: descend.
	if beg < end {
		w.paths = strategy.Descend(root, rootLevel, b.ops[beg:end], beg)
	}
	w.setBoundsFromPaths(0)
	syncLevel(w, mailboxes[0])

	// Stage 2: redistribute ownership, modify leaves.
	redistributePaths(workers, id)
	w.executeLeaves(workers, b)

	// Handoff into stage 3 (always happens, even when rootLevel == 0 and
	// the loop below never runs).
	w.setBoundsFromFences(0, 1)
	syncLevel(w, mailboxes[1])

	// Stage 3: propagate splits level by level.
	level := 1
	for level <= rootLevel {
		redistributeFences(workers, id, (level-1)%2, level)
		w.executeBranches(workers, level)

		level++
		w.setBoundsFromFences((level-1)%2, level)
		syncLevel(w, mailboxes[level])
		w.fences[level%2] = w.fences[level%2][:0]
	}
}

// gatherRootFences merges every worker's root-level fence buffer (the
// parity written while processing level = rootLevel) into one sorted list,
// the Go equivalent of worker_get_fences's incremental insert-merge.
func gatherRootFences(workers []*wstate, rootLevel int) []fence {
	idx := rootLevel % 2
	var all []fence
	for _, w := range workers {
		all = append(all, w.fences[idx]...)
	}
	sort.Slice(all, func(i, j int) bool { return bytesCompare(all[i].key, all[j].key) < 0 })
	return all
}

// applyRootSplit grows a new root over the old one when stage 4 produced
// fences, mirroring handle_root_split. With no fences, the tree's root is
// unchanged.
func (e *Engine) applyRootSplit(oldRoot *slab.Node, fences []fence) {
	if len(fences) == 0 {
		return
	}

	newRoot := slab.New(slab.Branch, oldRoot.Level+1, e.nodeSize)
	newRoot.MaxKeySize = e.maxKeySize
	newRoot.FirstChild = oldRoot
	for _, f := range fences {
		if err := newRoot.InsertBranch(f.key, f.sibling); err != nil {
			panic("palm: root split insert failed: " + err.Error())
		}
	}
	e.root.Store(newRoot)
}
