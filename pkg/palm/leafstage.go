package palm

import "github.com/ssargent/latchtree/pkg/slab"

// executeLeaves applies every path this worker owns (after redistribution)
// to its leaf node, mirroring worker_execute_on_leaf_nodes. No locking is
// needed: the stage-1/2 barrier plus leftmost-wins ownership guarantees no
// other worker touches the same leaf during this call.
func (w *wstate) executeLeaves(workers []*wstate, b *Batch) {
	it := newPathIter(workers, w.id)

	var pn, curr *slab.Node
	var activeFence fence
	hasFence := false

	for {
		p := it.next()
		if p == nil {
			break
		}
		cn := p.nodeAtLevel(0)
		op := b.ops[p.kvID]

		if cn != pn {
			curr = cn
			hasFence = false
		} else if hasFence && bytesCompare(op.Key, activeFence.key) >= 0 {
			curr = activeFence.sibling
			hasFence = false
		}

		switch op.Kind {
		case OpPut:
			switch err := curr.InsertLeaf(op.Key, op.Value); err {
			case nil:
				op.Result = 1
			case slab.ErrDuplicate:
				op.Result = 0
			case slab.ErrNoSpace:
				sib, sep := w.splitLeafForInsert(curr, op.Key)
				f := fence{key: sep, sibling: sib, pth: p}
				idx := w.insertFence(0, f)

				if bytesCompare(op.Key, sep) >= 0 {
					curr = sib
					if nf, ok := w.nextFenceAfter(0, idx); ok {
						activeFence, hasFence = nf, true
					} else {
						hasFence = false
					}
				} else {
					activeFence, hasFence = f, true
				}

				if err2 := curr.InsertLeaf(op.Key, op.Value); err2 != nil {
					panic("palm: leaf insert failed after split: " + err2.Error())
				}
				op.Result = 1
			default:
				// Engine.Execute validates every key's length before a
				// batch is ever enqueued, so slab.ErrInvalidKey should
				// never reach a worker. Any other error InsertLeaf returns
				// here (such as slab.ErrKeyOutOfPrefix) fails just this op
				// rather than let an unrecovered panic here take the whole
				// process down.
				op.Result = 0
				op.Found = false
			}
		case OpGet:
			v, found, _ := curr.Search(op.Key)
			op.Result = v
			op.Found = found
		}

		pn = cn
	}
}

// splitLeafForInsert chooses between the ordinary median split and the
// sequential-insert optimization: when the incoming key is strictly past
// the node's current high key and this node hasn't already used its one
// suppressed split this batch, just append a one-key sibling instead of
// halving the node.
func (w *wstate) splitLeafForInsert(n *slab.Node, key []byte) (*slab.Node, []byte) {
	if !w.seqSplitDone[n] && n.Count() > 0 && bytesCompare(key, n.HighKey()) > 0 {
		w.seqSplitDone[n] = true
		sib := slab.New(n.Kind, n.Level, n.Cap())
		sib.MaxKeySize = n.MaxKeySize
		sib.Next = n.Next
		n.Next = sib
		return sib, append([]byte(nil), key...)
	}
	sib, sep, _ := n.Split()
	return sib, sep
}
