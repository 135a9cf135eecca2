package palm

import "github.com/ssargent/latchtree/pkg/slab"

// executeBranches applies every fence this worker owns at level to the
// owning branch node, mirroring worker_execute_on_branch_nodes. A branch
// overflow always uses the ordinary median split; the sequential-insert
// optimization is leaf-only per spec.
func (w *wstate) executeBranches(workers []*wstate, level int) {
	it := newFenceIter(workers, w.id, (level-1)%2)

	var pn, curr *slab.Node
	var activeFence fence
	hasFence := false

	for {
		cf := it.next()
		if cf == nil {
			break
		}
		cn := cf.pth.nodeAtLevel(level)

		if cn != pn {
			curr = cn
			hasFence = false
		} else if hasFence && bytesCompare(cf.key, activeFence.key) >= 0 {
			curr = activeFence.sibling
			hasFence = false
		}

		switch err := curr.InsertBranch(cf.key, cf.sibling); err {
		case nil:
		case slab.ErrNoSpace:
			sib, sep, _ := curr.Split()
			f := fence{key: sep, sibling: sib, pth: cf.pth}
			idx := w.insertFence(level, f)

			if bytesCompare(cf.key, sep) > 0 {
				curr = sib
				if nf, ok := w.nextFenceAfter(level, idx); ok {
					activeFence, hasFence = nf, true
				} else {
					hasFence = false
				}
			} else {
				activeFence, hasFence = f, true
			}

			if err2 := curr.InsertBranch(cf.key, cf.sibling); err2 != nil {
				panic("palm: branch insert failed after split: " + err2.Error())
			}
		default:
			// A fence's key is always a copy of an already-validated op key
			// or a prior split point, so this should be unreachable; skip
			// rather than let an unrecovered panic here take the whole
			// process down.
		}

		pn = cn
	}
}
