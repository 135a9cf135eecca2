package palm

// redistributePaths implements worker_redistribute_work's level-0 case: a
// leaf touched by both this worker and its predecessor is owned entirely by
// the predecessor (leftmost wins), and a run of trailing paths matching
// this worker's last leaf is absorbed from following workers that touched
// nothing else.
func redistributePaths(workers []*wstate, id int) {
	w := workers[id]
	if len(w.paths) == 0 {
		w.totPath = 0
		return
	}

	if w.theirLast != magicNode && w.myFirst == w.theirLast {
		w.begPath = len(w.paths)
		for i, p := range w.paths {
			if p.nodeAtLevel(0) != w.theirLast {
				w.begPath = i
				break
			}
		}
	} else {
		w.begPath = 0
	}
	w.totPath = len(w.paths) - w.begPath

	if w.totPath == 0 || w.theirFirst == magicNode || w.myLast != w.theirFirst {
		return
	}

	for nid := id + 1; nid < len(workers); nid++ {
		next := workers[nid]
		if len(next.paths) == 0 {
			break
		}
		absorbed := 0
		for _, p := range next.paths {
			if p.nodeAtLevel(0) != w.myLast {
				return
			}
			absorbed++
		}
		w.totPath += absorbed
	}
}

// redistributeFences is the level>=1 analogue of redistributePaths, over a
// worker's pending fences instead of its stage-1 paths.
func redistributeFences(workers []*wstate, id, parity, level int) {
	w := workers[id]
	fs := w.fences[parity]
	if len(fs) == 0 {
		w.totFence = 0
		return
	}

	if w.theirLast != magicNode && w.myFirst == w.theirLast {
		w.begFence = len(fs)
		for i, f := range fs {
			if f.pth.nodeAtLevel(level) != w.theirLast {
				w.begFence = i
				break
			}
		}
	} else {
		w.begFence = 0
	}
	w.totFence = len(fs) - w.begFence

	if w.totFence == 0 || w.theirFirst == magicNode || w.myLast != w.theirFirst {
		return
	}

	for nid := id + 1; nid < len(workers); nid++ {
		next := workers[nid]
		nfs := next.fences[parity]
		if len(nfs) == 0 {
			break
		}
		absorbed := 0
		for _, f := range nfs {
			if f.pth.nodeAtLevel(level) != w.myLast {
				return
			}
			absorbed++
		}
		w.totFence += absorbed
	}
}

// pathIter walks the paths a worker owns after redistribution, which may
// span into following workers' path lists when this worker absorbed
// trailing overlap. Mirrors init_path_iter/next_path.
type pathIter struct {
	workers   []*wstate
	ownerIdx  int
	offset    int
	remaining int
}

func newPathIter(workers []*wstate, ownerID int) *pathIter {
	w := workers[ownerID]
	return &pathIter{workers: workers, ownerIdx: ownerID, offset: w.begPath, remaining: w.totPath}
}

func (it *pathIter) next() *path {
	if it.remaining <= 0 {
		return nil
	}
	w := it.workers[it.ownerIdx]
	for it.offset == len(w.paths) {
		it.ownerIdx++
		w = it.workers[it.ownerIdx]
		it.offset = 0
	}
	p := w.paths[it.offset]
	it.offset++
	it.remaining--
	return p
}

// fenceIter is pathIter's analogue over a worker's (possibly
// cross-worker-absorbed) fence ownership at a given level.
type fenceIter struct {
	workers   []*wstate
	parity    int
	ownerIdx  int
	offset    int
	remaining int
}

func newFenceIter(workers []*wstate, ownerID, parity int) *fenceIter {
	w := workers[ownerID]
	return &fenceIter{workers: workers, parity: parity, ownerIdx: ownerID, offset: w.begFence, remaining: w.totFence}
}

func (it *fenceIter) next() *fence {
	if it.remaining <= 0 {
		return nil
	}
	w := it.workers[it.ownerIdx]
	for it.offset == len(w.fences[it.parity]) {
		it.ownerIdx++
		w = it.workers[it.ownerIdx]
		it.offset = 0
	}
	f := &w.fences[it.parity][it.offset]
	it.offset++
	it.remaining--
	return f
}
