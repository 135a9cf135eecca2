package palm

import "github.com/ssargent/latchtree/pkg/slab"

// DescendStrategy computes stage-1 descent paths for a worker's assigned
// slice of a batch. All three strategies in this package produce identical
// paths for identical input — B+ tree descent is deterministic — and
// differ only in traversal order, trading cache locality for
// implementation simplicity. Per spec §4.5, any of them is acceptable;
// this package defaults to Level.
type DescendStrategy interface {
	Descend(root *slab.Node, rootLevel int, ops []*Op, base int) []*path
}

func descendOne(root *slab.Node, rootLevel int, key []byte) *path {
	p := newPath(0)
	level := rootLevel
	cur := root
	for level > 0 {
		p.push(cur)
		next, _ := cur.Descend(key)
		cur = next
		level--
	}
	p.push(cur)
	return p
}

func clonePath(src *path) *path {
	nodes := make([]*slab.Node, len(src.nodes))
	copy(nodes, src.nodes)
	return &path{nodes: nodes}
}

// LevelStrategy is a breadth-first descent: every assigned op advances one
// level at a time, so all ops touch the same tree level's nodes together
// before moving deeper. Default strategy.
type LevelStrategy struct{}

func (LevelStrategy) Descend(root *slab.Node, rootLevel int, ops []*Op, base int) []*path {
	n := len(ops)
	paths := make([]*path, n)
	cur := make([]*slab.Node, n)
	for i := range ops {
		paths[i] = newPath(base + i)
		cur[i] = root
	}
	for level := rootLevel; level > 0; level-- {
		for i, op := range ops {
			paths[i].push(cur[i])
			next, _ := cur[i].Descend(op.Key)
			cur[i] = next
		}
	}
	for i := range ops {
		paths[i].push(cur[i])
	}
	return paths
}

// LazyStrategy descends the leftmost and rightmost op in the assigned
// range fully first; if they land in the same leaf, every op in between
// shares that path (the whole run belongs to one leaf), otherwise each is
// descended individually.
type LazyStrategy struct{}

func (LazyStrategy) Descend(root *slab.Node, rootLevel int, ops []*Op, base int) []*path {
	n := len(ops)
	paths := make([]*path, n)
	if n == 0 {
		return paths
	}

	left := descendOne(root, rootLevel, ops[0].Key)
	right := descendOne(root, rootLevel, ops[n-1].Key)
	paths[0] = left
	paths[n-1] = right

	if left.nodeAtLevel(0) == right.nodeAtLevel(0) {
		for i := 1; i < n-1; i++ {
			paths[i] = clonePath(left)
		}
	} else {
		for i := 1; i < n-1; i++ {
			paths[i] = descendOne(root, rootLevel, ops[i].Key)
		}
	}

	for i, p := range paths {
		p.kvID = base + i
	}
	return paths
}

// ZigzagStrategy is Level's traversal order alternated: even tree levels
// are advanced left-to-right, odd levels right-to-left.
type ZigzagStrategy struct{}

func (ZigzagStrategy) Descend(root *slab.Node, rootLevel int, ops []*Op, base int) []*path {
	n := len(ops)
	paths := make([]*path, n)
	cur := make([]*slab.Node, n)
	for i := range ops {
		paths[i] = newPath(base + i)
		cur[i] = root
	}

	forward := true
	for level := rootLevel; level > 0; level-- {
		idxs := make([]int, n)
		for i := range idxs {
			idxs[i] = i
		}
		if !forward {
			for l, r := 0, n-1; l < r; l, r = l+1, r-1 {
				idxs[l], idxs[r] = idxs[r], idxs[l]
			}
		}
		for _, i := range idxs {
			paths[i].push(cur[i])
			next, _ := cur[i].Descend(ops[i].Key)
			cur[i] = next
		}
		forward = !forward
	}
	for i := range ops {
		paths[i].push(cur[i])
	}
	return paths
}
