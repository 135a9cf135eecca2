package palm

import (
	"fmt"
	"testing"

	"github.com/ssargent/latchtree/pkg/slab"
)

// buildDescentFixture returns a two-level tree (one branch root over three
// leaves) with enough keys in each leaf to give every strategy real work.
func buildDescentFixture() (*slab.Node, int) {
	leaves := make([]*slab.Node, 3)
	prefixes := []string{"a", "m", "t"}
	for i, p := range prefixes {
		leaves[i] = slab.New(slab.Leaf, 0, slab.MinNodeSize)
		for j := 0; j < 5; j++ {
			_ = leaves[i].InsertLeaf([]byte(fmt.Sprintf("%s%02d", p, j)), uint64(j))
		}
	}

	root := slab.New(slab.Branch, 1, slab.MinNodeSize)
	root.FirstChild = leaves[0]
	_ = root.InsertBranch([]byte("m"), leaves[1])
	_ = root.InsertBranch([]byte("t"), leaves[2])
	return root, 1
}

func collectLeaves(p *path) []*slab.Node {
	return p.nodes
}

func samePaths(a, b []*path) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[int]*path, len(a))
	for _, p := range a {
		byID[p.kvID] = p
	}
	for _, pb := range b {
		pa, ok := byID[pb.kvID]
		if !ok || len(pa.nodes) != len(pb.nodes) {
			return false
		}
		for i := range pa.nodes {
			if pa.nodes[i] != pb.nodes[i] {
				return false
			}
		}
	}
	return true
}

// TestDescentStrategiesAgree checks that Level, Lazy, and Zigzag compute
// the same final node-per-op path set for the same batch, since B+ tree
// descent has only one correct outcome regardless of visiting order.
func TestDescentStrategiesAgree(t *testing.T) {
	root, rootLevel := buildDescentFixture()

	keys := [][]byte{
		[]byte("a00"), []byte("a03"), []byte("m01"), []byte("m04"), []byte("t02"),
	}
	ops := make([]*Op, len(keys))
	for i, k := range keys {
		ops[i] = &Op{Kind: OpGet, Key: k}
	}

	level := LevelStrategy{}.Descend(root, rootLevel, ops, 0)
	lazy := LazyStrategy{}.Descend(root, rootLevel, ops, 0)
	zigzag := ZigzagStrategy{}.Descend(root, rootLevel, ops, 0)

	if !samePaths(level, lazy) {
		t.Fatal("level and lazy strategies disagree on descent paths")
	}
	if !samePaths(level, zigzag) {
		t.Fatal("level and zigzag strategies disagree on descent paths")
	}

	for i := range ops {
		nodes := collectLeaves(level[i])
		leaf := nodes[len(nodes)-1]
		if leaf.Kind != slab.Leaf {
			t.Fatalf("op %d: expected path to end at a leaf, got kind %v", i, leaf.Kind)
		}
	}
}
