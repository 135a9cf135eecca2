package palm

import "github.com/ssargent/latchtree/pkg/slab"

// path is one operation's descent record: every node visited from the root
// down to the owning leaf, root first. nodeAtLevel(0) is always the leaf;
// increasing level walks back toward the root, matching
// path_get_node_at_level in original_source/src/worker.c.
type path struct {
	nodes []*slab.Node
	kvID  int
}

func newPath(kvID int) *path {
	return &path{kvID: kvID}
}

// push appends the next node descended into, in root-to-leaf order.
func (p *path) push(n *slab.Node) {
	p.nodes = append(p.nodes, n)
}

// nodeAtLevel returns the node this path visited at the given level (0 =
// leaf).
func (p *path) nodeAtLevel(level int) *slab.Node {
	idx := len(p.nodes) - 1 - level
	if idx < 0 || idx >= len(p.nodes) {
		return nil
	}
	return p.nodes[idx]
}

// fence is a pending split record: the separator key promoted to the
// parent, the new right sibling, and the path whose node at the fence's
// level produced the split (used to find the parent at level+1).
type fence struct {
	key     []byte
	sibling *slab.Node
	pth     *path
}
