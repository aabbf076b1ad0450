package tree

import (
	"net/netip"
	"slices"

	"github.com/sirupsen/logrus"

	"treenet/internal/domain"
)

var log = logrus.WithField("component", "tree")

// Stats counts what happened to the tree during its construction
type Stats struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Merges     int `json:"merges"`
	Pruned     int `json:"pruned"`
}

// Tree owns every node of the network tree. Nodes are stored in an arena and
// referenced by handle; a freed handle is never reused within the same tree.
type Tree struct {
	nodes    []*Node
	root     NodeID
	depthMap [][]NodeID
	index    *subnetIndex
	stats    Stats
}

// New creates a tree holding only its root
func New() *Tree {
	t := &Tree{
		index:    newSubnetIndex(),
		depthMap: make([][]NodeID, 1),
	}
	t.root = t.newNode(KindRoot, NoNode, 0).id
	return t
}

func (t *Tree) newNode(kind Kind, parent NodeID, depth int) *Node {
	n := &Node{
		id:     NodeID(len(t.nodes)),
		kind:   kind,
		parent: parent,
		depth:  depth,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Node returns the node behind a handle, nil once the node has been removed
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Root returns the root node
func (t *Tree) Root() *Node {
	return t.nodes[t.root]
}

// Stats returns the construction counters
func (t *Tree) Stats() Stats {
	return t.stats
}

// MaxDepth returns the deepest level holding a neighborhood
func (t *Tree) MaxDepth() int {
	for d := len(t.depthMap) - 1; d > 0; d-- {
		if len(t.depthMap[d]) > 0 {
			return d
		}
	}
	return 0
}

// NodesAtDepth returns the neighborhoods registered at depth d
func (t *Tree) NodesAtDepth(d int) []*Node {
	if d < 0 || d >= len(t.depthMap) {
		return nil
	}
	out := make([]*Node, 0, len(t.depthMap[d]))
	for _, id := range t.depthMap[d] {
		out = append(out, t.nodes[id])
	}
	return out
}

// Lookup returns the most specific inserted subnet containing addr
func (t *Tree) Lookup(addr netip.Addr) *domain.Subnet {
	return t.index.lookup(addr)
}

// SubnetCount returns the number of subnets inserted
func (t *Tree) SubnetCount() int {
	return t.index.size
}

// Traverse visits every node depth-first in pre-order
func (t *Tree) Traverse(visit func(n *Node)) {
	t.walk(t.root, visit)
}

func (t *Tree) walk(id NodeID, visit func(n *Node)) {
	n := t.nodes[id]
	visit(n)
	for _, c := range n.children {
		t.walk(c, visit)
	}
}

// Neighborhoods returns every neighborhood in pre-order
func (t *Tree) Neighborhoods() []*Node {
	var out []*Node
	t.Traverse(func(n *Node) {
		if n.kind == KindNeighborhood {
			out = append(out, n)
		}
	})
	return out
}

// Leaves returns every subnet leaf in pre-order
func (t *Tree) Leaves() []*Node {
	var out []*Node
	t.Traverse(func(n *Node) {
		if n.kind == KindSubnet {
			out = append(out, n)
		}
	})
	return out
}

// ChildSubnets returns the subnets directly attached to a node
func (t *Tree) ChildSubnets(n *Node) []*domain.Subnet {
	var out []*domain.Subnet
	for _, c := range n.children {
		if child := t.nodes[c]; child.kind == KindSubnet {
			out = append(out, child.subnet)
		}
	}
	return out
}

// ChildNeighborhoods returns the neighborhoods directly below a node
func (t *Tree) ChildNeighborhoods(n *Node) []*Node {
	var out []*Node
	for _, c := range n.children {
		if child := t.nodes[c]; child.kind == KindNeighborhood {
			out = append(out, child)
		}
	}
	return out
}

// findLabel scans the neighborhoods at depth d for one carrying addr, skipping except
func (t *Tree) findLabel(d int, addr netip.Addr, except NodeID) (NodeID, bool) {
	if d < 1 || d >= len(t.depthMap) {
		return NoNode, false
	}
	for _, id := range t.depthMap[d] {
		if id != except && t.nodes[id].HasLabel(addr) {
			return id, true
		}
	}
	return NoNode, false
}

func (t *Tree) register(n *Node) {
	for len(t.depthMap) <= n.depth {
		t.depthMap = append(t.depthMap, nil)
	}
	t.depthMap[n.depth] = append(t.depthMap[n.depth], n.id)
}

func (t *Tree) unregister(n *Node) {
	if n.depth >= len(t.depthMap) {
		return
	}
	t.depthMap[n.depth] = slices.DeleteFunc(t.depthMap[n.depth], func(id NodeID) bool { return id == n.id })
}

// release drops a node from every index and frees its handle
func (t *Tree) release(id NodeID) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	if n.kind == KindNeighborhood {
		t.unregister(n)
	}
	t.nodes[id] = nil
	t.stats.Pruned++
}

func (t *Tree) attach(parent *Node, child *Node) {
	parent.children = append(parent.children, child.id)
}
