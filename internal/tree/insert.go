package tree

import (
	"treenet/internal/domain"
)

// Insert places a subnet in the tree. It returns false when a subnet with the
// same prefix was inserted before, in which case the tree is left untouched.
//
// The deepest neighborhood already labelled with the matching hop of the route
// becomes the insertion point; the missing part of the branch is created below
// it, then the labels of every ancestor are reconciled with the route. A label
// added to an ancestor that another neighborhood at the same depth already
// carries means both were reached through diverging load-balanced paths: the
// other neighborhood is merged in and its empty shell pruned.
func (t *Tree) Insert(s *domain.Subnet) bool {
	if _, dup := t.index.get(s.Prefix); dup {
		t.stats.Duplicates++
		log.Debugf("subnet %s already inserted, skipping", s.Prefix)
		return false
	}

	route := s.Route
	point, depth := t.root, 0
	for d := len(route); d >= 1; d-- {
		hop := route[d-1]
		if domain.IsUnknown(hop) {
			continue
		}
		if id, ok := t.findLabel(d, hop, NoNode); ok {
			point, depth = id, d
			break
		}
	}

	last := t.grow(t.nodes[point], route, depth)
	leaf := t.newNode(KindSubnet, last.id, last.depth+1)
	leaf.subnet = s
	t.attach(last, leaf)

	t.reconcile(point, depth, route)

	t.index.insert(s)
	t.stats.Inserted++
	log.Debugf("inserted %s below node %d (depth %d)", s.Prefix, last.id, last.depth)
	return true
}

// grow builds the chain of neighborhoods for the hops after depth and returns
// the node the leaf must hang from. Trailing unknown hops create nothing; an
// unknown hop followed by a known one becomes an anonymous neighborhood so
// depths stay aligned with TTLs.
func (t *Tree) grow(from *Node, route domain.Route, depth int) *Node {
	end := len(route)
	for end > depth && domain.IsUnknown(route[end-1]) {
		end--
	}

	cur := from
	for d := depth + 1; d <= end; d++ {
		n := t.newNode(KindNeighborhood, cur.id, d)
		if hop := route[d-1]; !domain.IsUnknown(hop) {
			n.AddLabel(hop)
		}
		if prev := route.Hop(d - 1); !domain.IsUnknown(prev) {
			n.AddPreviousLabel(prev)
		}
		t.attach(cur, n)
		t.register(n)
		cur = n
	}
	return cur
}

// reconcile walks from the insertion point up to the root, adding the route's
// hop to each ancestor that lacks it and merging same-depth duplicates.
func (t *Tree) reconcile(from NodeID, depth int, route domain.Route) {
	cur := from
	for d := depth; d >= 1 && cur != t.root; d-- {
		n := t.nodes[cur]
		if prev := route.Hop(d - 1); !domain.IsUnknown(prev) {
			n.AddPreviousLabel(prev)
		}
		if hop := route.Hop(d); !domain.IsUnknown(hop) && n.AddLabel(hop) {
			if other, ok := t.findLabel(d, hop, n.id); ok {
				t.absorb(n, t.nodes[other])
			}
		}
		cur = n.parent
	}
}

// absorb merges other into n, unions their labels and prunes the empty shell
func (t *Tree) absorb(n, other *Node) {
	log.Debugf("merging node %d %v into node %d %v at depth %d", other.id, other.labels, n.id, n.labels, n.depth)
	t.merge(n, other)
	for _, l := range other.labels {
		n.AddLabel(l)
	}
	for _, p := range other.previous {
		n.AddPreviousLabel(p)
	}
	t.stats.Merges++
	t.prune(other.parent, other.id)
}

// merge moves the children of other below n, leaving other childless
func (t *Tree) merge(n, other *Node) {
	for _, c := range other.children {
		t.nodes[c].parent = n.id
	}
	n.children = append(n.children, other.children...)
	other.children = nil
}

// prune removes an emptied child from its parent. A neighborhood left without
// children is removed in turn, up to the root.
func (t *Tree) prune(parentID, emptied NodeID) {
	parent := t.nodes[parentID]
	parent.removeChild(emptied)
	t.release(emptied)

	switch parent.kind {
	case KindRoot:
		return
	case KindSubnet:
		// leaves never have children to prune
		return
	}
	if len(parent.children) > 0 {
		return
	}
	log.Debugf("neighborhood %d %v left without children, pruning", parent.id, parent.labels)
	t.prune(parent.parent, parent.id)
}
