package tree

import (
	"net/netip"
	"slices"

	"treenet/internal/domain"
)

// NodeID is a handle into the tree's node arena
type NodeID int

// NoNode is the handle of a missing node (the root's parent)
const NoNode NodeID = -1

// Kind tells which of the three node variants a Node is
type Kind uint8

const (
	KindRoot Kind = iota
	KindNeighborhood
	KindSubnet
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindNeighborhood:
		return "neighborhood"
	case KindSubnet:
		return "subnet"
	default:
		return "unknown"
	}
}

// Node is a vertex of the network tree. Root has neither labels nor subnet,
// neighborhoods carry labels and children, subnet leaves carry one subnet.
type Node struct {
	id       NodeID
	kind     Kind
	parent   NodeID
	depth    int
	labels   []netip.Addr
	previous []netip.Addr
	children []NodeID
	subnet   *domain.Subnet
	routers  []*domain.Router
}

// ID returns the node handle
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node variant
func (n *Node) Kind() Kind { return n.kind }

// Parent returns the parent handle, NoNode for the root
func (n *Node) Parent() NodeID { return n.parent }

// Depth returns the distance from the root (root is 0)
func (n *Node) Depth() int { return n.depth }

// Labels returns a copy of the hop interfaces observed at this node, sorted
func (n *Node) Labels() []netip.Addr { return slices.Clone(n.labels) }

// PreviousLabels returns a copy of the interfaces observed one hop earlier, sorted
func (n *Node) PreviousLabels() []netip.Addr { return slices.Clone(n.previous) }

// Children returns a copy of the child handles in insertion order
func (n *Node) Children() []NodeID { return slices.Clone(n.children) }

// Subnet returns the subnet of a leaf, nil for other kinds
func (n *Node) Subnet() *domain.Subnet { return n.subnet }

// Routers returns the routers inferred for a neighborhood
func (n *Node) Routers() []*domain.Router { return n.routers }

// SetRouters stores the result of alias resolution on a neighborhood
func (n *Node) SetRouters(routers []*domain.Router) {
	if n.kind != KindNeighborhood {
		return
	}
	n.routers = routers
}

// IsHedera reports a load-balancing neighborhood (more than one label)
func (n *Node) IsHedera() bool { return len(n.labels) > 1 }

// IsAnonymous reports a neighborhood whose hop never answered
func (n *Node) IsAnonymous() bool { return n.kind == KindNeighborhood && len(n.labels) == 0 }

// HasLabel reports whether addr labels this node
func (n *Node) HasLabel(addr netip.Addr) bool {
	_, found := slices.BinarySearchFunc(n.labels, addr, netip.Addr.Compare)
	return found
}

// AddLabel inserts addr in the label set; returns false if it was already there
func (n *Node) AddLabel(addr netip.Addr) bool {
	return insertSorted(&n.labels, addr)
}

// AddPreviousLabel inserts addr in the previous-label set
func (n *Node) AddPreviousLabel(addr netip.Addr) bool {
	return insertSorted(&n.previous, addr)
}

func (n *Node) removeChild(id NodeID) {
	n.children = slices.DeleteFunc(n.children, func(c NodeID) bool { return c == id })
}

func insertSorted(set *[]netip.Addr, addr netip.Addr) bool {
	i, found := slices.BinarySearchFunc(*set, addr, netip.Addr.Compare)
	if found {
		return false
	}
	*set = slices.Insert(*set, i, addr)
	return true
}
