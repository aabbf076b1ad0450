package bipartite

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"treenet/internal/domain"
	"treenet/internal/tree"
)

var log = logrus.WithField("component", "bipartite")

// builder carries the vertex counters of one projection
type builder struct {
	t        *tree.Tree
	g        *Graph
	routers  int
	subnets  int
	switches int
}

// Build projects the tree, starting from its shallowest branching point.
// Neighborhoods above that point form a single chain towards the vantage point
// and are left out.
func Build(t *tree.Tree) *Graph {
	b := &builder{t: t, g: newGraph()}

	start := t.Root()
	for {
		kids := start.Children()
		if len(kids) != 1 {
			break
		}
		child := t.Node(kids[0])
		if child.Kind() != tree.KindNeighborhood {
			break
		}
		start = child
	}

	if start.Kind() == tree.KindRoot {
		b.vantage(start)
	} else {
		b.visit(start, nil)
	}

	log.Debugf("projected %d routers, %d subnets, %d switches, %d links",
		b.routers, b.subnets, b.switches, len(b.g.Links))
	return b.g
}

// visit projects one neighborhood. ingress is the subnet vertex it was reached
// through, nil for the first projected level.
func (b *builder) visit(n *tree.Node, ingress *Vertex) {
	var routers []*Vertex
	for _, r := range n.Routers() {
		routers = append(routers, b.router(r, n.Depth()))
	}
	if len(routers) == 0 {
		routers = append(routers, b.router(nil, n.Depth()))
	}

	if len(routers) > 1 {
		b.switches++
		sw := b.g.add(&Vertex{
			ID:        fmt.Sprintf("E%d", b.switches),
			Kind:      VertexSwitch,
			Imaginary: true,
			Depth:     n.Depth(),
		})
		for _, r := range routers {
			b.g.link(LinkSwitchRouter, sw, r)
		}
	}

	if ingress != nil {
		b.g.link(LinkRouterSubnet, owner(routers, ingress.Subnet), ingress)
	}

	subnets := b.t.ChildSubnets(n)
	vertices := make([]*Vertex, len(subnets))
	for i, s := range subnets {
		vertices[i] = b.subnet(s)
		b.g.link(LinkRouterSubnet, owner(routers, s), vertices[i])
	}

	for _, c := range b.t.ChildNeighborhoods(n) {
		via := connecting(c, subnets, vertices)
		if via == nil {
			via = b.imaginarySubnet()
			b.g.link(LinkRouterSubnet, routers[0], via)
		}
		b.visit(c, via)
	}
}

// vantage projects a branching root. An imaginary router at depth 0 holds the
// root's subnets and reaches every first-level neighborhood, through the root
// subnet containing one of its labels or else through an imaginary subnet.
func (b *builder) vantage(root *tree.Node) {
	subnets := b.t.ChildSubnets(root)
	kids := b.t.ChildNeighborhoods(root)
	if len(subnets) == 0 && len(kids) == 0 {
		return
	}

	v := b.router(nil, 0)
	vertices := make([]*Vertex, len(subnets))
	for i, s := range subnets {
		vertices[i] = b.subnet(s)
		b.g.link(LinkRouterSubnet, v, vertices[i])
	}
	for _, c := range kids {
		via := connecting(c, subnets, vertices)
		if via == nil {
			via = b.imaginarySubnet()
			b.g.link(LinkRouterSubnet, v, via)
		}
		b.visit(c, via)
	}
}

func (b *builder) imaginarySubnet() *Vertex {
	b.subnets++
	return b.g.add(&Vertex{
		ID:        fmt.Sprintf("S%d", b.subnets),
		Kind:      VertexSubnet,
		Imaginary: true,
	})
}

func (b *builder) router(r *domain.Router, depth int) *Vertex {
	b.routers++
	return b.g.add(&Vertex{
		ID:        fmt.Sprintf("R%d", b.routers),
		Kind:      VertexRouter,
		Imaginary: r == nil,
		Router:    r,
		Depth:     depth,
	})
}

func (b *builder) subnet(s *domain.Subnet) *Vertex {
	b.subnets++
	return b.g.add(&Vertex{
		ID:     fmt.Sprintf("S%d", b.subnets),
		Kind:   VertexSubnet,
		Subnet: s,
	})
}

// owner picks the router holding one of the subnet's interfaces: its
// contra-pivot first, then any address inside the prefix. The first router
// is the fallback.
func owner(routers []*Vertex, s *domain.Subnet) *Vertex {
	if s == nil {
		return routers[0]
	}
	for _, cp := range s.ContraPivots() {
		for _, r := range routers {
			if r.Router != nil && r.Router.Has(cp) {
				return r
			}
		}
	}
	for _, r := range routers {
		if r.Router == nil {
			continue
		}
		for _, a := range r.Router.Addrs() {
			if s.Contains(a) {
				return r
			}
		}
	}
	return routers[0]
}

// connecting returns the vertex of the subnet containing one of the labels
// of a child neighborhood
func connecting(c *tree.Node, subnets []*domain.Subnet, vertices []*Vertex) *Vertex {
	for _, l := range c.Labels() {
		for i, s := range subnets {
			if s.Contains(l) {
				return vertices[i]
			}
		}
	}
	return nil
}
