package bipartite

import (
	"fmt"
	"io"

	"treenet/internal/domain"
)

// VertexKind tells routers, subnets and switches apart
type VertexKind string

const (
	VertexRouter VertexKind = "router"
	VertexSubnet VertexKind = "subnet"
	VertexSwitch VertexKind = "switch"
)

// LinkKind names the two link relations of the graph
type LinkKind string

const (
	LinkSwitchRouter LinkKind = "switch-router"
	LinkRouterSubnet LinkKind = "router-subnet"
)

// Vertex is one side of a link. Router and Subnet are set for inferred
// vertices of the matching kind only.
type Vertex struct {
	ID        string         `json:"id" yaml:"id"`
	Kind      VertexKind     `json:"kind" yaml:"kind"`
	Imaginary bool           `json:"imaginary" yaml:"imaginary"`
	Router    *domain.Router `json:"router,omitempty" yaml:"router,omitempty"`
	Subnet    *domain.Subnet `json:"subnet,omitempty" yaml:"subnet,omitempty"`
	// Depth of the neighborhood a router or switch was built for
	Depth int `json:"depth" yaml:"depth"`
}

// Tag returns "imaginary" or "inferred"
func (v *Vertex) Tag() string {
	if v.Imaginary {
		return "imaginary"
	}
	return "inferred"
}

// Link connects a switch to a router or a router to a subnet
type Link struct {
	Kind LinkKind `json:"kind" yaml:"kind"`
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
}

// Graph is the bipartite projection of a tree
type Graph struct {
	Vertices []*Vertex `json:"vertices" yaml:"vertices"`
	Links    []Link    `json:"links" yaml:"links"`

	byID map[string]*Vertex
}

func newGraph() *Graph {
	return &Graph{byID: make(map[string]*Vertex)}
}

func (g *Graph) add(v *Vertex) *Vertex {
	g.Vertices = append(g.Vertices, v)
	g.byID[v.ID] = v
	return v
}

func (g *Graph) link(kind LinkKind, from, to *Vertex) {
	g.Links = append(g.Links, Link{Kind: kind, From: from.ID, To: to.ID})
}

// Vertex returns a vertex by ID
func (g *Graph) Vertex(id string) (*Vertex, bool) {
	if g.byID == nil {
		g.reindex()
	}
	v, ok := g.byID[id]
	return v, ok
}

func (g *Graph) reindex() {
	g.byID = make(map[string]*Vertex, len(g.Vertices))
	for _, v := range g.Vertices {
		g.byID[v.ID] = v
	}
}

// Count returns the number of vertices of a kind
func (g *Graph) Count(kind VertexKind) int {
	n := 0
	for _, v := range g.Vertices {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// Neighbors returns the IDs linked to a vertex, in link order
func (g *Graph) Neighbors(id string) []string {
	var out []string
	for _, l := range g.Links {
		switch id {
		case l.From:
			out = append(out, l.To)
		case l.To:
			out = append(out, l.From)
		}
	}
	return out
}

// WriteText writes the vertices, then the links, one per line
func (g *Graph) WriteText(w io.Writer) error {
	for _, v := range g.Vertices {
		var err error
		switch {
		case v.Router != nil:
			_, err = fmt.Fprintf(w, "%s [%s] %s\n", v.ID, v.Tag(), v.Router)
		case v.Subnet != nil:
			_, err = fmt.Fprintf(w, "%s [%s] %s\n", v.ID, v.Tag(), v.Subnet)
		default:
			_, err = fmt.Fprintf(w, "%s [%s]\n", v.ID, v.Tag())
		}
		if err != nil {
			return fmt.Errorf("write vertex %s: %w", v.ID, err)
		}
	}
	for _, l := range g.Links {
		if _, err := fmt.Fprintf(w, "%s - %s\n", l.From, l.To); err != nil {
			return fmt.Errorf("write link %s-%s: %w", l.From, l.To, err)
		}
	}
	return nil
}
