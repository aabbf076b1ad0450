package tree

import (
	"fmt"
	"io"
	"net/netip"
	"strings"
)

// Linkage tells how many labels of a neighborhood are accounted for by its
// child subnets. It is a diagnostic for reporting only.
type Linkage int

const (
	LinkageComplete Linkage = iota
	LinkagePartial
	LinkageMissing
)

// String returns the linkage name
func (l Linkage) String() string {
	switch l {
	case LinkageComplete:
		return "complete"
	case LinkagePartial:
		return "partial"
	default:
		return "missing"
	}
}

// Linkage counts the labels of n not contained in one of its child subnets:
// none is complete, one is partial, two or more (or no label at all) is missing.
func (t *Tree) Linkage(n *Node) Linkage {
	if n.kind != KindNeighborhood || len(n.labels) == 0 {
		return LinkageMissing
	}
	subnets := t.ChildSubnets(n)
	missing := 0
	for _, l := range n.labels {
		found := false
		for _, s := range subnets {
			if s.Contains(l) {
				found = true
				break
			}
		}
		if !found {
			missing++
		}
	}
	switch missing {
	case 0:
		return LinkageComplete
	case 1:
		return LinkagePartial
	default:
		return LinkageMissing
	}
}

// Dump writes a depth-first text rendering of the tree
func (t *Tree) Dump(w io.Writer) error {
	var err error
	t.Traverse(func(n *Node) {
		if err != nil {
			return
		}
		indent := strings.Repeat("  ", n.depth)
		switch n.kind {
		case KindRoot:
			_, err = fmt.Fprintln(w, "root")
		case KindSubnet:
			_, err = fmt.Fprintf(w, "%s%s\n", indent, n.subnet)
		case KindNeighborhood:
			kind := "neighborhood"
			if n.IsHedera() {
				kind = "hedera"
			}
			_, err = fmt.Fprintf(w, "%s%s %s prev %s [%s]\n",
				indent, kind, formatAddrs(n.labels), formatAddrs(n.previous), t.Linkage(n))
			for i, r := range n.routers {
				if err != nil {
					return
				}
				_, err = fmt.Fprintf(w, "%s  router #%d: %s\n", indent, i+1, r)
			}
		}
	})
	return err
}

// String returns the dump as a string
func (t *Tree) String() string {
	var sb strings.Builder
	_ = t.Dump(&sb)
	return sb.String()
}

func formatAddrs(addrs []netip.Addr) string {
	if len(addrs) == 0 {
		return "{*}"
	}
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
