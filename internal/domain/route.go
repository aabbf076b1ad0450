package domain

import (
	"net/netip"
	"strings"
)

// UnknownHop is the sentinel stored for a hop that timed out
var UnknownHop = netip.Addr{}

// IsUnknown reports whether addr is the unknown-hop sentinel
func IsUnknown(addr netip.Addr) bool {
	return !addr.IsValid() || addr.IsUnspecified()
}

// Route is the ordered sequence of hop interfaces leading to a subnet
type Route []netip.Addr

// ParseRoute parses hop strings; "*", "" and "0.0.0.0" become the unknown sentinel
func ParseRoute(hops []string) (Route, error) {
	route := make(Route, 0, len(hops))
	for _, h := range hops {
		h = strings.TrimSpace(h)
		if h == "" || h == "*" {
			route = append(route, UnknownHop)
			continue
		}
		addr, err := netip.ParseAddr(h)
		if err != nil {
			return nil, err
		}
		if addr.IsUnspecified() {
			addr = UnknownHop
		}
		route = append(route, addr)
	}
	return route, nil
}

// Hop returns the interface at 1-based depth d, or the unknown sentinel when out of range
func (r Route) Hop(d int) netip.Addr {
	if d < 1 || d > len(r) {
		return UnknownHop
	}
	return r[d-1]
}

// Complete returns true when every hop answered
func (r Route) Complete() bool {
	for _, hop := range r {
		if IsUnknown(hop) {
			return false
		}
	}
	return true
}

// KnownHops counts the hops that are not the unknown sentinel
func (r Route) KnownHops() int {
	n := 0
	for _, hop := range r {
		if !IsUnknown(hop) {
			n++
		}
	}
	return n
}

// Strings renders the route with "*" for unknown hops
func (r Route) Strings() []string {
	out := make([]string, len(r))
	for i, hop := range r {
		if IsUnknown(hop) {
			out[i] = "*"
		} else {
			out[i] = hop.String()
		}
	}
	return out
}

// String returns the route as a comma separated list
func (r Route) String() string {
	return strings.Join(r.Strings(), ", ")
}
