package domain

import (
	"net/netip"
	"strings"
)

// AliasMethod records which technique justified adding an interface to a router
type AliasMethod string

const (
	AliasFirstElement    AliasMethod = "FIRST_IP"
	AliasAlly            AliasMethod = "ALLY"
	AliasVelocityOverlap AliasMethod = "IPID_VELOCITY"
	AliasReverseDNS      AliasMethod = "REVERSE_DNS"
	AliasGroupEcho       AliasMethod = "GROUP_ECHO"
	AliasGroupRandom     AliasMethod = "GROUP_RANDOM"
)

// RouterInterface is one interface of an inferred router
type RouterInterface struct {
	Addr   netip.Addr  `json:"addr" yaml:"addr"`
	Method AliasMethod `json:"method" yaml:"method"`
}

// Router is a group of interfaces inferred to belong to the same device
type Router struct {
	Interfaces []RouterInterface `json:"interfaces" yaml:"interfaces"`
}

// NewRouter creates a router seeded with one interface
func NewRouter(addr netip.Addr, method AliasMethod) *Router {
	return &Router{Interfaces: []RouterInterface{{Addr: addr, Method: method}}}
}

// Add appends an interface unless it is already present
func (r *Router) Add(addr netip.Addr, method AliasMethod) {
	if r.Has(addr) {
		return
	}
	r.Interfaces = append(r.Interfaces, RouterInterface{Addr: addr, Method: method})
}

// Has reports whether addr is an interface of the router
func (r *Router) Has(addr netip.Addr) bool {
	for _, i := range r.Interfaces {
		if i.Addr == addr {
			return true
		}
	}
	return false
}

// Size returns the number of interfaces
func (r *Router) Size() int {
	return len(r.Interfaces)
}

// Addrs returns the interface addresses in insertion order
func (r *Router) Addrs() []netip.Addr {
	out := make([]netip.Addr, len(r.Interfaces))
	for i, ri := range r.Interfaces {
		out[i] = ri.Addr
	}
	return out
}

// String renders the router as "addr (METHOD), ..."
func (r *Router) String() string {
	parts := make([]string, len(r.Interfaces))
	for i, ri := range r.Interfaces {
		parts[i] = ri.Addr.String() + " (" + string(ri.Method) + ")"
	}
	return strings.Join(parts, ", ")
}
