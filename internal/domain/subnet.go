package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidPrefix is returned when a subnet prefix cannot be parsed
var ErrInvalidPrefix = errors.New("invalid subnet prefix")

// SubnetStatus is the confidence tag attached to an inferred subnet
type SubnetStatus string

const (
	SubnetStatusAccurate  SubnetStatus = "accurate"
	SubnetStatusOdd       SubnetStatus = "odd"
	SubnetStatusShadow    SubnetStatus = "shadow"
	SubnetStatusUndefined SubnetStatus = "undefined"
)

// ParseSubnetStatus parses a status tag; unknown values map to undefined
func ParseSubnetStatus(s string) SubnetStatus {
	switch SubnetStatus(strings.ToLower(strings.TrimSpace(s))) {
	case SubnetStatusAccurate:
		return SubnetStatusAccurate
	case SubnetStatusOdd:
		return SubnetStatusOdd
	case SubnetStatusShadow:
		return SubnetStatusShadow
	default:
		return SubnetStatusUndefined
	}
}

// Interface is a live interface of a subnet with the hop count it answered at
type Interface struct {
	Addr netip.Addr `json:"addr" yaml:"addr"`
	Hops int        `json:"hops" yaml:"hops"`
}

// Subnet is an inferred subnet with the route used to reach it
type Subnet struct {
	Prefix     netip.Prefix `json:"prefix"`
	Route      Route        `json:"route"`
	Status     SubnetStatus `json:"status"`
	Interfaces []Interface  `json:"interfaces"`
}

// NewSubnet creates a subnet from a CIDR string, masking host bits
func NewSubnet(cidr string, route Route, status SubnetStatus) (*Subnet, error) {
	pfx, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPrefix, cidr, err)
	}
	return &Subnet{
		Prefix: pfx.Masked(),
		Route:  route,
		Status: status,
	}, nil
}

// AddInterface records a live interface
func (s *Subnet) AddInterface(addr netip.Addr, hops int) {
	s.Interfaces = append(s.Interfaces, Interface{Addr: addr, Hops: hops})
}

// Base returns the network address of the subnet
func (s *Subnet) Base() netip.Addr {
	return s.Prefix.Addr()
}

// Contains reports whether addr falls inside the subnet prefix
func (s *Subnet) Contains(addr netip.Addr) bool {
	return s.Prefix.Contains(addr)
}

// HasInterface reports whether addr is one of the live interfaces
func (s *Subnet) HasInterface(addr netip.Addr) bool {
	for _, i := range s.Interfaces {
		if i.Addr == addr {
			return true
		}
	}
	return false
}

// minMaxHops returns the smallest and largest hop counts of the live interfaces
func (s *Subnet) minMaxHops() (int, int) {
	if len(s.Interfaces) == 0 {
		return 0, 0
	}
	lo, hi := s.Interfaces[0].Hops, s.Interfaces[0].Hops
	for _, i := range s.Interfaces[1:] {
		lo = min(lo, i.Hops)
		hi = max(hi, i.Hops)
	}
	return lo, hi
}

// ContraPivots returns the interfaces found one hop closer than the rest.
// A subnet whose interfaces all share one hop count has no contra-pivot.
func (s *Subnet) ContraPivots() []netip.Addr {
	lo, hi := s.minMaxHops()
	if lo == hi {
		return nil
	}
	var out []netip.Addr
	for _, i := range s.Interfaces {
		if i.Hops == lo {
			out = append(out, i.Addr)
		}
	}
	return out
}

// ContraPivot returns the first contra-pivot interface
func (s *Subnet) ContraPivot() (netip.Addr, bool) {
	cps := s.ContraPivots()
	if len(cps) == 0 {
		return netip.Addr{}, false
	}
	return cps[0], true
}

// IsContraPivot reports whether addr is a contra-pivot of the subnet
func (s *Subnet) IsContraPivot(addr netip.Addr) bool {
	for _, cp := range s.ContraPivots() {
		if cp == addr {
			return true
		}
	}
	return false
}

// Pivots returns the live interfaces that are not contra-pivots
func (s *Subnet) Pivots() []netip.Addr {
	lo, hi := s.minMaxHops()
	var out []netip.Addr
	for _, i := range s.Interfaces {
		if lo == hi || i.Hops != lo {
			out = append(out, i.Addr)
		}
	}
	return out
}

// RouteComplete returns true when the route has no unknown hop
func (s *Subnet) RouteComplete() bool {
	return s.Route.Complete()
}

// String returns a short description of the subnet
func (s *Subnet) String() string {
	return fmt.Sprintf("%s (%s)", s.Prefix, s.Status)
}
