package alias

import (
	"net/netip"
	"slices"

	"github.com/sirupsen/logrus"

	"treenet/internal/domain"
	"treenet/internal/tree"
)

var log = logrus.WithField("component", "alias")

// Stats summarizes one ResolveAll run
type Stats struct {
	Neighborhoods int                        `json:"neighborhoods"`
	Interfaces    int                        `json:"interfaces"`
	Routers       int                        `json:"routers"`
	Discarded     int                        `json:"discarded"`
	Methods       map[domain.AliasMethod]int `json:"methods"`
	Counters      map[CounterType]int        `json:"counters"`
}

// Resolver groups the interfaces of neighborhoods into routers. It is not safe
// for concurrent use.
type Resolver struct {
	hints  domain.HintSource
	params Params
	cache  map[netip.Addr]Fingerprint
}

// NewResolver creates a resolver reading fingerprints from hints
func NewResolver(hints domain.HintSource, params Params) *Resolver {
	return &Resolver{
		hints:  hints,
		params: params,
		cache:  make(map[netip.Addr]Fingerprint),
	}
}

// Fingerprint returns the fingerprint of addr, evaluating its counter once
func (r *Resolver) Fingerprint(addr netip.Addr) Fingerprint {
	if f, ok := r.cache[addr]; ok {
		return f
	}
	var h *domain.Hint
	if r.hints != nil {
		h, _ = r.hints.Hint(addr)
	}
	f := NewFingerprint(addr, h, r.params)
	r.cache[addr] = f
	return f
}

// ResolveAll resolves every neighborhood of the tree
func (r *Resolver) ResolveAll(t *tree.Tree) Stats {
	stats := Stats{
		Methods:  make(map[domain.AliasMethod]int),
		Counters: make(map[CounterType]int),
	}
	for _, n := range t.Neighborhoods() {
		ifaces := Interfaces(t, n)
		routers := r.Resolve(t, n)
		stats.Neighborhoods++
		stats.Interfaces += len(ifaces)
		stats.Routers += len(routers)
		kept := 0
		for _, rt := range routers {
			kept += rt.Size()
			for _, i := range rt.Interfaces {
				stats.Methods[i.Method]++
			}
		}
		stats.Discarded += len(ifaces) - kept
		for _, a := range ifaces {
			stats.Counters[r.Fingerprint(a).Counter.Type]++
		}
	}
	log.Infof("resolved %d neighborhoods: %d interfaces in %d routers, %d discarded",
		stats.Neighborhoods, stats.Interfaces, stats.Routers, stats.Discarded)
	return stats
}

// Resolve infers the routers of one neighborhood and stores them on the node
func (r *Resolver) Resolve(t *tree.Tree, n *tree.Node) []*domain.Router {
	if n.Kind() != tree.KindNeighborhood {
		return nil
	}
	ifaces := Interfaces(t, n)
	fps := make([]Fingerprint, len(ifaces))
	for i, a := range ifaces {
		fps[i] = r.Fingerprint(a)
	}
	slices.SortFunc(fps, Compare)

	var routers []*domain.Router
	for i := 0; i < len(fps); {
		j := i + 1
		for j < len(fps) && fps[i].Equals(fps[j]) {
			j++
		}
		routers = append(routers, r.groupRun(fps[i:j])...)
		i = j
	}

	routers = discardStrays(t, n, routers)
	n.SetRouters(routers)
	log.Debugf("neighborhood %d %v: %d routers", n.ID(), n.Labels(), len(routers))
	return routers
}

// Interfaces lists the candidate router interfaces of a neighborhood: its
// labels and the contra-pivots of its child subnets, sorted and deduplicated.
func Interfaces(t *tree.Tree, n *tree.Node) []netip.Addr {
	out := n.Labels()
	for _, s := range t.ChildSubnets(n) {
		out = append(out, s.ContraPivots()...)
	}
	out = slices.DeleteFunc(out, domain.IsUnknown)
	slices.SortFunc(out, netip.Addr.Compare)
	return slices.Compact(out)
}

// groupRun splits a run of equal fingerprints into routers
func (r *Resolver) groupRun(run []Fingerprint) []*domain.Router {
	if len(run) == 1 {
		return []*domain.Router{domain.NewRouter(run[0].Addr, domain.AliasFirstElement)}
	}

	head := run[0]
	switch {
	case head.GroupByDefault():
		method := domain.AliasGroupRandom
		if head.Counter.Type == CounterEcho {
			method = domain.AliasGroupEcho
		}
		return groupDefault(run, method)
	case head.Counter.Type == CounterHealthy:
		return r.groupHealthy(run)
	default:
		return groupUnknown(run)
	}
}

// groupDefault groups the whole run, with reverse DNS as a veto when both
// sides carry a host name. Every member of a shared router is tagged method.
func groupDefault(run []Fingerprint, method domain.AliasMethod) []*domain.Router {
	var routers []*domain.Router
	for pending := run; len(pending) > 0; {
		ref := pending[0]
		members := []netip.Addr{ref.Addr}
		var excluded []Fingerprint
		for _, m := range pending[1:] {
			if !ref.HasHostName() || !m.HasHostName() || ReverseDNS(ref.HostName, m.HostName) {
				members = append(members, m.Addr)
			} else {
				excluded = append(excluded, m)
			}
		}
		if len(members) == 1 {
			routers = append(routers, domain.NewRouter(ref.Addr, domain.AliasFirstElement))
		} else {
			rt := &domain.Router{}
			for _, a := range members {
				rt.Add(a, method)
			}
			routers = append(routers, rt)
		}
		pending = excluded
	}
	return routers
}

// groupHealthy tries Ally against the group head and falls back to velocity
// overlap only when Ally found no usable sequence
func (r *Resolver) groupHealthy(run []Fingerprint) []*domain.Router {
	var routers []*domain.Router
	for pending := run; len(pending) > 0; {
		ref := pending[0]
		rt := domain.NewRouter(ref.Addr, domain.AliasFirstElement)
		var excluded []Fingerprint
		for _, m := range pending[1:] {
			switch AllyTest(ref.Samples, m.Samples, r.params.AllyMaxDiff) {
			case AllyAccepted:
				rt.Add(m.Addr, domain.AliasAlly)
			case AllyNoSequence:
				if VelocityOverlap(ref.Counter, m.Counter, r.params) {
					rt.Add(m.Addr, domain.AliasVelocityOverlap)
				} else {
					excluded = append(excluded, m)
				}
			default:
				excluded = append(excluded, m)
			}
		}
		routers = append(routers, rt)
		pending = excluded
	}
	return routers
}

// groupUnknown leaves nameless interfaces alone and groups the others by name
func groupUnknown(run []Fingerprint) []*domain.Router {
	var routers []*domain.Router
	var named []Fingerprint
	for _, f := range run {
		if f.HasHostName() {
			named = append(named, f)
		} else {
			routers = append(routers, domain.NewRouter(f.Addr, domain.AliasFirstElement))
		}
	}
	for pending := named; len(pending) > 0; {
		ref := pending[0]
		rt := domain.NewRouter(ref.Addr, domain.AliasFirstElement)
		var excluded []Fingerprint
		for _, m := range pending[1:] {
			if ReverseDNS(ref.HostName, m.HostName) {
				rt.Add(m.Addr, domain.AliasReverseDNS)
			} else {
				excluded = append(excluded, m)
			}
		}
		routers = append(routers, rt)
		pending = excluded
	}
	return routers
}

// discardStrays drops single-interface routers whose interface is only a live,
// non contra-pivot host of an odd child subnet
func discardStrays(t *tree.Tree, n *tree.Node, routers []*domain.Router) []*domain.Router {
	subnets := t.ChildSubnets(n)
	return slices.DeleteFunc(routers, func(rt *domain.Router) bool {
		if rt.Size() != 1 {
			return false
		}
		a := rt.Interfaces[0].Addr
		if n.HasLabel(a) {
			return false
		}
		for _, s := range subnets {
			if s.Status == domain.SubnetStatusOdd && s.HasInterface(a) && !s.IsContraPivot(a) {
				log.Debugf("discarding stray interface %s of odd subnet %s", a, s.Prefix)
				return true
			}
		}
		return false
	})
}
