package codec

import (
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"treenet/internal/domain"
)

// NmapCodec imports nmap XML reports (-oX) produced with --traceroute. Each
// traced target becomes a live interface of the subnet around it, the
// traceroute hops before it become the subnet route, and PTR names and IP-ID
// sequences become probe hints.
type NmapCodec struct {
	// PrefixV4 and PrefixV6 size the subnet inferred around each target
	PrefixV4 int
	PrefixV6 int
	// ProbeSpacing is the delay assumed between two IP-ID sequence probes
	ProbeSpacing time.Duration
}

// NewNmapCodec creates an nmap importer with /24 and /64 subnets
func NewNmapCodec() *NmapCodec {
	return &NmapCodec{
		PrefixV4:     24,
		PrefixV6:     64,
		ProbeSpacing: 100 * time.Millisecond,
	}
}

// Format returns the codec format identifier
func (c *NmapCodec) Format() string {
	return "nmap"
}

// Parse imports a dataset from an nmap XML report
func (c *NmapCodec) Parse(r io.Reader) (*domain.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read nmap report: %w", err)
	}
	run := &nmap.Run{}
	if err := nmap.Parse(data, run); err != nil {
		return nil, fmt.Errorf("failed to parse nmap XML: %w", err)
	}

	ds := &domain.Dataset{Name: "nmap"}
	subnets := make(map[netip.Prefix]*domain.Subnet)
	hints := make(domain.HintSet)

	for _, host := range run.Hosts {
		addr, ok := hostAddr(host)
		if !ok {
			continue
		}
		if host.Status.State != "up" {
			log.Debugf("skipping %s: host is %s", addr, host.Status.State)
			continue
		}

		route, distance := traceRoute(host.Trace.Hops, addr)
		for _, hop := range host.Trace.Hops {
			if hop.Host == "" {
				continue
			}
			if ip, err := netip.ParseAddr(hop.IPAddr); err == nil {
				hintFor(hints, ip).HostName = strings.TrimSuffix(hop.Host, ".")
			}
		}

		h := hintFor(hints, addr)
		if len(host.Hostnames) > 0 {
			h.HostName = strings.TrimSuffix(host.Hostnames[0].Name, ".")
		}
		if distance > 0 && host.Status.ReasonTTL > 0 {
			h.InitialTTL = initialTTL(int(host.Status.ReasonTTL) + distance - 1)
		}
		h.Samples = c.ipidSamples(host.IPIDSequence.Values)

		if distance == 0 {
			log.Warnf("no traceroute for %s, cannot place it in a subnet", addr)
			continue
		}

		bits := c.PrefixV4
		if addr.Is6() {
			bits = c.PrefixV6
		}
		pfx, err := addr.Prefix(bits)
		if err != nil {
			return nil, fmt.Errorf("prefix of %s: %w", addr, err)
		}
		s, ok := subnets[pfx]
		if !ok {
			s = &domain.Subnet{Prefix: pfx, Route: route, Status: domain.SubnetStatusUndefined}
			subnets[pfx] = s
			ds.Subnets = append(ds.Subnets, s)
		} else if route.KnownHops() > s.Route.KnownHops() {
			s.Route = route
		}
		s.AddInterface(addr, distance)
	}

	ds.Hints = hints.List()
	slices.SortFunc(ds.Hints, func(a, b *domain.Hint) int { return a.Addr.Compare(b.Addr) })
	return ds, nil
}

func hostAddr(host nmap.Host) (netip.Addr, bool) {
	for _, a := range host.Addresses {
		if a.AddrType != "ipv4" && a.AddrType != "ipv6" {
			continue
		}
		if addr, err := netip.ParseAddr(a.Addr); err == nil {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// traceRoute turns traceroute hops into the route leading to target and the
// hop count of target. Missing TTLs become unknown hops.
func traceRoute(hops []nmap.Hop, target netip.Addr) (domain.Route, int) {
	distance := 0
	byTTL := make(map[int]netip.Addr, len(hops))
	for _, hop := range hops {
		ttl := int(hop.TTL)
		if ttl <= 0 {
			continue
		}
		ip, err := netip.ParseAddr(hop.IPAddr)
		if err != nil {
			continue
		}
		byTTL[ttl] = ip
		if ip == target || ttl > distance {
			distance = ttl
		}
		if ip == target {
			break
		}
	}
	if distance == 0 {
		return nil, 0
	}
	route := make(domain.Route, distance-1)
	for ttl := 1; ttl < distance; ttl++ {
		route[ttl-1] = byTTL[ttl]
	}
	return route, distance
}

// ipidSamples parses nmap's comma separated hexadecimal IP-ID values
func (c *NmapCodec) ipidSamples(values string) []domain.IPIDSample {
	if values == "" {
		return nil
	}
	var out []domain.IPIDSample
	for i, v := range strings.Split(values, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(v), 16, 16)
		if err != nil {
			log.Debugf("ignoring IP-ID value %q: %v", v, err)
			continue
		}
		sample := domain.IPIDSample{Token: uint32(i + 1), ID: uint16(id)}
		if len(out) > 0 {
			sample.Delay = c.ProbeSpacing
		}
		out = append(out, sample)
	}
	return out
}

func hintFor(hints domain.HintSet, addr netip.Addr) *domain.Hint {
	h, ok := hints.Hint(addr)
	if !ok {
		h = &domain.Hint{Addr: addr}
		hints.Add(h)
	}
	return h
}

// initialTTL rounds a reconstructed TTL up to the usual initial values
func initialTTL(ttl int) uint8 {
	for _, v := range []int{32, 64, 128} {
		if ttl <= v {
			return uint8(v)
		}
	}
	return 255
}
