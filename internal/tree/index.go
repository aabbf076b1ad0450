package tree

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"treenet/internal/domain"
)

// bucketBits is the number of leading address bits that select a bucket
const bucketBits = 20

// subnetIndex maps addresses to subnets. Subnets of /20 or longer live in
// the bucket of their base address, so a lookup scans a single short list.
// Wider subnets span several buckets and are kept in a prefix table instead.
type subnetIndex struct {
	buckets map[uint32][]*domain.Subnet
	wide    *bart.Table[*domain.Subnet]
	size    int
}

func newSubnetIndex() *subnetIndex {
	return &subnetIndex{
		buckets: make(map[uint32][]*domain.Subnet),
		wide:    new(bart.Table[*domain.Subnet]),
	}
}

// bucketKey returns the top 20 bits of addr; IPv6 keys carry an extra family bit
func bucketKey(addr netip.Addr) uint32 {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4
	}
	b := addr.As16()
	return 1<<bucketBits | uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4
}

func (x *subnetIndex) insert(s *domain.Subnet) {
	if s.Prefix.Bits() < bucketBits {
		x.wide.Insert(s.Prefix, s)
	} else {
		key := bucketKey(s.Base())
		x.buckets[key] = append(x.buckets[key], s)
	}
	x.size++
}

// get returns the subnet indexed under exactly pfx
func (x *subnetIndex) get(pfx netip.Prefix) (*domain.Subnet, bool) {
	if pfx.Bits() < bucketBits {
		return x.wide.Get(pfx)
	}
	for _, s := range x.buckets[bucketKey(pfx.Addr())] {
		if s.Prefix == pfx {
			return s, true
		}
	}
	return nil, false
}

// lookup returns the most specific subnet containing addr
func (x *subnetIndex) lookup(addr netip.Addr) *domain.Subnet {
	var best *domain.Subnet
	for _, s := range x.buckets[bucketKey(addr)] {
		if s.Contains(addr) && (best == nil || s.Prefix.Bits() > best.Prefix.Bits()) {
			best = s
		}
	}
	if best != nil {
		return best
	}
	if s, ok := x.wide.Lookup(addr); ok {
		return s
	}
	return nil
}
