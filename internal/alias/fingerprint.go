package alias

import (
	"cmp"
	"net/netip"

	"treenet/internal/domain"
)

// Fingerprint summarizes the probe hint of one interface for grouping
type Fingerprint struct {
	Addr                  netip.Addr
	InitialTTL            uint8
	Counter               CounterProfile
	PortUnreachableSource netip.Addr
	HostName              string
	TimestampCompliant    bool
	Samples               []domain.IPIDSample
}

// NewFingerprint builds the fingerprint of addr. A nil hint gives an empty
// fingerprint with an unknown counter.
func NewFingerprint(addr netip.Addr, h *domain.Hint, p Params) Fingerprint {
	f := Fingerprint{Addr: addr, Counter: EvaluateCounter(h, p)}
	if h == nil {
		return f
	}
	f.InitialTTL = h.InitialTTL
	f.HostName = h.HostName
	f.TimestampCompliant = h.TimestampCompliant
	f.Samples = h.Samples
	if !domain.IsUnknown(h.PortUnreachableSource) {
		f.PortUnreachableSource = h.PortUnreachableSource
	}
	return f
}

// HasHostName reports whether a reverse DNS name is known
func (f Fingerprint) HasHostName() bool {
	return f.HostName != ""
}

// Equals reports whether both fingerprints fall in the same grouping bucket.
// Host names are not part of the bucket.
func (f Fingerprint) Equals(o Fingerprint) bool {
	return f.InitialTTL == o.InitialTTL &&
		f.PortUnreachableSource == o.PortUnreachableSource &&
		f.Counter.Type == o.Counter.Type &&
		f.TimestampCompliant == o.TimestampCompliant
}

// GroupByDefault is true for counters that carry no pairwise signal
func (f Fingerprint) GroupByDefault() bool {
	return f.Counter.Type == CounterEcho || f.Counter.Type == CounterRandom
}

// Compare orders fingerprints for slices.SortFunc. The bucket fields come
// first so that equal fingerprints are contiguous once sorted.
func Compare(a, b Fingerprint) int {
	if c := cmp.Compare(b.InitialTTL, a.InitialTTL); c != 0 {
		return c
	}
	// the zero address sorts below every valid one, so it lands last
	if c := b.PortUnreachableSource.Compare(a.PortUnreachableSource); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Counter.Type, a.Counter.Type); c != 0 {
		return c
	}
	if a.TimestampCompliant != b.TimestampCompliant {
		if !a.TimestampCompliant {
			return -1
		}
		return 1
	}
	if a.HasHostName() != b.HasHostName() {
		if a.HasHostName() {
			return -1
		}
		return 1
	}
	return a.Addr.Compare(b.Addr)
}
