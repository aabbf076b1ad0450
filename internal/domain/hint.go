package domain

import (
	"net/netip"
	"time"
)

// IPIDSample is one IP-ID observation of an interface
type IPIDSample struct {
	// Token is the global probe counter value at emission time
	Token uint32 `json:"token" yaml:"token"`
	// ID is the IP identification field of the reply
	ID uint16 `json:"id" yaml:"id"`
	// Echo is set when the reply carried back the IP-ID of the probe
	Echo bool `json:"echo,omitempty" yaml:"echo,omitempty"`
	// Delay is the time elapsed since the previous sample
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// Hint is the passive fingerprinting data gathered for one interface
type Hint struct {
	Addr                  netip.Addr   `json:"addr"`
	InitialTTL            uint8        `json:"initial_ttl"`
	HostName              string       `json:"host_name,omitempty"`
	TimestampCompliant    bool         `json:"timestamp_compliant"`
	PortUnreachableSource netip.Addr   `json:"port_unreachable_source,omitzero"`
	Samples               []IPIDSample `json:"samples,omitempty"`
}

// HasHostName reports whether a reverse DNS name is known
func (h *Hint) HasHostName() bool {
	return h != nil && h.HostName != ""
}

// HintSource gives access to the probe hints of interfaces
type HintSource interface {
	Hint(addr netip.Addr) (*Hint, bool)
}

// HintSet is an in-memory HintSource keyed by interface address
type HintSet map[netip.Addr]*Hint

// NewHintSet builds a set from a list of hints; later duplicates win
func NewHintSet(hints ...*Hint) HintSet {
	set := make(HintSet, len(hints))
	for _, h := range hints {
		set.Add(h)
	}
	return set
}

// Add stores a hint under its address
func (s HintSet) Add(h *Hint) {
	if h == nil || !h.Addr.IsValid() {
		return
	}
	s[h.Addr] = h
}

// Hint implements HintSource
func (s HintSet) Hint(addr netip.Addr) (*Hint, bool) {
	h, ok := s[addr]
	return h, ok
}

// List returns the hints of the set in no particular order
func (s HintSet) List() []*Hint {
	out := make([]*Hint, 0, len(s))
	for _, h := range s {
		out = append(out, h)
	}
	return out
}
