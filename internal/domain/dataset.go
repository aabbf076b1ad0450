package domain

import (
	"cmp"
	"slices"
)

// Dataset is one measurement run: the subnets with their routes and the probe
// hints of every interface seen
type Dataset struct {
	Name    string    `json:"name,omitempty"`
	Subnets []*Subnet `json:"subnets"`
	Hints   []*Hint   `json:"hints,omitempty"`
}

// HintSet indexes the hints of the dataset
func (d *Dataset) HintSet() HintSet {
	return NewHintSet(d.Hints...)
}

// InsertionOrder returns the subnets sorted for tree insertion: complete
// routes first, then longer routes, then by prefix
func (d *Dataset) InsertionOrder() []*Subnet {
	out := slices.Clone(d.Subnets)
	slices.SortStableFunc(out, func(a, b *Subnet) int {
		if ac, bc := a.RouteComplete(), b.RouteComplete(); ac != bc {
			if ac {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(len(b.Route), len(a.Route)); c != 0 {
			return c
		}
		if c := a.Prefix.Addr().Compare(b.Prefix.Addr()); c != 0 {
			return c
		}
		return cmp.Compare(a.Prefix.Bits(), b.Prefix.Bits())
	})
	return out
}
