// Package domain defines the core measurement types consumed and produced by treenet.
//
// This package contains the records handed over by the probing collaborators
// (subnets with their routes, per-interface probe hints) and the routers produced
// by alias resolution.
//
// # Routes
//
// A Route is the ordered list of interfaces seen on the way to a subnet, one per
// hop. A hop that never answered is stored as the unknown sentinel (the zero
// netip.Addr or an unspecified address) and must never be mistaken for a real
// router interface.
//
// # Subnets
//
// Subnet is the read-only view of an inferred subnet: its prefix, its route, a
// status tag and its live interfaces with their hop counts. The interfaces at the
// smallest hop count are the contra-pivots, the others the pivots.
//
// # Hints
//
// Hint carries the passive fingerprinting data collected for one interface:
// initial echo TTL, reverse DNS name, ICMP timestamp compliance, the source
// address of a port-unreachable reply and a short IP-ID time series.
//
// # Routers
//
// Router is a group of interfaces believed to belong to the same device. Every
// interface records the alias method that justified its membership.
package domain
