// Package bipartite projects a resolved network tree into a router/subnet
// graph for reporting. Vertices missing from the measurement (a neighborhood
// without inferred routers, a link between neighborhoods that crossed no
// observed subnet, a switch fanning out several routers) are invented and
// tagged imaginary.
package bipartite
