// Package tree builds the network tree: internal nodes are neighborhoods
// labelled with the hop interfaces observed at their depth, leaves are subnets.
//
// Insertion reconciles diverging routes. When two routes reach the same
// neighborhood through different load-balanced paths, the neighborhoods that
// ended up duplicated at the same depth are merged and the branches emptied by
// the merge are pruned. A per-depth index of neighborhoods keeps "who carries
// this label at depth d" cheap, and a subnet index bucketed on the top 20 bits
// of the base address serves address lookups.
package tree
