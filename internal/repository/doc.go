// Package repository defines the data access interfaces for treenet.
//
// A repository keeps imported datasets (subnets with their routes, probe
// hints) and the results of inference runs over them: the neighborhoods of
// the tree with their routers, and the bipartite graph. The sqlite subpackage
// provides the implementation.
package repository
