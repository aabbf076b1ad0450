// Package service runs treenet inference end to end.
//
// Inference loads a dataset, inserts its subnets into a network tree in
// insertion order, optionally enriches probe hints, resolves the routers of
// every neighborhood and projects the result into a bipartite graph. The last
// result is kept in memory for queries and, when a repository is configured,
// persisted with the dataset it was computed from.
//
// # Event System
//
// Builds publish events on an EventBus for real-time updates to connected
// clients via Server-Sent Events (SSE): build start, insertion summary,
// inferred routers, completion and failure.
//
// # Concurrency
//
// Builds are serialized; queries read the last completed result and never
// observe a build in progress.
package service
