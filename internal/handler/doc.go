// Package handler implements the HTTP API of treenet serve.
//
// # Handlers
//
// TreeHandler exposes the last inference result: the tree dump, the bipartite
// graph, the routers of every neighborhood, address lookups, build statistics
// and a rebuild trigger.
//
// Middleware provides request logging, panic recovery, and CORS support.
//
// # Response Format
//
// Success responses return JSON (the tree dump and the text graph are plain
// text). Error responses return JSON with {error, details} structure. Queries
// made before the first successful build answer 503.
//
// # Server-Sent Events
//
// The /events endpoint is served by the hub package; build progress events
// published by the inference service are relayed there.
package handler
