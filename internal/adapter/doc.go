// Package adapter defines hint enrichers for treenet.
//
// An enricher fills in probe-hint fields that the measurement itself did not
// record, before fingerprints are computed. Enrichers register with a
// Registry that runs the enabled ones in priority order and reports progress
// through an EventPublisher.
//
// # Enrichers
//
// rdns resolves PTR records for interfaces whose hint carries no host name.
//
// Enrichers only ever add information: a field the dataset already sets is
// never overwritten.
package adapter
