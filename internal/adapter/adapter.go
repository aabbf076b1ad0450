package adapter

import (
	"context"
	"net/netip"

	"treenet/internal/domain"
)

// Config holds configuration for an enricher instance
type Config struct {
	// Enabled determines if the enricher should run
	Enabled bool `json:"enabled"`
	// Priority orders enrichers; higher runs first
	Priority int `json:"priority"`
}

// Result represents the outcome of one enrichment pass
type Result struct {
	// Updated is the count of hints that gained information
	Updated int `json:"updated"`
	// Created is the count of hints added for interfaces that had none
	Created int `json:"created"`
	// Errors encountered during enrichment (non-fatal)
	Errors []string `json:"errors,omitempty"`
}

// Enricher adds passive fingerprinting data to probe hints
type Enricher interface {
	// Name returns the unique identifier for this enricher
	Name() string

	// Enrich updates hints in place for the given interfaces. Interfaces
	// without a hint get a new one in the set.
	Enrich(ctx context.Context, hints domain.HintSet, addrs []netip.Addr) (Result, error)
}

// EventPublisher allows enrichers to publish progress events
type EventPublisher interface {
	PublishEnrichEvent(eventType string, payload interface{})
}

// ProgressEnricher extends Enricher with progress reporting
type ProgressEnricher interface {
	Enricher

	// SetEventPublisher sets the event publisher for progress updates
	SetEventPublisher(pub EventPublisher)
}
