package adapter

import (
	"cmp"
	"context"
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"treenet/internal/domain"
)

var log = logrus.WithField("component", "adapter")

// EventFunc is called when enrichment events occur
type EventFunc func(eventType string, payload interface{})

// Registry manages all registered enrichers
type Registry struct {
	mu        sync.RWMutex
	enrichers map[string]Enricher
	configs   map[string]Config
	onEvent   EventFunc
}

// NewRegistry creates a new enricher registry
func NewRegistry() *Registry {
	return &Registry{
		enrichers: make(map[string]Enricher),
		configs:   make(map[string]Config),
	}
}

// SetEventHandler sets the handler for enrichment events
func (r *Registry) SetEventHandler(handler EventFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = handler
}

// PublishEnrichEvent implements EventPublisher interface
func (r *Registry) PublishEnrichEvent(eventType string, payload interface{}) {
	r.mu.RLock()
	handler := r.onEvent
	r.mu.RUnlock()

	if handler != nil {
		handler(eventType, payload)
	}
}

// Register adds an enricher to the registry
func (r *Registry) Register(e Enricher, config Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if _, exists := r.enrichers[name]; exists {
		return fmt.Errorf("enricher %s already registered", name)
	}

	if pe, ok := e.(ProgressEnricher); ok {
		pe.SetEventPublisher(r)
	}

	r.enrichers[name] = e
	r.configs[name] = config
	log.WithFields(logrus.Fields{
		"enricher": name,
		"priority": config.Priority,
		"enabled":  config.Enabled,
	}).Info("registered enricher")

	return nil
}

// Len returns the number of enabled enrichers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.configs {
		if c.Enabled {
			n++
		}
	}
	return n
}

// List returns information about registered enrichers, highest priority first
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.enrichers))
	for name := range r.enrichers {
		c := r.configs[name]
		infos = append(infos, Info{Name: name, Priority: c.Priority, Enabled: c.Enabled})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return infos
}

// Info provides read-only information about an enricher
type Info struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// Run executes every enabled enricher in priority order. A failing enricher
// is logged and reported; the remaining ones still run.
func (r *Registry) Run(ctx context.Context, hints domain.HintSet, addrs []netip.Addr) (map[string]Result, error) {
	results := make(map[string]Result)
	var errs []error

	for _, info := range r.List() {
		if !info.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r.mu.RLock()
		e := r.enrichers[info.Name]
		r.mu.RUnlock()

		res, err := e.Enrich(ctx, hints, addrs)
		results[info.Name] = res
		if err != nil {
			log.WithError(err).WithField("enricher", info.Name).Warn("enrichment failed")
			errs = append(errs, fmt.Errorf("%s: %w", info.Name, err))
			continue
		}
		log.WithFields(logrus.Fields{
			"enricher": info.Name,
			"updated":  res.Updated,
			"created":  res.Created,
			"errors":   len(res.Errors),
		}).Info("enrichment complete")
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("enrichment errors: %v", errs)
	}
	return results, nil
}
