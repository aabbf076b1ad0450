// Package rdns fills in missing host names of probe hints with PTR lookups.
package rdns

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"treenet/internal/adapter"
	"treenet/internal/domain"
)

var log = logrus.WithField("component", "rdns")

const (
	defaultTimeout = 2 * time.Second
	defaultWorkers = 10
)

// Lookup outcomes reported to the lookup counter
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Enricher resolves PTR records against a single DNS server
type Enricher struct {
	client    *dns.Client
	server    string
	workers   int
	lookups   *prometheus.CounterVec
	publisher adapter.EventPublisher
}

var _ adapter.ProgressEnricher = (*Enricher)(nil)

// New creates an enricher querying server ("host:port") over UDP
func New(server string, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Enricher{
		client:  &dns.Client{Timeout: timeout},
		server:  server,
		workers: defaultWorkers,
	}
}

// WithLookupCounter counts lookups by outcome on c
func (e *Enricher) WithLookupCounter(c *prometheus.CounterVec) *Enricher {
	e.lookups = c
	return e
}

// WithWorkers bounds the number of concurrent queries
func (e *Enricher) WithWorkers(n int) *Enricher {
	if n > 0 {
		e.workers = n
	}
	return e
}

// Name implements adapter.Enricher
func (e *Enricher) Name() string {
	return "rdns"
}

// SetEventPublisher implements adapter.ProgressEnricher
func (e *Enricher) SetEventPublisher(pub adapter.EventPublisher) {
	e.publisher = pub
}

func (e *Enricher) publish(eventType string, payload interface{}) {
	if e.publisher != nil {
		e.publisher.PublishEnrichEvent(eventType, payload)
	}
}

func (e *Enricher) count(outcome string) {
	if e.lookups != nil {
		e.lookups.WithLabelValues(outcome).Inc()
	}
}

// Enrich looks up every address whose hint has no host name. Addresses with
// no hint at all get a new hint carrying only the name.
func (e *Enricher) Enrich(ctx context.Context, hints domain.HintSet, addrs []netip.Addr) (adapter.Result, error) {
	var todo []netip.Addr
	for _, a := range addrs {
		if domain.IsUnknown(a) {
			continue
		}
		if h, ok := hints.Hint(a); ok && h.HasHostName() {
			continue
		}
		todo = append(todo, a)
	}

	var res adapter.Result
	if len(todo) == 0 {
		return res, nil
	}

	e.publish("enrich-started", map[string]interface{}{
		"enricher": e.Name(),
		"pending":  len(todo),
	})

	names := make([]string, len(todo))
	errs := make([]error, len(todo))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for i, a := range todo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			names[i], errs[i] = e.LookupPTR(ctx, a)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	// hints are only written here, after every query returned
	for i, a := range todo {
		switch {
		case errs[i] != nil:
			e.count(OutcomeError)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", a, errs[i]))
		case names[i] == "":
			e.count(OutcomeNotFound)
		default:
			e.count(OutcomeFound)
			if h, ok := hints.Hint(a); ok {
				h.HostName = names[i]
				res.Updated++
			} else {
				hints.Add(&domain.Hint{Addr: a, HostName: names[i]})
				res.Created++
			}
		}
	}

	log.WithFields(logrus.Fields{
		"queried": len(todo),
		"updated": res.Updated,
		"created": res.Created,
		"errors":  len(res.Errors),
	}).Debug("reverse lookups done")

	e.publish("enrich-complete", map[string]interface{}{
		"enricher": e.Name(),
		"updated":  res.Updated,
		"created":  res.Created,
		"errors":   len(res.Errors),
	})
	return res, nil
}

// LookupPTR returns the first PTR name of addr without its trailing dot, or
// "" when the server has none.
func (e *Enricher) LookupPTR(ctx context.Context, addr netip.Addr) (string, error) {
	arpa, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return "", fmt.Errorf("failed to build reverse name: %w", err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	resp, _, err := e.client.ExchangeContext(ctx, msg, e.server)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", e.server, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", nil
	default:
		return "", fmt.Errorf("server answered %s", dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
