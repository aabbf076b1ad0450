package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"treenet/internal/adapter"
	"treenet/internal/alias"
	"treenet/internal/bipartite"
	"treenet/internal/codec"
	"treenet/internal/domain"
	"treenet/internal/metrics"
	"treenet/internal/repository"
	"treenet/internal/tree"
)

var log = logrus.WithField("component", "service")

var (
	// ErrNoDataset is returned by queries before the first successful build
	ErrNoDataset = errors.New("no dataset built yet")
	// ErrEmptyDataset is returned when a dataset holds no subnet
	ErrEmptyDataset = errors.New("dataset has no subnets")
	// ErrNotFound is returned by Lookup for an address outside every subnet
	// and every inferred router
	ErrNotFound = errors.New("address not found")
)

// Options holds the collaborators of an Inference service. Every field but
// Params is optional.
type Options struct {
	Params    alias.Params
	Enrichers *adapter.Registry
	Repo      repository.Repository
	Metrics   *metrics.Metrics
}

// Result is the outcome of one build
type Result struct {
	Dataset       *domain.Dataset           `json:"-"`
	Tree          *tree.Tree                `json:"-"`
	Graph         *bipartite.Graph          `json:"-"`
	Neighborhoods []repository.Neighborhood `json:"-"`
	TreeStats     tree.Stats                `json:"tree"`
	AliasStats    alias.Stats               `json:"alias"`
	Enrichment    map[string]adapter.Result `json:"enrichment,omitempty"`
	DatasetID     int64                     `json:"dataset_id,omitempty"`
	RunID         int64                     `json:"run_id,omitempty"`
	BuiltAt       time.Time                 `json:"built_at"`
	Duration      time.Duration             `json:"duration"`
	leaves        map[netip.Prefix]*tree.Node
	routers       map[netip.Addr]routerRef
}

type routerRef struct {
	router *domain.Router
	node   *tree.Node
}

// LookupResult locates an address in the last built tree
type LookupResult struct {
	Addr netip.Addr `json:"addr"`
	// Subnet containing the address, if any
	Subnet *domain.Subnet `json:"subnet,omitempty"`
	// Depth of the subnet leaf
	Depth int `json:"depth,omitempty"`
	// Labels of the neighborhood the subnet hangs from
	Neighborhood []netip.Addr `json:"neighborhood,omitempty"`
	// Router the address was assigned to as an interface, if any
	Router      *domain.Router `json:"router,omitempty"`
	RouterDepth int            `json:"router_depth,omitempty"`
}

type source struct {
	path   string
	format string
}

// Inference builds trees, routers and graphs from datasets
type Inference struct {
	opts Options
	bus  *EventBus

	buildMu sync.Mutex
	mu      sync.RWMutex
	result  *Result
	last    *domain.Dataset
	lastID  int64
	src     source
}

// NewInference creates an inference service publishing on bus (may be nil)
func NewInference(bus *EventBus, opts Options) *Inference {
	return &Inference{opts: opts, bus: bus}
}

// BuildFile loads a dataset file and builds it. The path is remembered for
// Rebuild.
func (s *Inference) BuildFile(ctx context.Context, path, format string) (*Result, error) {
	ds, err := codec.LoadFile(path, format)
	if err != nil {
		s.fail(err)
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	s.mu.Lock()
	s.src = source{path: path, format: format}
	s.mu.Unlock()

	return s.Build(ctx, ds)
}

// BuildStored builds a dataset previously saved in the repository
func (s *Inference) BuildStored(ctx context.Context, id int64) (*Result, error) {
	if s.opts.Repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}
	ds, err := s.opts.Repo.GetDataset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %d: %w", id, err)
	}
	return s.build(ctx, ds, id)
}

// Rebuild builds the last dataset again, re-reading it from disk when it came
// from a file
func (s *Inference) Rebuild(ctx context.Context) (*Result, error) {
	s.mu.RLock()
	src, last, lastID := s.src, s.last, s.lastID
	s.mu.RUnlock()

	switch {
	case src.path != "":
		return s.BuildFile(ctx, src.path, src.format)
	case last != nil:
		return s.build(ctx, last, lastID)
	default:
		return nil, ErrNoDataset
	}
}

// Build runs the full pipeline on ds. Builds are serialized; the new result
// replaces the previous one only on success.
func (s *Inference) Build(ctx context.Context, ds *domain.Dataset) (*Result, error) {
	return s.build(ctx, ds, 0)
}

func (s *Inference) build(ctx context.Context, ds *domain.Dataset, storedID int64) (*Result, error) {
	if ds == nil || len(ds.Subnets) == 0 {
		s.fail(ErrEmptyDataset)
		return nil, ErrEmptyDataset
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	s.publish(EventBuildStarted, map[string]interface{}{
		"dataset": ds.Name,
		"subnets": len(ds.Subnets),
		"hints":   len(ds.Hints),
	})

	res, err := s.run(ctx, ds, storedID)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	res.BuiltAt = start
	res.Duration = time.Since(start)

	if m := s.opts.Metrics; m != nil {
		m.BuildsTotal.WithLabelValues("success").Inc()
		m.BuildDuration.Observe(res.Duration.Seconds())
	}

	s.mu.Lock()
	s.result = res
	s.last = ds
	s.lastID = res.DatasetID
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"dataset":       ds.Name,
		"subnets":       res.TreeStats.Inserted,
		"neighborhoods": res.AliasStats.Neighborhoods,
		"routers":       res.AliasStats.Routers,
		"duration":      res.Duration,
	}).Info("build complete")

	s.publish(EventBuildCompleted, map[string]interface{}{
		"dataset":       ds.Name,
		"neighborhoods": res.AliasStats.Neighborhoods,
		"routers":       res.AliasStats.Routers,
		"vertices":      len(res.Graph.Vertices),
		"links":         len(res.Graph.Links),
		"run_id":        res.RunID,
		"duration_ms":   res.Duration.Milliseconds(),
	})
	return res, nil
}

func (s *Inference) run(ctx context.Context, ds *domain.Dataset, storedID int64) (*Result, error) {
	// enrichment must not write into the caller's hints
	hints := make(domain.HintSet, len(ds.Hints))
	for _, h := range ds.Hints {
		c := *h
		hints.Add(&c)
	}

	t := tree.New()
	for _, subnet := range ds.InsertionOrder() {
		t.Insert(subnet)
	}
	ts := t.Stats()
	s.publish(EventSubnetsInserted, ts)
	if m := s.opts.Metrics; m != nil {
		m.SubnetsInserted.Add(float64(ts.Inserted))
		m.SubnetsDuplicate.Add(float64(ts.Duplicates))
		m.NeighborhoodMerge.Add(float64(ts.Merges))
		m.NodesPruned.Add(float64(ts.Pruned))
	}

	res := &Result{Tree: t, TreeStats: ts}

	if reg := s.opts.Enrichers; reg != nil && reg.Len() > 0 {
		var addrs []netip.Addr
		for _, n := range t.Neighborhoods() {
			addrs = append(addrs, alias.Interfaces(t, n)...)
		}
		slices.SortFunc(addrs, netip.Addr.Compare)
		addrs = slices.Compact(addrs)

		enriched, err := reg.Run(ctx, hints, addrs)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("enrichment interrupted: %w", ctxErr)
		}
		if err != nil {
			log.WithError(err).Warn("continuing with partially enriched hints")
		}
		res.Enrichment = enriched
		s.publish(EventHintsEnriched, enriched)
	}

	resolver := alias.NewResolver(hints, s.opts.Params)
	res.AliasStats = resolver.ResolveAll(t)
	s.publish(EventRoutersInferred, res.AliasStats)

	res.Graph = bipartite.Build(t)
	res.Dataset = &domain.Dataset{Name: ds.Name, Subnets: ds.Subnets, Hints: sortedHints(hints)}
	res.index()
	s.observe(res)

	if s.opts.Repo != nil {
		if err := s.persist(ctx, res, storedID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func sortedHints(set domain.HintSet) []*domain.Hint {
	hints := set.List()
	slices.SortFunc(hints, func(a, b *domain.Hint) int { return a.Addr.Compare(b.Addr) })
	return hints
}

// index fills the lookup maps and the neighborhood summaries
func (r *Result) index() {
	r.leaves = make(map[netip.Prefix]*tree.Node)
	r.routers = make(map[netip.Addr]routerRef)
	r.Neighborhoods = nil

	r.Tree.Traverse(func(n *tree.Node) {
		switch n.Kind() {
		case tree.KindSubnet:
			r.leaves[n.Subnet().Prefix] = n
		case tree.KindNeighborhood:
			r.Neighborhoods = append(r.Neighborhoods, repository.Neighborhood{
				NodeID:         int(n.ID()),
				Depth:          n.Depth(),
				Labels:         n.Labels(),
				PreviousLabels: n.PreviousLabels(),
				Linkage:        r.Tree.Linkage(n).String(),
				Routers:        n.Routers(),
			})
			for _, router := range n.Routers() {
				for _, a := range router.Addrs() {
					r.routers[a] = routerRef{router: router, node: n}
				}
			}
		}
	})
}

func (s *Inference) observe(res *Result) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.Neighborhoods.Set(float64(res.AliasStats.Neighborhoods))
	m.Routers.Set(float64(res.AliasStats.Routers))
	for method, n := range res.AliasStats.Methods {
		m.AliasInterfaces.WithLabelValues(string(method)).Add(float64(n))
	}
	for ct, n := range res.AliasStats.Counters {
		m.CounterTypes.WithLabelValues(ct.String()).Add(float64(n))
	}
}

func (s *Inference) persist(ctx context.Context, res *Result, storedID int64) error {
	id := storedID
	if id == 0 {
		saved, err := s.opts.Repo.SaveDataset(ctx, res.Dataset)
		if err != nil {
			return fmt.Errorf("failed to save dataset: %w", err)
		}
		id = saved
	}
	res.DatasetID = id

	run := &repository.Run{
		DatasetID: id,
		Stats: map[string]any{
			"tree":  res.TreeStats,
			"alias": res.AliasStats,
		},
		Neighborhoods: res.Neighborhoods,
		Graph:         res.Graph,
	}
	runID, err := s.opts.Repo.SaveRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	res.RunID = runID
	return nil
}

func (s *Inference) publish(t EventType, payload interface{}) {
	s.bus.Publish(Event{Type: t, Payload: payload})
}

func (s *Inference) fail(err error) {
	log.WithError(err).Error("build failed")
	if m := s.opts.Metrics; m != nil {
		m.BuildsTotal.WithLabelValues("failure").Inc()
	}
	s.publish(EventBuildFailed, map[string]string{"error": err.Error()})
}

// Result returns the last successful build
func (s *Inference) Result() (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, ErrNoDataset
	}
	return s.result, nil
}

// Lookup finds the subnet containing addr and the router it belongs to
func (s *Inference) Lookup(addr netip.Addr) (*LookupResult, error) {
	res, err := s.Result()
	if err != nil {
		return nil, err
	}

	out := &LookupResult{Addr: addr}
	if subnet := res.Tree.Lookup(addr); subnet != nil {
		out.Subnet = subnet
		if leaf, ok := res.leaves[subnet.Prefix]; ok {
			out.Depth = leaf.Depth()
			if parent := res.Tree.Node(leaf.Parent()); parent != nil {
				out.Neighborhood = parent.Labels()
			}
		}
	}
	if ref, ok := res.routers[addr]; ok {
		out.Router = ref.router
		out.RouterDepth = ref.node.Depth()
	}

	if out.Subnet == nil && out.Router == nil {
		return nil, fmt.Errorf("%s: %w", addr, ErrNotFound)
	}
	return out, nil
}

// Datasets lists the datasets stored in the repository
func (s *Inference) Datasets(ctx context.Context) ([]repository.DatasetInfo, error) {
	if s.opts.Repo == nil {
		return nil, nil
	}
	return s.opts.Repo.ListDatasets(ctx)
}
