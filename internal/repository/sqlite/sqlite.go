package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	_ "modernc.org/sqlite"

	"treenet/internal/bipartite"
	"treenet/internal/domain"
	"treenet/internal/repository"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS datasets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subnets (
		dataset_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		prefix TEXT NOT NULL,
		status TEXT NOT NULL,
		route JSON NOT NULL,
		interfaces JSON,
		PRIMARY KEY (dataset_id, position),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS hints (
		dataset_id INTEGER NOT NULL,
		addr TEXT NOT NULL,
		initial_ttl INTEGER NOT NULL DEFAULT 0,
		host_name TEXT,
		timestamp_compliant INTEGER NOT NULL DEFAULT 0,
		port_unreachable_source TEXT,
		samples JSON,
		PRIMARY KEY (dataset_id, addr),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		stats JSON,
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS neighborhoods (
		run_id INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		labels JSON NOT NULL,
		previous_labels JSON NOT NULL,
		linkage TEXT NOT NULL,
		PRIMARY KEY (run_id, node_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS router_interfaces (
		run_id INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		router_index INTEGER NOT NULL,
		position INTEGER NOT NULL,
		addr TEXT NOT NULL,
		method TEXT NOT NULL,
		PRIMARY KEY (run_id, node_id, router_index, position),
		FOREIGN KEY (run_id, node_id) REFERENCES neighborhoods(run_id, node_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS graph_vertices (
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		imaginary INTEGER NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT 0,
		router JSON,
		subnet JSON,
		PRIMARY KEY (run_id, id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS graph_links (
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_router_interfaces_addr ON router_interfaces(addr);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// ============================================================================
// Datasets
// ============================================================================

// SaveDataset stores a dataset in a single transaction and returns its ID
func (r *Repository) SaveDataset(ctx context.Context, ds *domain.Dataset) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO datasets (name, created_at) VALUES (?, ?)`,
		ds.Name, time.Now().UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get dataset id: %w", err)
	}

	for i, s := range ds.Subnets {
		route, err := marshalJSON(s.Route.Strings())
		if err != nil {
			return 0, fmt.Errorf("failed to marshal route of %s: %w", s.Prefix, err)
		}
		ifaces, err := marshalToNull(s.Interfaces)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal interfaces of %s: %w", s.Prefix, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subnets (dataset_id, position, prefix, status, route, interfaces)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, s.Prefix.String(), string(s.Status), route, ifaces); err != nil {
			return 0, fmt.Errorf("failed to insert subnet %s: %w", s.Prefix, err)
		}
	}

	for _, h := range ds.Hints {
		samples, err := marshalToNull(h.Samples)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal samples of %s: %w", h.Addr, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO hints
				(dataset_id, addr, initial_ttl, host_name, timestamp_compliant, port_unreachable_source, samples)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, h.Addr.String(), int(h.InitialTTL), stringToNull(h.HostName),
			boolToInt(h.TimestampCompliant), addrToNull(h.PortUnreachableSource), samples); err != nil {
			return 0, fmt.Errorf("failed to insert hint %s: %w", h.Addr, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dataset: %w", err)
	}
	return id, nil
}

// GetDataset loads a dataset with its subnets in their original order
func (r *Repository) GetDataset(ctx context.Context, id int64) (*domain.Dataset, error) {
	ds := &domain.Dataset{}
	err := r.db.QueryRowContext(ctx, `SELECT name FROM datasets WHERE id = ?`, id).Scan(&ds.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix, status, route, interfaces
		FROM subnets WHERE dataset_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query subnets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			prefix, status, route string
			ifaces                sql.NullString
		)
		if err := rows.Scan(&prefix, &status, &route, &ifaces); err != nil {
			return nil, fmt.Errorf("failed to scan subnet: %w", err)
		}
		var hops []string
		if err := unmarshalJSON(route, &hops); err != nil {
			return nil, fmt.Errorf("failed to unmarshal route of %s: %w", prefix, err)
		}
		parsed, err := domain.ParseRoute(hops)
		if err != nil {
			return nil, fmt.Errorf("failed to parse route of %s: %w", prefix, err)
		}
		s, err := domain.NewSubnet(prefix, parsed, domain.ParseSubnetStatus(status))
		if err != nil {
			return nil, err
		}
		if err := unmarshalJSONField(ifaces, &s.Interfaces); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interfaces of %s: %w", prefix, err)
		}
		ds.Subnets = append(ds.Subnets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subnets: %w", err)
	}

	hints, err := r.getHints(ctx, id)
	if err != nil {
		return nil, err
	}
	ds.Hints = hints
	return ds, nil
}

func (r *Repository) getHints(ctx context.Context, datasetID int64) ([]*domain.Hint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT addr, initial_ttl, host_name, timestamp_compliant, port_unreachable_source, samples
		FROM hints WHERE dataset_id = ? ORDER BY addr
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hints: %w", err)
	}
	defer rows.Close()

	var hints []*domain.Hint
	for rows.Next() {
		var (
			addr          string
			ttl           int
			hostName, pus sql.NullString
			compliant     sql.NullInt64
			samples       sql.NullString
		)
		if err := rows.Scan(&addr, &ttl, &hostName, &compliant, &pus, &samples); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		h := &domain.Hint{
			InitialTTL:         uint8(ttl),
			HostName:           nullToString(hostName),
			TimestampCompliant: nullToBool(compliant),
		}
		if h.Addr, err = netip.ParseAddr(addr); err != nil {
			return nil, fmt.Errorf("failed to parse hint address: %w", err)
		}
		if h.PortUnreachableSource, err = nullToAddr(pus); err != nil {
			return nil, fmt.Errorf("failed to parse port unreachable source of %s: %w", addr, err)
		}
		if err := unmarshalJSONField(samples, &h.Samples); err != nil {
			return nil, fmt.Errorf("failed to unmarshal samples of %s: %w", addr, err)
		}
		hints = append(hints, h)
	}
	return hints, rows.Err()
}

// ListDatasets returns every stored dataset, newest first
func (r *Repository) ListDatasets(ctx context.Context) ([]repository.DatasetInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.created_at,
			(SELECT COUNT(*) FROM subnets s WHERE s.dataset_id = d.id),
			(SELECT COUNT(*) FROM hints h WHERE h.dataset_id = d.id)
		FROM datasets d ORDER BY d.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var out []repository.DatasetInfo
	for rows.Next() {
		var (
			info    repository.DatasetInfo
			created int64
		)
		if err := rows.Scan(&info.ID, &info.Name, &created, &info.Subnets, &info.Hints); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and every run computed from it
func (r *Repository) DeleteDataset(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

// ============================================================================
// Runs
// ============================================================================

// SaveRun stores an inference run and returns its ID
func (r *Repository) SaveRun(ctx context.Context, run *repository.Run) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	stats, err := marshalToNull(run.Stats)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal stats: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO runs (dataset_id, created_at, stats) VALUES (?, ?, ?)`,
		run.DatasetID, created.UTC().UnixNano(), stats)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, n := range run.Neighborhoods {
		if err := insertNeighborhood(ctx, tx, id, n); err != nil {
			return 0, err
		}
	}
	if run.Graph != nil {
		if err := insertGraph(ctx, tx, id, run.Graph); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	run.CreatedAt = created
	return id, nil
}

func insertNeighborhood(ctx context.Context, tx *sql.Tx, runID int64, n repository.Neighborhood) error {
	labels, err := marshalJSON(addrStrings(n.Labels))
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	previous, err := marshalJSON(addrStrings(n.PreviousLabels))
	if err != nil {
		return fmt.Errorf("failed to marshal previous labels: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO neighborhoods (run_id, node_id, depth, labels, previous_labels, linkage)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, n.NodeID, n.Depth, labels, previous, n.Linkage); err != nil {
		return fmt.Errorf("failed to insert neighborhood %d: %w", n.NodeID, err)
	}

	for ri, router := range n.Routers {
		for pos, iface := range router.Interfaces {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO router_interfaces (run_id, node_id, router_index, position, addr, method)
				VALUES (?, ?, ?, ?, ?, ?)
			`, runID, n.NodeID, ri, pos, iface.Addr.String(), string(iface.Method)); err != nil {
				return fmt.Errorf("failed to insert router interface %s: %w", iface.Addr, err)
			}
		}
	}
	return nil
}

func insertGraph(ctx context.Context, tx *sql.Tx, runID int64, g *bipartite.Graph) error {
	for pos, v := range g.Vertices {
		var router, subnet sql.NullString
		var err error
		if v.Router != nil {
			if router, err = marshalToNull(v.Router); err != nil {
				return fmt.Errorf("failed to marshal router of %s: %w", v.ID, err)
			}
		}
		if v.Subnet != nil {
			if subnet, err = marshalToNull(v.Subnet); err != nil {
				return fmt.Errorf("failed to marshal subnet of %s: %w", v.ID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_vertices (run_id, position, id, kind, imaginary, depth, router, subnet)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, pos, v.ID, string(v.Kind), boolToInt(v.Imaginary), v.Depth, router, subnet); err != nil {
			return fmt.Errorf("failed to insert vertex %s: %w", v.ID, err)
		}
	}
	for pos, l := range g.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_links (run_id, position, kind, from_id, to_id) VALUES (?, ?, ?, ?, ?)
		`, runID, pos, string(l.Kind), l.From, l.To); err != nil {
			return fmt.Errorf("failed to insert link %s-%s: %w", l.From, l.To, err)
		}
	}
	return nil
}

// GetRun loads a run with its neighborhoods and graph
func (r *Repository) GetRun(ctx context.Context, id int64) (*repository.Run, error) {
	run := &repository.Run{ID: id}
	var (
		created int64
		stats   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT dataset_id, created_at, stats FROM runs WHERE id = ?`, id).
		Scan(&run.DatasetID, &created, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	if err := unmarshalJSONField(stats, &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	if run.Neighborhoods, err = r.getNeighborhoods(ctx, id); err != nil {
		return nil, err
	}
	if run.Graph, err = r.getGraph(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun returns the most recent run of a dataset
func (r *Repository) LatestRun(ctx context.Context, datasetID int64) (*repository.Run, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE dataset_id = ? ORDER BY id DESC LIMIT 1`, datasetID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("runs of dataset %d: %w", datasetID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return r.GetRun(ctx, id)
}

func (r *Repository) getNeighborhoods(ctx context.Context, runID int64) ([]repository.Neighborhood, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, depth, labels, previous_labels, linkage
		FROM neighborhoods WHERE run_id = ? ORDER BY depth, node_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhoods: %w", err)
	}
	defer rows.Close()

	var out []repository.Neighborhood
	index := make(map[int]int)
	for rows.Next() {
		var (
			n                repository.Neighborhood
			labels, previous string
		)
		if err := rows.Scan(&n.NodeID, &n.Depth, &labels, &previous, &n.Linkage); err != nil {
			return nil, fmt.Errorf("failed to scan neighborhood: %w", err)
		}
		if n.Labels, err = parseAddrList(labels); err != nil {
			return nil, fmt.Errorf("failed to parse labels: %w", err)
		}
		if n.PreviousLabels, err = parseAddrList(previous); err != nil {
			return nil, fmt.Errorf("failed to parse previous labels: %w", err)
		}
		index[n.NodeID] = len(out)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighborhoods: %w", err)
	}
	rows.Close()

	ifaces, err := r.db.QueryContext(ctx, `
		SELECT node_id, router_index, addr, method
		FROM router_interfaces WHERE run_id = ? ORDER BY node_id, router_index, position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query router interfaces: %w", err)
	}
	defer ifaces.Close()

	for ifaces.Next() {
		var (
			nodeID, routerIndex int
			addr, method        string
		)
		if err := ifaces.Scan(&nodeID, &routerIndex, &addr, &method); err != nil {
			return nil, fmt.Errorf("failed to scan router interface: %w", err)
		}
		a, err := netip.ParseAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse router interface: %w", err)
		}
		i, ok := index[nodeID]
		if !ok {
			continue
		}
		n := &out[i]
		for len(n.Routers) <= routerIndex {
			n.Routers = append(n.Routers, &domain.Router{})
		}
		n.Routers[routerIndex].Add(a, domain.AliasMethod(method))
	}
	return out, ifaces.Err()
}

func (r *Repository) getGraph(ctx context.Context, runID int64) (*bipartite.Graph, error) {
	g := &bipartite.Graph{}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, imaginary, depth, router, subnet
		FROM graph_vertices WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vertices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v              bipartite.Vertex
			kind           string
			imaginary      sql.NullInt64
			router, subnet sql.NullString
		)
		if err := rows.Scan(&v.ID, &kind, &imaginary, &v.Depth, &router, &subnet); err != nil {
			return nil, fmt.Errorf("failed to scan vertex: %w", err)
		}
		v.Kind = bipartite.VertexKind(kind)
		v.Imaginary = nullToBool(imaginary)
		if router.Valid {
			v.Router = &domain.Router{}
			if err := unmarshalJSONField(router, v.Router); err != nil {
				return nil, fmt.Errorf("failed to unmarshal router of %s: %w", v.ID, err)
			}
		}
		if subnet.Valid {
			v.Subnet = &domain.Subnet{}
			if err := unmarshalJSONField(subnet, v.Subnet); err != nil {
				return nil, fmt.Errorf("failed to unmarshal subnet of %s: %w", v.ID, err)
			}
		}
		g.Vertices = append(g.Vertices, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vertices: %w", err)
	}
	rows.Close()

	links, err := r.db.QueryContext(ctx, `
		SELECT kind, from_id, to_id FROM graph_links WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var l bipartite.Link
		var kind string
		if err := links.Scan(&kind, &l.From, &l.To); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.Kind = bipartite.LinkKind(kind)
		g.Links = append(g.Links, l)
	}
	return g, links.Err()
}
