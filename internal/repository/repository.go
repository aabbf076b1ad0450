package repository

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"treenet/internal/bipartite"
	"treenet/internal/domain"
)

// ErrNotFound is returned when a dataset or run does not exist
var ErrNotFound = errors.New("not found")

// DatasetInfo summarizes a stored dataset
type DatasetInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subnets   int       `json:"subnets"`
	Hints     int       `json:"hints"`
	CreatedAt time.Time `json:"created_at"`
}

// Neighborhood is the persisted form of one tree neighborhood
type Neighborhood struct {
	NodeID         int              `json:"node_id"`
	Depth          int              `json:"depth"`
	Labels         []netip.Addr     `json:"labels"`
	PreviousLabels []netip.Addr     `json:"previous_labels"`
	Linkage        string           `json:"linkage"`
	Routers        []*domain.Router `json:"routers"`
}

// Run is the stored outcome of one inference run
type Run struct {
	ID            int64            `json:"id"`
	DatasetID     int64            `json:"dataset_id"`
	CreatedAt     time.Time        `json:"created_at"`
	Stats         map[string]any   `json:"stats"`
	Neighborhoods []Neighborhood   `json:"neighborhoods"`
	Graph         *bipartite.Graph `json:"graph"`
}

// Repository defines the interface for dataset and result access
type Repository interface {
	// Datasets
	SaveDataset(ctx context.Context, ds *domain.Dataset) (int64, error)
	GetDataset(ctx context.Context, id int64) (*domain.Dataset, error)
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
	DeleteDataset(ctx context.Context, id int64) error

	// Inference runs
	SaveRun(ctx context.Context, run *Run) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	LatestRun(ctx context.Context, datasetID int64) (*Run, error)

	// Close releases resources
	Close() error
}
