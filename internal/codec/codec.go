// Package codec reads and writes treenet datasets and reports.
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"treenet/internal/domain"
)

var log = logrus.WithField("component", "codec")

// ErrUnknownFormat is returned when no codec handles a format
var ErrUnknownFormat = errors.New("unknown format")

// Importer interface for importing datasets from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Dataset, error)
	Format() string
}

// Exporter interface for exporting datasets to various formats
type Exporter interface {
	Export(ds *domain.Dataset, w io.Writer) error
	Format() string
}

// DetectFormat guesses a format from a file extension
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".xml":
		return "nmap"
	default:
		return ""
	}
}

// NewImporter returns the importer for a format; "auto" and "" detect it from path
func NewImporter(format, path string) (Importer, error) {
	if format == "" || format == "auto" {
		format = DetectFormat(path)
	}
	switch format {
	case "yaml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	case "nmap":
		return NewNmapCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// NewExporter returns the dataset exporter for a format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "yaml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// LoadFile imports a dataset file and drops duplicated subnets
func LoadFile(path, format string) (*domain.Dataset, error) {
	imp, err := NewImporter(format, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := imp.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	Deduplicate(ds)
	log.Infof("loaded %s: %d subnets, %d hints (%s)", path, len(ds.Subnets), len(ds.Hints), imp.Format())
	return ds, nil
}
