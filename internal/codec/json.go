package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"treenet/internal/domain"
)

// JSONCodec handles JSON dataset import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a dataset from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.Dataset, error) {
	var rec datasetRecord
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return rec.toDomain()
}

// Export exports a dataset to JSON
func (c *JSONCodec) Export(ds *domain.Dataset, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(fromDomain(ds)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
