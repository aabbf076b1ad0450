package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"treenet/internal/domain"
)

// YAMLCodec handles YAML dataset import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a dataset from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Dataset, error) {
	var rec datasetRecord
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return rec.toDomain()
}

// Export exports a dataset to YAML
func (c *YAMLCodec) Export(ds *domain.Dataset, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(fromDomain(ds)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
