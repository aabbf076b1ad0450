package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"treenet/internal/bipartite"
)

// ExportGraph writes the bipartite graph as text, JSON or YAML
func ExportGraph(g *bipartite.Graph, format string, w io.Writer) error {
	switch format {
	case "", "text":
		return g.WriteText(w)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(g); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		if err := encoder.Encode(g); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
