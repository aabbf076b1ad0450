package codec

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/bipartite"
	"treenet/internal/domain"
	"treenet/internal/tree"
)

const sampleYAML = `name: lab
subnets:
  - prefix: 10.1.0.0/24
    status: accurate
    route: ["10.0.0.1", "*", "10.0.2.1"]
    interfaces:
      - {addr: 10.1.0.1, hops: 3}
      - {addr: 10.1.0.7, hops: 4}
  - prefix: 10.2.0.9/24
    status: odd
    route: ["10.0.0.1"]
hints:
  - addr: 10.0.0.1
    initial_ttl: 255
    host_name: ge-0.r1.example.net
    timestamp_compliant: true
    port_unreachable_source: 10.0.0.254
    samples:
      - {token: 1, id: 100}
      - {token: 4, id: 180, delay: 250ms}
`

func TestYAMLCodecParse(t *testing.T) {
	ds, err := NewYAMLCodec().Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "lab", ds.Name)
	require.Len(t, ds.Subnets, 2)

	s := ds.Subnets[0]
	assert.Equal(t, netip.MustParsePrefix("10.1.0.0/24"), s.Prefix)
	assert.Equal(t, domain.SubnetStatusAccurate, s.Status)
	assert.Equal(t, []string{"10.0.0.1", "*", "10.0.2.1"}, s.Route.Strings())
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.1.0.1")}, s.ContraPivots())

	assert.Equal(t, netip.MustParsePrefix("10.2.0.0/24"), ds.Subnets[1].Prefix, "host bits are masked")
	assert.Equal(t, domain.SubnetStatusOdd, ds.Subnets[1].Status)

	require.Len(t, ds.Hints, 1)
	h := ds.Hints[0]
	assert.Equal(t, uint8(255), h.InitialTTL)
	assert.Equal(t, "ge-0.r1.example.net", h.HostName)
	assert.True(t, h.TimestampCompliant)
	assert.Equal(t, netip.MustParseAddr("10.0.0.254"), h.PortUnreachableSource)
	require.Len(t, h.Samples, 2)
	assert.Equal(t, 250*time.Millisecond, h.Samples[1].Delay)
}

func TestCodecRoundTrip(t *testing.T) {
	ds, err := NewYAMLCodec().Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			exp, err := NewExporter(format)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, exp.Export(ds, &buf))

			imp, err := NewImporter(format, "")
			require.NoError(t, err)
			back, err := imp.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, ds, back)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad prefix", content: "subnets:\n  - prefix: 10.1.0.0/99\n    route: []\n"},
		{name: "bad hop", content: "subnets:\n  - prefix: 10.1.0.0/24\n    route: [router1]\n"},
		{name: "bad hint address", content: "hints:\n  - addr: nowhere\n"},
		{name: "bad delay", content: "hints:\n  - addr: 10.0.0.1\n    samples:\n      - {token: 1, id: 1, delay: soon}\n"},
		{name: "unknown field", content: "subnet: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLCodec().Parse(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("invalid prefix is reported as such", func(t *testing.T) {
		_, err := NewYAMLCodec().Parse(strings.NewReader(tests[0].content))
		assert.ErrorIs(t, err, domain.ErrInvalidPrefix)
	})
}

func TestNewImporter(t *testing.T) {
	tests := []struct {
		format, path, want string
	}{
		{"auto", "run.yml", "yaml"},
		{"", "run.json", "json"},
		{"auto", "scan.xml", "nmap"},
		{"json", "run.yaml", "json"},
	}
	for _, tt := range tests {
		imp, err := NewImporter(tt.format, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, imp.Format())
	}

	_, err := NewImporter("auto", "run.csv")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = NewExporter("nmap")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDeduplicate(t *testing.T) {
	mk := func(cidr string) *domain.Subnet {
		s, err := domain.NewSubnet(cidr, nil, domain.SubnetStatusAccurate)
		require.NoError(t, err)
		return s
	}
	ds := &domain.Dataset{Subnets: []*domain.Subnet{
		mk("10.1.0.0/24"),
		mk("10.0.0.0/8"),
		mk("10.1.0.0/24"),
		mk("10.2.0.0/24"),
	}}

	assert.Equal(t, 1, Deduplicate(ds))
	var got []string
	for _, s := range ds.Subnets {
		got = append(got, s.Prefix.String())
	}
	assert.Equal(t, []string{"10.1.0.0/24", "10.0.0.0/8", "10.2.0.0/24"}, got)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab-run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(sampleYAML, "name: lab\n", "", 1)), 0644))

	ds, err := LoadFile(path, "auto")
	require.NoError(t, err)
	assert.Equal(t, "lab-run", ds.Name)
	assert.Len(t, ds.Subnets, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"), "auto")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExportGraph(t *testing.T) {
	ds, err := NewYAMLCodec().Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	tr := tree.New()
	for _, s := range ds.InsertionOrder() {
		tr.Insert(s)
	}
	g := bipartite.Build(tr)

	for _, format := range []string{"text", "json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, ExportGraph(g, format, &buf))
			assert.Contains(t, buf.String(), "10.1.0.0/24")
		})
	}

	assert.ErrorIs(t, ExportGraph(g, "dot", &bytes.Buffer{}), ErrUnknownFormat)
}
