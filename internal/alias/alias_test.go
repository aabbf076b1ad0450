package alias

import (
	"math/rand"
	"net/netip"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// samples builds a series of (token, id) samples one second apart
func samples(pairs ...[2]int) []domain.IPIDSample {
	out := make([]domain.IPIDSample, len(pairs))
	for i, p := range pairs {
		out[i] = domain.IPIDSample{Token: uint32(p[0]), ID: uint16(p[1])}
		if i > 0 {
			out[i].Delay = time.Second
		}
	}
	return out
}

// idSeries builds samples one second apart from raw IDs
func idSeries(ids ...int) []domain.IPIDSample {
	pairs := make([][2]int, len(ids))
	for i, id := range ids {
		pairs[i] = [2]int{i + 1, id}
	}
	return samples(pairs...)
}

func testParams() Params {
	return Params{
		MaxRollovers:           10,
		RolloverTolerance:      0.3,
		AllyMaxDiff:            200,
		VelocityBaseTolerance:  10,
		VelocityRatioTolerance: 0.2,
	}
}

// ============================================================================
// Counter Evaluation
// ============================================================================

func TestEvaluateCounter(t *testing.T) {
	tests := []struct {
		name     string
		hint     *domain.Hint
		wantType CounterType
		wantMin  float64
		wantMax  float64
	}{
		{
			name:     "nil hint",
			hint:     nil,
			wantType: CounterUnknown,
		},
		{
			name:     "single sample",
			hint:     &domain.Hint{Samples: idSeries(100)},
			wantType: CounterUnknown,
		},
		{
			name: "echo",
			hint: &domain.Hint{Samples: []domain.IPIDSample{
				{Token: 1, ID: 1, Echo: true},
				{Token: 2, ID: 2, Echo: true, Delay: time.Second},
			}},
			wantType: CounterEcho,
		},
		{
			name:     "steady counter",
			hint:     &domain.Hint{Samples: idSeries(100, 200, 350)},
			wantType: CounterHealthy,
			wantMin:  100,
			wantMax:  150,
		},
		{
			name:     "single wraparound",
			hint:     &domain.Hint{Samples: idSeries(65000, 100, 600)},
			wantType: CounterHealthy,
			wantMin:  500,
			wantMax:  636,
		},
		{
			name:     "fast counter solved by rollover search",
			hint:     &domain.Hint{Samples: idSeries(0, 34464, 3392, 37856, 6784)},
			wantType: CounterHealthy,
			wantMin:  34464,
			wantMax:  34464,
		},
		{
			name:     "no consistent rollover count",
			hint:     &domain.Hint{Samples: idSeries(0, 60000, 100, 50000, 10)},
			wantType: CounterRandom,
			wantMin:  0,
			wantMax:  65535,
		},
		{
			name: "no elapsed time",
			hint: &domain.Hint{Samples: []domain.IPIDSample{
				{Token: 1, ID: 1},
				{Token: 2, ID: 5},
			}},
			wantType: CounterUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateCounter(tt.hint, testParams())
			assert.Equal(t, tt.wantType, got.Type)
			if tt.wantType == CounterHealthy || tt.wantType == CounterRandom {
				assert.InDelta(t, tt.wantMin, got.MinVelocity, 1e-9)
				assert.InDelta(t, tt.wantMax, got.MaxVelocity, 1e-9)
			}
		})
	}
}

// ============================================================================
// Fingerprints
// ============================================================================

func TestFingerprintCompare(t *testing.T) {
	pus := netip.MustParseAddr("10.9.9.9")
	fps := []Fingerprint{
		{Addr: netip.MustParseAddr("10.0.0.1"), InitialTTL: 64, Counter: CounterProfile{Type: CounterRandom}},
		{Addr: netip.MustParseAddr("10.0.0.2"), InitialTTL: 255, Counter: CounterProfile{Type: CounterUnknown}},
		{Addr: netip.MustParseAddr("10.0.0.3"), InitialTTL: 255, Counter: CounterProfile{Type: CounterHealthy}},
		{Addr: netip.MustParseAddr("10.0.0.4"), InitialTTL: 255, Counter: CounterProfile{Type: CounterHealthy}, PortUnreachableSource: pus},
		{Addr: netip.MustParseAddr("10.0.0.5"), InitialTTL: 255, Counter: CounterProfile{Type: CounterHealthy}, TimestampCompliant: true},
		{Addr: netip.MustParseAddr("10.0.0.6"), InitialTTL: 255, Counter: CounterProfile{Type: CounterHealthy}, HostName: "r1.example.net"},
	}
	slices.SortFunc(fps, Compare)

	var order []string
	for _, f := range fps {
		order = append(order, f.Addr.String())
	}
	assert.Equal(t, []string{
		"10.0.0.4", // port-unreachable source known
		"10.0.0.6", // host name known
		"10.0.0.3",
		"10.0.0.5", // timestamp compliant
		"10.0.0.2", // unknown counter
		"10.0.0.1", // lower TTL
	}, order)
}

func TestFingerprintEqualsContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ttls := []uint8{32, 64, 128, 255}
	sources := []netip.Addr{{}, netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")}
	names := []string{"", "a.example.net", "b.example.net"}

	fps := make([]Fingerprint, 200)
	for i := range fps {
		fps[i] = Fingerprint{
			Addr:                  netip.AddrFrom4([4]byte{192, 168, byte(i / 256), byte(i % 256)}),
			InitialTTL:            ttls[rng.Intn(len(ttls))],
			PortUnreachableSource: sources[rng.Intn(len(sources))],
			Counter:               CounterProfile{Type: CounterType(rng.Intn(4))},
			HostName:              names[rng.Intn(len(names))],
			TimestampCompliant:    rng.Intn(2) == 0,
		}
	}
	slices.SortFunc(fps, Compare)

	for i := range fps {
		for j := i + 1; j < len(fps); j++ {
			if !fps[i].Equals(fps[j]) {
				continue
			}
			for k := i + 1; k < j; k++ {
				require.True(t, fps[i].Equals(fps[k]), "equal fingerprints %d and %d are split by %d", i, j, k)
			}
		}
	}
}

func TestFingerprintGroupByDefault(t *testing.T) {
	assert.True(t, Fingerprint{Counter: CounterProfile{Type: CounterEcho}}.GroupByDefault())
	assert.True(t, Fingerprint{Counter: CounterProfile{Type: CounterRandom}}.GroupByDefault())
	assert.False(t, Fingerprint{Counter: CounterProfile{Type: CounterHealthy}}.GroupByDefault())
	assert.False(t, Fingerprint{Counter: CounterProfile{Type: CounterUnknown}}.GroupByDefault())
}

func TestNewFingerprintNormalizesPortUnreachableSource(t *testing.T) {
	h := &domain.Hint{InitialTTL: 64, PortUnreachableSource: netip.IPv4Unspecified()}
	f := NewFingerprint(netip.MustParseAddr("10.0.0.1"), h, testParams())
	assert.False(t, f.PortUnreachableSource.IsValid())
	assert.Equal(t, uint8(64), f.InitialTTL)
	assert.Equal(t, CounterUnknown, f.Counter.Type)
}

// ============================================================================
// Pairwise Tests
// ============================================================================

func TestAllyTest(t *testing.T) {
	tests := []struct {
		name string
		a, b []domain.IPIDSample
		want AllyResult
	}{
		{
			name: "same starting token",
			a:    samples([2]int{0, 100}, [2]int{5, 150}),
			b:    samples([2]int{0, 5000}, [2]int{4, 5300}),
			want: AllyNoSequence,
		},
		{
			name: "disjoint token ranges",
			a:    samples([2]int{1, 100}, [2]int{3, 110}),
			b:    samples([2]int{10, 120}, [2]int{12, 130}),
			want: AllyNoSequence,
		},
		{
			name: "interleaved shared counter",
			a:    samples([2]int{1, 100}, [2]int{3, 104}),
			b:    samples([2]int{2, 102}, [2]int{4, 106}),
			want: AllyAccepted,
		},
		{
			name: "interleaved across wraparound",
			a:    samples([2]int{1, 65530}, [2]int{3, 4}),
			b:    samples([2]int{2, 65534}),
			want: AllyAccepted,
		},
		{
			name: "interleaved distinct counters",
			a:    samples([2]int{1, 100}, [2]int{3, 104}),
			b:    samples([2]int{2, 9000}, [2]int{4, 9004}),
			want: AllyRejected,
		},
		{
			name: "empty",
			a:    nil,
			b:    samples([2]int{2, 102}),
			want: AllyNoSequence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllyTest(tt.a, tt.b, 200))
			assert.Equal(t, tt.want, AllyTest(tt.b, tt.a, 200), "not symmetric")
		})
	}
}

func TestAllyTestSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	series := func() []domain.IPIDSample {
		n := 1 + rng.Intn(5)
		out := make([]domain.IPIDSample, n)
		token := rng.Intn(10)
		for i := range out {
			token += 1 + rng.Intn(3)
			out[i] = domain.IPIDSample{Token: uint32(token), ID: uint16(rng.Intn(400))}
		}
		return out
	}
	for i := 0; i < 500; i++ {
		a, b := series(), series()
		require.Equal(t, AllyTest(a, b, 150), AllyTest(b, a, 150))
	}
}

func TestVelocityOverlap(t *testing.T) {
	healthy := func(lo, hi float64) CounterProfile {
		return CounterProfile{Type: CounterHealthy, MinVelocity: lo, MaxVelocity: hi}
	}
	p := Params{VelocityBaseTolerance: 10, VelocityRatioTolerance: 0.1}

	tests := []struct {
		name string
		a, b CounterProfile
		want bool
	}{
		{name: "overlapping", a: healthy(100, 120), b: healthy(110, 115), want: true},
		{name: "within tolerance", a: healthy(100, 110), b: healthy(125, 126), want: true},
		{name: "far apart", a: healthy(100, 110), b: healthy(200, 210), want: false},
		{name: "tolerance grows with velocity", a: healthy(10000, 10100), b: healthy(11000, 11000), want: true},
		{name: "single intervals expand the faster counter", a: healthy(100, 100), b: healthy(121, 121), want: true},
		{name: "single intervals beyond tolerance", a: healthy(100, 100), b: healthy(130, 130), want: false},
		{name: "equal widths expand the faster counter", a: healthy(100, 102), b: healthy(123, 125), want: true},
		{name: "identical ranges", a: healthy(100, 100), b: healthy(100, 100), want: true},
		{name: "random never overlaps", a: randomProfile, b: healthy(100, 110), want: false},
		{name: "random pair", a: randomProfile, b: randomProfile, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VelocityOverlap(tt.a, tt.b, p))
			assert.Equal(t, tt.want, VelocityOverlap(tt.b, tt.a, p))
		})
	}
}

func TestReverseDNS(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ge-0-0-1.r1.par.example.net", "xe-1-0-0.r1.par.example.net", true},
		{"GE-0.R1.example.net.", "ge-1.r1.example.net", true},
		{"ge-0.r1.example.net", "ge-0.r2.example.net", false},
		{"ge-0.r1.example.net", "r1.example.net", false},
		{"localhost", "localhost", true},
		{"host1", "host2", false},
		{"", "r1.example.net", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, ReverseDNS(tt.a, tt.b))
			assert.Equal(t, tt.want, ReverseDNS(tt.b, tt.a))
		})
	}
}
