package alias

import (
	"math"

	"treenet/internal/domain"
)

const idSpace = 65536

// CounterType classifies the IP-ID counter behavior of an interface
type CounterType int

// Declaration order is the grouping rank: higher values sort first.
const (
	CounterUnknown CounterType = iota
	CounterRandom
	CounterEcho
	CounterHealthy
)

// String returns the counter type name
func (c CounterType) String() string {
	switch c {
	case CounterHealthy:
		return "healthy"
	case CounterEcho:
		return "echo"
	case CounterRandom:
		return "random"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (c CounterType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// CounterProfile is the outcome of EvaluateCounter. Velocities are in IDs per second.
type CounterProfile struct {
	Type        CounterType `json:"type"`
	MinVelocity float64     `json:"min_velocity"`
	MaxVelocity float64     `json:"max_velocity"`
}

// randomProfile is the "could be anything" sentinel
var randomProfile = CounterProfile{Type: CounterRandom, MinVelocity: 0, MaxVelocity: idSpace - 1}

// EvaluateCounter classifies the IP-ID behavior of an interface from its samples.
// Intervals without a positive elapsed time carry no velocity and are ignored.
func EvaluateCounter(h *domain.Hint, p Params) CounterProfile {
	if h == nil || len(h.Samples) < 2 {
		return CounterProfile{Type: CounterUnknown}
	}

	echo := true
	for _, s := range h.Samples {
		if !s.Echo {
			echo = false
			break
		}
	}
	if echo {
		return CounterProfile{Type: CounterEcho}
	}

	var deltas, elapsed []float64
	negatives := 0
	for i := 1; i < len(h.Samples); i++ {
		secs := h.Samples[i].Delay.Seconds()
		if secs <= 0 {
			continue
		}
		d := int(h.Samples[i].ID) - int(h.Samples[i-1].ID)
		if d < 0 {
			negatives++
			d += idSpace
		}
		deltas = append(deltas, float64(d))
		elapsed = append(elapsed, secs)
	}
	if len(deltas) == 0 {
		return CounterProfile{Type: CounterUnknown}
	}

	if negatives <= 1 {
		profile := CounterProfile{Type: CounterHealthy, MinVelocity: math.Inf(1), MaxVelocity: math.Inf(-1)}
		for i := range deltas {
			profile.widen(deltas[i] / elapsed[i])
		}
		return profile
	}

	for x := 0; x <= p.MaxRollovers; x++ {
		if profile, ok := solveRollovers(deltas, elapsed, x, p.RolloverTolerance); ok {
			return profile
		}
	}
	return randomProfile
}

// solveRollovers assumes x wraps during the first interval and checks that the
// resulting velocity explains every later interval with an integer number of wraps.
func solveRollovers(deltas, elapsed []float64, x int, tolerance float64) (CounterProfile, bool) {
	v0 := (deltas[0] + float64(x)*idSpace) / elapsed[0]
	profile := CounterProfile{Type: CounterHealthy, MinVelocity: v0, MaxVelocity: v0}
	for i := 1; i < len(deltas); i++ {
		wraps := (v0*elapsed[i] - deltas[i]) / idSpace
		rounded := math.Round(wraps)
		if rounded < 0 || math.Abs(wraps-rounded) > tolerance {
			return CounterProfile{}, false
		}
		profile.widen((deltas[i] + rounded*idSpace) / elapsed[i])
	}
	return profile, true
}

func (c *CounterProfile) widen(v float64) {
	c.MinVelocity = math.Min(c.MinVelocity, v)
	c.MaxVelocity = math.Max(c.MaxVelocity, v)
}
