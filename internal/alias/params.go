package alias

// Params tunes the alias resolution heuristics
type Params struct {
	// MaxRollovers bounds the IP-ID wraparound search of EvaluateCounter
	MaxRollovers int `yaml:"max_rollovers" json:"max_rollovers"`
	// RolloverTolerance is the largest distance to an integer accepted for a
	// rollover count
	RolloverTolerance float64 `yaml:"rollover_tolerance" json:"rollover_tolerance"`
	// AllyMaxDiff is the largest IP-ID gap accepted by the Ally test
	AllyMaxDiff uint16 `yaml:"ally_max_diff" json:"ally_max_diff"`
	// VelocityBaseTolerance widens velocity ranges by a fixed amount (IDs/s)
	VelocityBaseTolerance float64 `yaml:"velocity_base_tolerance" json:"velocity_base_tolerance"`
	// VelocityRatioTolerance widens velocity ranges proportionally to their upper bound
	VelocityRatioTolerance float64 `yaml:"velocity_ratio_tolerance" json:"velocity_ratio_tolerance"`
}

// DefaultParams returns the parameters used when none are configured
func DefaultParams() Params {
	return Params{
		MaxRollovers:           10,
		RolloverTolerance:      0.3,
		AllyMaxDiff:            200,
		VelocityBaseTolerance:  10,
		VelocityRatioTolerance: 0.2,
	}
}
