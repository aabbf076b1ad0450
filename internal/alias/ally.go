package alias

import (
	"slices"

	"treenet/internal/domain"
)

// AllyResult is the outcome of the Ally test
type AllyResult int

const (
	AllyNoSequence AllyResult = iota
	AllyRejected
	AllyAccepted
)

// String returns the result name
func (r AllyResult) String() string {
	switch r {
	case AllyAccepted:
		return "accepted"
	case AllyRejected:
		return "rejected"
	default:
		return "no sequence"
	}
}

// AllyTest checks whether two IP-ID sequences interleave as if drawn from one
// shared counter. The sequence starting first brackets the first sample of the
// other; both gaps (mod 65536) must stay within maxDiff. Sequences starting on
// the same token or not overlapping give AllyNoSequence.
func AllyTest(a, b []domain.IPIDSample, maxDiff uint16) AllyResult {
	if len(a) == 0 || len(b) == 0 {
		return AllyNoSequence
	}
	a, b = byToken(a), byToken(b)
	if a[0].Token == b[0].Token {
		return AllyNoSequence
	}
	if b[0].Token < a[0].Token {
		a, b = b, a
	}

	first := b[0]
	if first.Token > a[len(a)-1].Token {
		return AllyNoSequence
	}
	after := slices.IndexFunc(a, func(s domain.IPIDSample) bool { return s.Token > first.Token })
	if after <= 0 {
		return AllyNoSequence
	}
	before := after - 1
	if a[before].Token == first.Token {
		if before == 0 {
			return AllyNoSequence
		}
		before--
	}

	gapBefore := first.ID - a[before].ID
	gapAfter := a[after].ID - first.ID
	if gapBefore <= maxDiff && gapAfter <= maxDiff {
		return AllyAccepted
	}
	return AllyRejected
}

func byToken(samples []domain.IPIDSample) []domain.IPIDSample {
	if slices.IsSortedFunc(samples, compareToken) {
		return samples
	}
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, compareToken)
	return sorted
}

func compareToken(x, y domain.IPIDSample) int {
	switch {
	case x.Token < y.Token:
		return -1
	case x.Token > y.Token:
		return 1
	}
	return 0
}
