package alias

// VelocityOverlap reports whether two healthy counters could be the same
// counter. The wider velocity range is expanded by a tolerance growing with
// its upper bound before checking the overlap. Between ranges of equal width
// the faster one is expanded, so the result does not depend on argument order.
func VelocityOverlap(a, b CounterProfile, p Params) bool {
	if a.Type != CounterHealthy || b.Type != CounterHealthy {
		return false
	}
	wide, narrow := a, b
	wa, wb := a.MaxVelocity-a.MinVelocity, b.MaxVelocity-b.MinVelocity
	if wb > wa || (wb == wa && b.MaxVelocity > a.MaxVelocity) {
		wide, narrow = b, a
	}
	tol := p.VelocityBaseTolerance + p.VelocityRatioTolerance*wide.MaxVelocity
	lo, hi := wide.MinVelocity-tol, wide.MaxVelocity+tol
	return narrow.MinVelocity <= hi && narrow.MaxVelocity >= lo
}
