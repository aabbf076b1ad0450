package codec

import (
	"github.com/gaissmai/bart"

	"treenet/internal/domain"
)

// Deduplicate drops subnets whose prefix already appeared earlier in the
// dataset and warns about prefixes nested in one another. Nested prefixes are
// kept: lookups resolve to the most specific one.
func Deduplicate(ds *domain.Dataset) (dropped int) {
	seen := new(bart.Table[int])
	kept := ds.Subnets[:0]
	for i, s := range ds.Subnets {
		if first, ok := seen.Get(s.Prefix); ok {
			log.Warnf("subnet #%d %s duplicates subnet #%d, dropping it", i, s.Prefix, first)
			dropped++
			continue
		}
		if seen.OverlapsPrefix(s.Prefix) {
			log.Warnf("subnet #%d %s overlaps an earlier subnet", i, s.Prefix)
		}
		seen.Insert(s.Prefix, i)
		kept = append(kept, s)
	}
	clear(ds.Subnets[len(kept):])
	ds.Subnets = kept
	return dropped
}
