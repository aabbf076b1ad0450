package alias

import "strings"

// ReverseDNS reports whether two host names differ at most in their leftmost
// label. Names with a different number of labels never match, and single
// label names only match themselves.
func ReverseDNS(a, b string) bool {
	a = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(a)), ".")
	b = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(b)), ".")
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.Split(a, "."), strings.Split(b, ".")
	if len(la) != len(lb) {
		return false
	}
	if len(la) == 1 {
		return a == b
	}
	for i := len(la) - 1; i >= 1; i-- {
		if la[i] != lb[i] {
			return false
		}
	}
	return true
}
