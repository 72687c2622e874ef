package observability

import "strings"

// Filter excludes targets containing any of its substrings.
type Filter struct {
	patterns []string
}

// NewFilter ignores empty patterns.
func NewFilter(patterns ...string) Filter {
	f := Filter{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			f.patterns = append(f.patterns, p)
		}
	}
	return f
}

// Excludes reports whether target contains an excluded substring.
func (f Filter) Excludes(target string) bool {
	for _, p := range f.patterns {
		if strings.Contains(target, p) {
			return true
		}
	}
	return false
}
