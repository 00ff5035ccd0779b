package core

import (
	"sort"
	"strings"
)

// ScanState is the immutable set of roots already processed.
// It only grows: With returns a new state and leaves the receiver untouched.
type ScanState struct {
	roots map[string]struct{}
}

// NewScanState builds a state holding roots.
func NewScanState(roots ...string) *ScanState {
	s := &ScanState{roots: make(map[string]struct{}, len(roots))}
	for _, r := range NormalizeRoots(roots) {
		s.roots[r] = struct{}{}
	}
	return s
}

// Contains reports whether root was already processed. root must be normalized.
func (s *ScanState) Contains(root string) bool {
	if s == nil {
		return false
	}
	_, ok := s.roots[root]
	return ok
}

// Len is the number of recorded roots.
func (s *ScanState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.roots)
}

// Difference returns the normalized roots not yet in the state, keeping request order.
func (s *ScanState) Difference(roots []string) []string {
	var delta []string
	for _, r := range NormalizeRoots(roots) {
		if !s.Contains(r) {
			delta = append(delta, r)
		}
	}
	return delta
}

// With returns a new state holding the receiver's roots plus roots.
func (s *ScanState) With(roots ...string) *ScanState {
	next := &ScanState{roots: make(map[string]struct{}, s.Len()+len(roots))}
	if s != nil {
		for r := range s.roots {
			next.roots[r] = struct{}{}
		}
	}
	for _, r := range NormalizeRoots(roots) {
		next.roots[r] = struct{}{}
	}
	return next
}

// Roots returns every recorded root, sorted.
func (s *ScanState) Roots() []string {
	out := make([]string, 0, s.Len())
	if s != nil {
		for r := range s.roots {
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeRoots trims whitespace and trailing slashes, drops empty entries and
// removes duplicates while keeping the first occurrence order.
func NormalizeRoots(roots []string) []string {
	seen := make(map[string]struct{}, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.TrimRight(strings.TrimSpace(r), "/")
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
