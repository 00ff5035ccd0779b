package core

import (
	"context"
	"strings"
)

// DefaultRootDelimiter separates roots inside one configuration value.
const DefaultRootDelimiter = ","

// RootSource supplies scan roots on demand. Registries pull from their sources at
// every accessor; there is no push or watch.
type RootSource interface {
	Roots(ctx context.Context) ([]string, error)
}

// RootSourceFunc adapts a function to RootSource.
type RootSourceFunc func(ctx context.Context) ([]string, error)

func (f RootSourceFunc) Roots(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// StaticRoots is a fixed list of roots.
type StaticRoots []string

func (s StaticRoots) Roots(context.Context) ([]string, error) {
	return NormalizeRoots(s), nil
}

// SplitRoots splits a delimiter separated value, e.g. "a/b, c/d".
func SplitRoots(value, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultRootDelimiter
	}
	return NormalizeRoots(strings.Split(value, delimiter))
}

// MultiSource unions the roots of several sources in order.
type MultiSource []RootSource

func (m MultiSource) Roots(ctx context.Context) ([]string, error) {
	var all []string
	for _, src := range m {
		if src == nil {
			continue
		}
		roots, err := src.Roots(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, roots...)
	}
	return NormalizeRoots(all), nil
}
