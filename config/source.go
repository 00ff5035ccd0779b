package config

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/fmeng/anstore/core"
)

// Source is a core.RootSource reading viper on every call.
// The viper instance must not be written while Roots runs.
type Source struct {
	v         *viper.Viper
	prefix    string
	delimiter string
}

var _ core.RootSource = (*Source)(nil)

type SourceOption func(*Source)

// WithPrefix changes the key prefix, RootsKey by default.
func WithPrefix(prefix string) SourceOption {
	return func(s *Source) {
		if prefix != "" {
			s.prefix = strings.ToLower(prefix)
		}
	}
}

// WithDelimiter changes the separator of roots inside one value.
func WithDelimiter(delimiter string) SourceOption {
	return func(s *Source) {
		if delimiter != "" {
			s.delimiter = delimiter
		}
	}
}

func NewSource(v *viper.Viper, opts ...SourceOption) *Source {
	s := &Source{v: v, prefix: RootsKey, delimiter: core.DefaultRootDelimiter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roots returns the union of every key equal to or below the prefix. Keys are
// read in sorted order.
func (s *Source) Roots(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.v == nil {
		return nil, nil
	}

	var keys []string
	for _, key := range s.v.AllKeys() {
		if key == s.prefix || strings.HasPrefix(key, s.prefix+".") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var roots []string
	for _, key := range keys {
		values, err := s.values(key, s.v.Get(key))
		if err != nil {
			return nil, err
		}
		roots = append(roots, values...)
	}
	return core.NormalizeRoots(roots), nil
}

func (s *Source) values(key string, raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil, map[string]any:
		// Sub-keys are listed by AllKeys on their own.
		return nil, nil
	case string:
		return core.SplitRoots(val, s.delimiter), nil
	case []string:
		var out []string
		for _, item := range val {
			out = append(out, core.SplitRoots(item, s.delimiter)...)
		}
		return out, nil
	case []any:
		var out []string
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("config key %s: scan root must be a string, got %T", key, item)
			}
			out = append(out, core.SplitRoots(str, s.delimiter)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("config key %s: unsupported scan roots value %T", key, raw)
	}
}
