package introspect

import (
	"runtime"

	"go.uber.org/zap"
)

// DefaultCacheSize is the number of parsed package directories kept in memory.
const DefaultCacheSize = 512

type options struct {
	moduleDirs   []string
	includeTests bool
	concurrency  int
	cacheSize    int
	logger       *zap.Logger
}

func defaultOptions() options {
	return options{
		concurrency: runtime.GOMAXPROCS(0),
		cacheSize:   DefaultCacheSize,
		logger:      zap.NewNop(),
	}
}

// Option configures a Source.
type Option func(*options)

// WithModule adds the module rooted at dir. The first module added is the main module.
func WithModule(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.moduleDirs = append(o.moduleDirs, dir)
		}
	}
}

// WithTests includes _test.go files.
func WithTests(include bool) Option {
	return func(o *options) {
		o.includeTests = include
	}
}

// WithConcurrency bounds the number of packages parsed in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
