package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Registry.
type Option func(*Registry)

// WithRootSource adds sources pulled at every accessor.
func WithRootSource(sources ...RootSource) Option {
	return func(r *Registry) {
		for _, src := range sources {
			if src != nil {
				r.sources = append(r.sources, src)
			}
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics registers the registry collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Registry) {
		r.metricsReg = reg
	}
}

// WithMalformedMarkerHandler installs a hook called for every skipped marker.
func WithMalformedMarkerHandler(fn func(*MalformedMarkerError)) Option {
	return func(r *Registry) {
		r.onMalformed = fn
	}
}
