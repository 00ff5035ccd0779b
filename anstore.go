package anstore

import (
	"context"
	"fmt"

	"github.com/fmeng/anstore/config"
	"github.com/fmeng/anstore/core"
	"github.com/fmeng/anstore/introspect"
)

type (
	Registry             = core.Registry
	Snapshot             = core.Snapshot
	MarkedUnit           = core.MarkedUnit
	MarkedUnits          = core.MarkedUnits
	Instance             = core.Instance
	TypeRef              = core.TypeRef
	FieldRef             = core.FieldRef
	MethodRef            = core.MethodRef
	Declaration          = core.Declaration
	Placement            = core.Placement
	PlacementSet         = core.PlacementSet
	TypeIndex            = core.TypeIndex
	FieldIndex           = core.FieldIndex
	MethodIndex          = core.MethodIndex
	Introspector         = core.Introspector
	RootSource           = core.RootSource
	Renderable           = core.Renderable
	IntrospectionError   = core.IntrospectionError
	MalformedMarkerError = core.MalformedMarkerError
)

const (
	PlacementType   = core.PlacementType
	PlacementField  = core.PlacementField
	PlacementMethod = core.PlacementMethod
)

var ErrNoScanRootsConfigured = core.ErrNoScanRootsConfigured

// Version returns the anstore release.
func Version() string {
	return core.Version()
}

// New builds a Registry reading Go sources of cfg.ModuleDirs. Unset fields get
// defaults. When cfg.Roots is set they are scanned before New returns; a scan
// failure is returned together with the registry, which stays usable.
func New(ctx context.Context, cfg *Config) (*Registry, *introspect.Source, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(defaultValidators()...); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []introspect.Option{
		introspect.WithTests(cfg.IncludeTests),
		introspect.WithConcurrency(cfg.Concurrency),
		introspect.WithCacheSize(cfg.CacheSize),
		introspect.WithLogger(cfg.Logger),
	}
	for _, dir := range cfg.ModuleDirs {
		opts = append(opts, introspect.WithModule(dir))
	}
	src, err := introspect.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	sources := append([]core.RootSource{config.NewSource(cfg.Viper)}, cfg.Sources...)
	reg, err := core.New(src,
		core.WithLogger(cfg.Logger),
		core.WithMetrics(cfg.Metrics),
		core.WithRootSource(sources...),
		core.WithMalformedMarkerHandler(cfg.OnMalformed),
	)
	if err != nil {
		return nil, nil, err
	}

	if len(cfg.Roots) > 0 {
		if err := reg.AddScanRoots(ctx, cfg.Roots...); err != nil {
			return reg, src, err
		}
	}
	return reg, src, nil
}
