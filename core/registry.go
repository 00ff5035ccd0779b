package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Registry discovers marked declarations under a growing set of scan roots and
// publishes them as an immutable Snapshot.
//
// Roots are added explicitly with AddScanRoots or pulled from RootSources by
// every accessor. Each root is scanned at most once. Merges are serialized by a
// single mutex; readers load the published snapshot without locking and only wait
// when their own call has roots to merge.
//
// The Introspector is called while the registry lock is held and must not call
// back into the Registry.
type Registry struct {
	introspector Introspector
	sources      []RootSource
	logger       *zap.Logger
	metricsReg   prometheus.Registerer
	metrics      *registryMetrics
	onMalformed  func(*MalformedMarkerError)

	mu sync.Mutex
	// attempted holds every root handed to the introspector, including roots
	// whose merge has not been published yet. Guarded by mu.
	attempted *ScanState
	current   atomic.Pointer[Snapshot]
}

// New creates a Registry backed by introspector.
func New(introspector Introspector, opts ...Option) (*Registry, error) {
	if introspector == nil {
		return nil, errors.New("registry: introspector is required")
	}
	r := &Registry{
		introspector: introspector,
		logger:       zap.NewNop(),
		attempted:    NewScanState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	metrics, err := newRegistryMetrics(r.metricsReg)
	if err != nil {
		return nil, err
	}
	r.metrics = metrics
	r.current.Store(emptySnapshot())
	return r, nil
}

// AddScanRoots scans the roots not scanned before and merges what they contain.
// Roots already scanned are ignored, so repeated calls are cheap no-ops.
//
// On an introspection failure the roots stay recorded as scanned, markers merged
// before the failure stay published, and an *IntrospectionError is returned.
func (r *Registry) AddScanRoots(ctx context.Context, roots ...string) error {
	if len(r.current.Load().state.Difference(roots)) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mergeLocked(ctx, roots)
}

// Snapshot returns the current view after merging any configured roots not yet scanned.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	return r.current.Load(), nil
}

// TypeIndex returns marker -> types.
func (r *Registry) TypeIndex(ctx context.Context) (*TypeIndex, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.types, nil
}

// FieldIndex returns marker -> fields.
func (r *Registry) FieldIndex(ctx context.Context) (*FieldIndex, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.fields, nil
}

// MethodIndex returns marker -> methods.
func (r *Registry) MethodIndex(ctx context.Context) (*MethodIndex, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.methods, nil
}

// MarkedUnits returns every unit in discovery order.
func (r *Registry) MarkedUnits(ctx context.Context) (MarkedUnits, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.MarkedUnits(), nil
}

// ScannedRoots returns the roots of the published snapshot without consulting sources.
func (r *Registry) ScannedRoots() []string {
	return r.current.Load().state.Roots()
}

// refresh pulls roots from every source and merges the ones not yet scanned.
func (r *Registry) refresh(ctx context.Context) error {
	roots, err := r.configuredRoots(ctx)
	if err != nil {
		return err
	}
	snap := r.current.Load()
	if len(snap.state.Difference(roots)) > 0 {
		r.mu.Lock()
		err := r.mergeLocked(ctx, roots)
		r.mu.Unlock()
		return err
	}
	if snap.state.Len() > 0 {
		return nil
	}
	// A merge may be in flight with nothing published yet; wait for it.
	r.mu.Lock()
	attempted := r.attempted.Len()
	r.mu.Unlock()
	if attempted == 0 {
		return ErrNoScanRootsConfigured
	}
	return nil
}

func (r *Registry) configuredRoots(ctx context.Context) ([]string, error) {
	var roots []string
	for _, src := range r.sources {
		got, err := src.Roots(ctx)
		if err != nil {
			return nil, fmt.Errorf("read scan roots: %w", err)
		}
		roots = append(roots, got...)
	}
	return NormalizeRoots(roots), nil
}

// mergeLocked must be called with mu held.
func (r *Registry) mergeLocked(ctx context.Context, roots []string) error {
	delta := r.attempted.Difference(roots)
	if len(delta) == 0 {
		return nil
	}
	// Record the roots first: a failed or empty scan is not repeated.
	r.attempted = r.attempted.With(delta...)
	r.metrics.rootsScanned.Add(float64(len(delta)))

	start := time.Now()
	b := r.current.Load().builder()
	b.state = r.attempted

	err := r.scan(ctx, delta, b)

	snap := b.build()
	r.current.Store(snap)

	elapsed := time.Since(start)
	r.metrics.mergeDuration.Observe(elapsed.Seconds())
	r.metrics.observeSnapshot(snap)

	log := r.logger.With(zap.Strings("delta", delta), zap.Duration("elapsed", elapsed))
	switch {
	case err != nil:
		r.metrics.merges.WithLabelValues(mergeResultError).Inc()
		log.Error("merge of scan roots failed", zap.Error(err), zap.Int("units_added", b.added))
	case b.added == 0:
		r.metrics.merges.WithLabelValues(mergeResultEmpty).Inc()
		log.Info("scan roots merged, nothing new found")
	default:
		r.metrics.merges.WithLabelValues(mergeResultOK).Inc()
		log.Info("scan roots merged", zap.Int("units_added", b.added), zap.Int("units_total", snap.Len()))
	}
	return err
}

func (r *Registry) scan(ctx context.Context, delta []string, b *builder) error {
	markers, err := r.introspector.MetaMarked(ctx, delta)
	if err != nil {
		return &IntrospectionError{Op: "find meta-marked types", Roots: delta, Err: err}
	}
	if len(markers) == 0 {
		r.logger.Debug("no markers visible in scan roots", zap.Strings("delta", delta))
		return nil
	}
	r.logger.Debug("markers discovered", zap.Strings("delta", delta), zap.Stringers("markers", markers))

	for _, marker := range markers {
		staged, err := r.scanMarker(ctx, marker, delta)
		if err != nil {
			var malformed *MalformedMarkerError
			if errors.As(err, &malformed) {
				r.skipMalformed(malformed)
				continue
			}
			return err
		}
		added := 0
		for _, u := range staged {
			if b.addUnit(u) {
				added++
			}
		}
		r.logger.Debug("marker merged", zap.Stringer("marker", marker), zap.Int("units_added", added))
	}
	return nil
}

// scanMarker collects every unit of marker under delta. Either all placements
// scan successfully or nothing is returned.
func (r *Registry) scanMarker(ctx context.Context, marker TypeRef, delta []string) ([]MarkedUnit, error) {
	placements, err := r.introspector.Placements(ctx, marker)
	if err != nil {
		if IsMalformedMarkerErr(err) {
			return nil, err
		}
		return nil, &IntrospectionError{Op: "read placements", Roots: delta, Marker: marker, Err: err}
	}
	if placements.Empty() {
		return nil, &MalformedMarkerError{Marker: marker, Reason: "no legal placement declared"}
	}

	var staged []MarkedUnit
	if placements.Has(PlacementType) {
		types, err := r.introspector.TypesWith(ctx, marker, delta)
		if err != nil {
			return nil, &IntrospectionError{Op: "find marked types", Roots: delta, Marker: marker, Err: err}
		}
		if staged, err = appendUnits(ctx, r.introspector, marker, delta, staged, types); err != nil {
			return nil, err
		}
	}
	if placements.Has(PlacementField) {
		fields, err := r.introspector.FieldsWith(ctx, marker, delta)
		if err != nil {
			return nil, &IntrospectionError{Op: "find marked fields", Roots: delta, Marker: marker, Err: err}
		}
		if staged, err = appendUnits(ctx, r.introspector, marker, delta, staged, fields); err != nil {
			return nil, err
		}
	}
	if placements.Has(PlacementMethod) {
		methods, err := r.introspector.MethodsWith(ctx, marker, delta)
		if err != nil {
			return nil, &IntrospectionError{Op: "find marked methods", Roots: delta, Marker: marker, Err: err}
		}
		if staged, err = appendUnits(ctx, r.introspector, marker, delta, staged, methods); err != nil {
			return nil, err
		}
	}
	return staged, nil
}

func appendUnits[D Declaration](ctx context.Context, in Introspector, marker TypeRef, delta []string, staged []MarkedUnit, decls []D) ([]MarkedUnit, error) {
	for _, decl := range decls {
		inst, err := in.InstanceOf(ctx, marker, decl)
		if err != nil {
			if IsMalformedMarkerErr(err) {
				return nil, err
			}
			return nil, &IntrospectionError{Op: "read marker instance of " + decl.String(), Roots: delta, Marker: marker, Err: err}
		}
		u, err := NewMarkedUnit(marker, decl, inst)
		if err != nil {
			return nil, &IntrospectionError{Op: "build marked unit", Roots: delta, Marker: marker, Err: err}
		}
		staged = append(staged, u)
	}
	return staged, nil
}

func (r *Registry) skipMalformed(err *MalformedMarkerError) {
	r.metrics.malformed.Inc()
	r.logger.Warn("skipping malformed marker", zap.Stringer("marker", err.Marker), zap.String("reason", err.Reason))
	if r.onMalformed != nil {
		r.onMalformed(err)
	}
}
