package core

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge results used as the "result" label.
const (
	mergeResultOK    = "ok"
	mergeResultEmpty = "empty"
	mergeResultError = "error"
)

type registryMetrics struct {
	merges        *prometheus.CounterVec
	mergeDuration prometheus.Histogram
	rootsScanned  prometheus.Counter
	malformed     prometheus.Counter
	units         *prometheus.GaugeVec
}

// newRegistryMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. When reg already holds collectors of the same name,
// for example from another Registry, those are reused and the registries share
// their series.
func newRegistryMetrics(reg prometheus.Registerer) (*registryMetrics, error) {
	m := &registryMetrics{
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anstore_registry_merges_total",
			Help: "Merges of new scan roots by result",
		}, []string{"result"}),
		mergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "anstore_registry_merge_duration_seconds",
			Help:    "Duration of one scan-and-merge cycle",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		rootsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anstore_registry_roots_scanned_total",
			Help: "Scan roots recorded as scanned",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anstore_registry_malformed_markers_total",
			Help: "Meta-marked types skipped because they cannot be used as markers",
		}),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "anstore_registry_units",
			Help: "Marked units currently published, by location",
		}, []string{"location"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.merges, err = register(reg, m.merges); err != nil {
		return nil, err
	}
	if m.mergeDuration, err = register(reg, m.mergeDuration); err != nil {
		return nil, err
	}
	if m.rootsScanned, err = register(reg, m.rootsScanned); err != nil {
		return nil, err
	}
	if m.malformed, err = register(reg, m.malformed); err != nil {
		return nil, err
	}
	if m.units, err = register(reg, m.units); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the collector reg already holds under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metrics: %w", err)
}

func (m *registryMetrics) observeSnapshot(s *Snapshot) {
	m.units.WithLabelValues(PlacementType.String()).Set(float64(s.types.Size()))
	m.units.WithLabelValues(PlacementField.String()).Set(float64(s.fields.Size()))
	m.units.WithLabelValues(PlacementMethod.String()).Set(float64(s.methods.Size()))
}
