// Package observability holds rulesc's Prometheus instrumentation: counters
// and histograms describing the compile pipeline, registered against a
// private registry (rather than the global default one) so that
// internal/compile.Compile can be called repeatedly in the same process —
// as the library API and the test suite both do — without panicking on
// duplicate registration.
package observability

import (
	"bufio"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds every Prometheus collector rulesc's compile pipeline
// reports to.
type Metrics struct {
	registry *prometheus.Registry

	CompilesTotal         *prometheus.CounterVec
	CompileDuration       prometheus.Histogram
	RulesCompiledByKind   *prometheus.CounterVec
	FunctionsInlinedTotal prometheus.Counter
	TransformPassesTotal  prometheus.Histogram
	FixedPointDuration    prometheus.Histogram
	WarningsTotal         prometheus.Counter
}

// NewMetrics creates and registers rulesc's metrics against a fresh,
// private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rulesc"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CompilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of compile runs, by outcome",
			},
			[]string{"outcome"}, // ok, error
		),
		CompileDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "End-to-end compile duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		RulesCompiledByKind: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_compiled_total",
				Help:      "Number of .read/.write/.validate/.indexOn rules emitted, by kind",
			},
			[]string{"kind"},
		),
		FunctionsInlinedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "functions_inlined_total",
				Help:      "Total number of function-call sites inlined across all compiles",
			},
		),
		TransformPassesTotal: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_passes",
				Help:      "Number of rewrite passes a single expression took to reach a fixed point",
				Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21, 34},
			},
		),
		FixedPointDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fixed_point_duration_seconds",
				Help:      "Time spent driving a single expression to a fixed point",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		WarningsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Total number of non-fatal warnings surfaced across all compiles",
			},
		),
	}
}

// WriteTo renders every registered metric in Prometheus text exposition
// format to path, for --metrics-out. rulesc never runs a long-lived HTTP
// server for promhttp to attach to, so the registry is encoded directly to
// a file instead.
func (m *Metrics) WriteTo(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics output %s: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metric family %s: %w", mf.GetName(), err)
		}
	}
	return w.Flush()
}
