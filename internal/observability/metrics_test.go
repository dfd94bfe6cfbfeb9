package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewMetricsRegistersIndependently(t *testing.T) {
	// Two independent Metrics instances must not collide on Prometheus's
	// global default registry: this is the whole reason NewMetrics uses a
	// private registry per call, since a library caller (or a test suite)
	// may construct more than one.
	m1 := NewMetrics("")
	m2 := NewMetrics("")
	m1.CompilesTotal.WithLabelValues("ok").Inc()
	m2.CompilesTotal.WithLabelValues("ok").Inc()
}

func TestWriteToProducesPrometheusTextFormat(t *testing.T) {
	m := NewMetrics("")
	m.CompilesTotal.WithLabelValues("ok").Inc()
	m.WarningsTotal.Add(3)

	path := filepath.Join(t.TempDir(), "metrics.txt")
	if err := m.WriteTo(path); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "rulesc_compiles_total") {
		t.Error("expected the compiles_total metric family in the output")
	}
	if !strings.Contains(text, "rulesc_warnings_total") {
		t.Error("expected the warnings_total metric family in the output")
	}
}

func TestNewMetricsDefaultsNamespace(t *testing.T) {
	m := NewMetrics("")
	path := filepath.Join(t.TempDir(), "metrics.txt")
	if err := m.WriteTo(path); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "rulesc_") {
		t.Error("expected metric names under the default rulesc_ namespace")
	}
}
