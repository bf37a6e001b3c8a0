package dag

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_NoopNeverPanics(t *testing.T) {
	m := NewNoopMetrics()
	m.RecordNodeLatency("p", "n", time.Millisecond, "success")
	m.IncrementRetries("p", "n")
	m.IncrementOneOfFallback("p", "h")
	m.IncrementRecurrenceIteration("p", "s", "d")
	m.SetInflightNodes(3)
	m.SetQueueDepth(2)
}

func TestMetrics_RecordsToACustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IncrementRetries("p1", "n1")
	m.IncrementRetries("p1", "n1")
	m.SetInflightNodes(5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var retries *dto.MetricFamily
	var inflight *dto.MetricFamily
	for _, f := range families {
		switch f.GetName() {
		case "dagrun_retries_total":
			retries = f
		case "dagrun_inflight_nodes":
			inflight = f
		}
	}
	if retries == nil {
		t.Fatal("expected dagrun_retries_total to be registered")
	}
	if got := retries.Metric[0].Counter.GetValue(); got != 2 {
		t.Fatalf("retries_total = %v, want 2", got)
	}
	if inflight == nil {
		t.Fatal("expected dagrun_inflight_nodes to be registered")
	}
	if got := inflight.Metric[0].Gauge.GetValue(); got != 5 {
		t.Fatalf("inflight_nodes = %v, want 5", got)
	}
}
