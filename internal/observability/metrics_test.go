package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/jafarizadeh/wifi-ter-sim/model"
)

func TestCollectorRecordsDecisionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoamCollector(reg)
	if err != nil {
		t.Fatalf("NewRoamCollector: %v", err)
	}

	collector.ScanTriggered()
	collector.ScanTriggered()
	collector.RoamObserved(model.RoamEventInit)
	collector.RoamObserved(model.RoamEventRoam)
	collector.RoamObserved(model.RoamEventRoam)
	collector.ObserveSignal("ap-2", -63.5)
	collector.ObserveTickDuration(10 * time.Millisecond)

	if got := testutil.ToFloat64(collector.ScanTriggers); got != 2 {
		t.Fatalf("roam_scan_triggers_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.RoamEvents.WithLabelValues("ROAM")); got != 2 {
		t.Fatalf("roam_events_total{type=ROAM} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.RoamEvents.WithLabelValues("INIT")); got != 1 {
		t.Fatalf("roam_events_total{type=INIT} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.SignalEstimates.WithLabelValues("ap-2")); got != -63.5 {
		t.Fatalf("roam_signal_estimate_dbm{link=ap-2} = %v, want -63.5", got)
	}
	if count := histogramSampleCount(t, reg, "roam_decision_tick_duration_seconds", nil); count != 1 {
		t.Fatalf("roam_decision_tick_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestSetServingFlipsIndicator(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoamCollector(reg)
	if err != nil {
		t.Fatalf("NewRoamCollector: %v", err)
	}

	collector.SetServing("ap-1")
	collector.SetServing("ap-2")

	if got := testutil.ToFloat64(collector.ServingLink.WithLabelValues("ap-1")); got != 0 {
		t.Fatalf("roam_serving_link{link=ap-1} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.ServingLink.WithLabelValues("ap-2")); got != 1 {
		t.Fatalf("roam_serving_link{link=ap-2} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesSessionGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRoamCollector(reg)
	if err != nil {
		t.Fatalf("NewRoamCollector: %v", err)
	}
	collector.SetSessionCounts(4, 5)
	collector.ScanTriggered()
	collector.ObserveSignal("ap-1", -70)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"roam_scan_triggers_total",
		"roam_signal_estimate_dbm",
		"session_participants",
		"session_routes",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "session_participants 4") || !strings.Contains(body, "session_routes 5") {
		t.Fatalf("/metrics output missing session gauge values: %s", body)
	}
}

func TestNewRoamCollectorToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRoamCollector(reg); err != nil {
		t.Fatalf("first NewRoamCollector: %v", err)
	}
	if _, err := NewRoamCollector(reg); err != nil {
		t.Fatalf("second NewRoamCollector: %v", err)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
