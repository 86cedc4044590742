package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RadioCollector exposes radio-stack-specific Prometheus metrics.
type RadioCollector struct {
	gatherer prometheus.Gatherer

	ScanDuration         prometheus.Histogram
	PendingScans         prometheus.Gauge
	ReassociationsTotal  prometheus.Counter
	CandidatesConsidered prometheus.Gauge
}

// NewRadioCollector registers radio metrics against the provided registerer.
func NewRadioCollector(reg prometheus.Registerer) (*RadioCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scanHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "radio_scan_duration_seconds",
		Help:    "Simulated time between a scan request and its completion.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
	scanHistogram, err := registerHistogram(reg, scanHistogram, "radio_scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	pendingGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_pending_scans",
		Help: "Number of scan requests awaiting completion.",
	})
	pendingGauge, err = registerGauge(reg, pendingGauge, "radio_pending_scans")
	if err != nil {
		return nil, err
	}

	reassociations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_reassociations_total",
		Help: "Cumulative number of completed scans that changed the association.",
	})
	reassociations, err = registerCounter(reg, reassociations, "radio_reassociations_total")
	if err != nil {
		return nil, err
	}

	candidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_scan_candidates_considered",
		Help: "Number of candidate access points evaluated by the last completed scan.",
	})
	candidates, err = registerGauge(reg, candidates, "radio_scan_candidates_considered")
	if err != nil {
		return nil, err
	}

	return &RadioCollector{
		gatherer:             gatherer,
		ScanDuration:         scanHistogram,
		PendingScans:         pendingGauge,
		ReassociationsTotal:  reassociations,
		CandidatesConsidered: candidates,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RadioCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveScanDuration records the simulated latency of one completed scan.
func (c *RadioCollector) ObserveScanDuration(d time.Duration) {
	if c == nil || c.ScanDuration == nil {
		return
	}
	c.ScanDuration.Observe(d.Seconds())
}

// SetPendingScans updates the pending scan gauge.
func (c *RadioCollector) SetPendingScans(count int) {
	if c == nil || c.PendingScans == nil {
		return
	}
	c.PendingScans.Set(float64(count))
}

// IncReassociations increments the reassociation counter.
func (c *RadioCollector) IncReassociations() {
	if c == nil || c.ReassociationsTotal == nil {
		return
	}
	c.ReassociationsTotal.Inc()
}

// SetCandidatesConsidered records how many candidates the last scan evaluated.
func (c *RadioCollector) SetCandidatesConsidered(count int) {
	if c == nil || c.CandidatesConsidered == nil {
		return
	}
	c.CandidatesConsidered.Set(float64(count))
}
