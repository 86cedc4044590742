package observability

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jafarizadeh/wifi-ter-sim/model"
)

// RoamCollector bundles Prometheus metrics for the roaming control loop
// and provides a ready-to-serve /metrics handler.
type RoamCollector struct {
	gatherer prometheus.Gatherer

	ScanTriggers    prometheus.Counter
	RoamEvents      *prometheus.CounterVec
	SignalEstimates *prometheus.GaugeVec
	ServingLink     *prometheus.GaugeVec
	TickDurations   prometheus.Histogram

	SessionParticipants prometheus.Gauge
	SessionRoutes       prometheus.Gauge

	mu          sync.Mutex
	prevServing string
}

// NewRoamCollector registers roaming Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewRoamCollector(reg prometheus.Registerer) (*RoamCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scans, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roam_scan_triggers_total",
		Help: "Total number of reassociation scans requested by the decision engine.",
	}), "roam_scan_triggers_total")
	if err != nil {
		return nil, err
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roam_events_total",
		Help: "Total number of observed association events, labeled by event type.",
	}, []string{"type"})
	events, err = registerCounterVec(reg, events, "roam_events_total")
	if err != nil {
		return nil, err
	}

	signals := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roam_signal_estimate_dbm",
		Help: "Latest estimated receive power per candidate access point, in dBm.",
	}, []string{"link"})
	signals, err = registerGaugeVec(reg, signals, "roam_signal_estimate_dbm")
	if err != nil {
		return nil, err
	}

	serving := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roam_serving_link",
		Help: "1 for the currently serving access point, 0 otherwise.",
	}, []string{"link"})
	serving, err = registerGaugeVec(reg, serving, "roam_serving_link")
	if err != nil {
		return nil, err
	}

	ticks, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roam_decision_tick_duration_seconds",
		Help:    "Decision tick latency in seconds.",
		Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}), "roam_decision_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	participants, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_participants",
		Help: "Current number of participants in SessionState.",
	}), "session_participants")
	if err != nil {
		return nil, err
	}
	routes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_routes",
		Help: "Current number of installed routes in SessionState.",
	}), "session_routes")
	if err != nil {
		return nil, err
	}

	return &RoamCollector{
		gatherer:            gatherer,
		ScanTriggers:        scans,
		RoamEvents:          events,
		SignalEstimates:     signals,
		ServingLink:         serving,
		TickDurations:       ticks,
		SessionParticipants: participants,
		SessionRoutes:       routes,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RoamCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveSignal records the latest estimate for one candidate.
func (c *RoamCollector) ObserveSignal(linkID string, rxDbm float64) {
	if c == nil || c.SignalEstimates == nil {
		return
	}
	c.SignalEstimates.WithLabelValues(linkID).Set(rxDbm)
}

// ScanTriggered counts one requested reassociation scan.
func (c *RoamCollector) ScanTriggered() {
	if c == nil || c.ScanTriggers == nil {
		return
	}
	c.ScanTriggers.Inc()
}

// RoamObserved counts one observed association event by type.
func (c *RoamCollector) RoamObserved(typ model.RoamEventType) {
	if c == nil || c.RoamEvents == nil {
		return
	}
	c.RoamEvents.WithLabelValues(string(typ)).Inc()
}

// SetServing flips the serving indicator gauges so exactly one link
// reports 1 at a time.
func (c *RoamCollector) SetServing(linkID string) {
	if c == nil || c.ServingLink == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prevServing != "" && c.prevServing != linkID {
		c.ServingLink.WithLabelValues(c.prevServing).Set(0)
	}
	if linkID != "" {
		c.ServingLink.WithLabelValues(linkID).Set(1)
	}
	c.prevServing = linkID
}

// ObserveTickDuration records one decision tick latency.
func (c *RoamCollector) ObserveTickDuration(d time.Duration) {
	if c == nil || c.TickDurations == nil {
		return
	}
	c.TickDurations.Observe(d.Seconds())
}

// SetSessionCounts satisfies the SessionMetricsRecorder interface so the
// SessionState can drive gauge values directly from its mutators.
func (c *RoamCollector) SetSessionCounts(participants, routes int) {
	if c == nil {
		return
	}
	if c.SessionParticipants != nil {
		c.SessionParticipants.Set(float64(participants))
	}
	if c.SessionRoutes != nil {
		c.SessionRoutes.Set(float64(routes))
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
