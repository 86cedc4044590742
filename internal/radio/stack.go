// Package radio provides the simulated 802.11 stack the decision
// engine drives. It stands in for a real driver: associations change
// only through scans, and scans complete asynchronously after a fixed
// simulated latency.
package radio

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jafarizadeh/wifi-ter-sim/core"
	"github.com/jafarizadeh/wifi-ter-sim/internal/logging"
	"github.com/jafarizadeh/wifi-ter-sim/model"
)

// Config holds the stack's tunables.
type Config struct {
	ClientNodeID string
	// ScanLatency is the simulated time between a scan request and the
	// resulting (re)association.
	ScanLatency time.Duration
	// ShadowingSigmaDb adds a stable log-normal shadowing offset per
	// client/AP pair on top of the deterministic path loss. Zero
	// disables shadowing.
	ShadowingSigmaDb float64
	Seed             int64
}

// MetricsRecorder receives radio telemetry. The observability
// RadioCollector satisfies it.
type MetricsRecorder interface {
	ObserveScanDuration(d time.Duration)
	SetPendingScans(count int)
	IncReassociations()
	SetCandidatesConsidered(count int)
}

// SimulatedStack implements the engine-facing radio boundary over the
// shared knowledge base. The control loop advances it once per tick,
// before the decision engine runs, so scan completions surface as
// serving-link changes on the same tick they mature.
type SimulatedStack struct {
	mu sync.Mutex

	kb        *core.KnowledgeBase
	estimator *core.LinkQualityEstimator
	cfg       Config

	serving core.LinkIdentifier

	pending     bool
	requestedAt time.Time
	dueAt       time.Time
	hint        core.LinkIdentifier

	lastAdvance time.Time

	rng     *rand.Rand
	offsets map[model.LinkKey]float64

	log     logging.Logger
	metrics MetricsRecorder
}

// StackOption customises stack construction.
type StackOption func(*SimulatedStack)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) StackOption {
	return func(s *SimulatedStack) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a radio metrics recorder.
func WithMetrics(m MetricsRecorder) StackOption {
	return func(s *SimulatedStack) { s.metrics = m }
}

// NewSimulatedStack builds an unassociated stack over the shared
// knowledge base.
func NewSimulatedStack(kb *core.KnowledgeBase, estimator *core.LinkQualityEstimator, cfg Config, opts ...StackOption) *SimulatedStack {
	s := &SimulatedStack{
		kb:        kb,
		estimator: estimator,
		cfg:       cfg,
		serving:   core.UnassociatedLink,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		offsets:   make(map[model.LinkKey]float64),
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ServingLink reports the current association.
func (s *SimulatedStack) ServingLink() core.LinkIdentifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

// Associate forces an association without a scan. Used at scenario
// setup to pin the client to its initial access point.
func (s *SimulatedStack) Associate(id core.LinkIdentifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serving = id
}

// TriggerScan queues a scan request. A scan already in flight absorbs
// further requests; the pending scan's outcome covers them.
func (s *SimulatedStack) TriggerScan(hint core.LinkIdentifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return
	}
	s.pending = true
	s.hint = hint
	s.requestedAt = s.lastAdvance
	s.dueAt = s.lastAdvance.Add(s.cfg.ScanLatency)
	if s.metrics != nil {
		s.metrics.SetPendingScans(1)
	}
}

// Advance moves the stack to simTime, completing a pending scan once
// its latency has elapsed. A completed scan associates with the
// strongest candidate, which may be the current one.
func (s *SimulatedStack) Advance(ctx context.Context, simTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAdvance = simTime
	if !s.pending || simTime.Before(s.dueAt) {
		return
	}

	best, considered := s.bestCandidateLocked(simTime)
	s.pending = false
	if s.metrics != nil {
		s.metrics.SetPendingScans(0)
		s.metrics.SetCandidatesConsidered(considered)
		s.metrics.ObserveScanDuration(s.dueAt.Sub(s.requestedAt))
	}
	if best == core.UnassociatedLink {
		s.log.Warn(ctx, "scan found no reachable access point",
			logging.String("hint", string(s.hint)),
		)
		return
	}
	if best != s.serving {
		s.log.Info(ctx, "reassociated",
			logging.String("from", string(s.serving)),
			logging.String("to", string(best)),
		)
		s.serving = best
		if s.metrics != nil {
			s.metrics.IncReassociations()
		}
	}
}

// bestCandidateLocked surveys every candidate and returns the one with
// the strongest shadowing-adjusted estimate. Caller must hold s.mu.
func (s *SimulatedStack) bestCandidateLocked(simTime time.Time) (core.LinkIdentifier, int) {
	clientPos, ok := s.kb.GetNodePosition(s.cfg.ClientNodeID)
	if !ok {
		return core.UnassociatedLink, 0
	}

	best := core.UnassociatedLink
	bestRx := 0.0
	considered := 0

	for _, ap := range s.kb.Candidates() {
		apPos, okPos := s.kb.GetNodePosition(ap.NodeID)
		if !okPos {
			continue
		}
		est, err := s.estimator.Estimate(*ap, apPos, clientPos, simTime)
		if err != nil {
			continue
		}
		considered++
		rx := est.RxPowerDbm + s.shadowOffsetLocked(ap.NodeID)
		if best == core.UnassociatedLink || rx > bestRx {
			best = ap.LinkID
			bestRx = rx
		}
	}
	return best, considered
}

// shadowOffsetLocked returns the stable shadowing offset for the pair
// formed by the client and the given AP node. Caller must hold s.mu.
func (s *SimulatedStack) shadowOffsetLocked(apNodeID string) float64 {
	if s.cfg.ShadowingSigmaDb <= 0 {
		return 0
	}
	key := model.NewLinkKey(s.cfg.ClientNodeID, apNodeID)
	off, ok := s.offsets[key]
	if !ok {
		off = s.rng.NormFloat64() * s.cfg.ShadowingSigmaDb
		s.offsets[key] = off
	}
	return off
}
