package core

import (
	"context"
	"time"

	"github.com/jafarizadeh/wifi-ter-sim/internal/logging"
	"github.com/jafarizadeh/wifi-ter-sim/model"
)

// DecisionConfig holds the three debounce knobs of the handover
// decision: a candidate must beat the serving AP by HysteresisDb, stay
// preferable for Dwell, and triggers are spaced at least MinTriggerGap
// apart.
type DecisionConfig struct {
	HysteresisDb  float64
	Dwell         time.Duration
	MinTriggerGap time.Duration
}

// DefaultDecisionConfig returns the corridor-scenario defaults.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		HysteresisDb:  4.0,
		Dwell:         1 * time.Second,
		MinTriggerGap: 2 * time.Second,
	}
}

// HandoverState is the engine's private state. It is owned exclusively
// by the HandoverDecisionEngine and mutated only inside Tick.
// Invariant: CandidateFlag implies CandidateSince is a valid timestamp
// not after the current tick.
type HandoverState struct {
	ServingID      LinkIdentifier
	HaveServing    bool
	CandidateFlag  bool
	CandidateSince time.Time

	// LastTrigger is only meaningful once Triggered is true; before the
	// first scan trigger the minimum-gap guard is inactive.
	LastTrigger time.Time
	Triggered   bool
}

// ServingSync receives confirmed serving-link changes, typically the
// routing synchronizer.
type ServingSync interface {
	OnServingChanged(ctx context.Context, id LinkIdentifier) error
}

// ScanTrigger is the slice of the radio stack the engine acts through.
type ScanTrigger interface {
	TriggerScan(hint LinkIdentifier)
}

// DecisionMetricsRecorder receives per-tick decision telemetry.
type DecisionMetricsRecorder interface {
	ObserveSignal(linkID string, rxDbm float64)
	ScanTriggered()
	RoamObserved(typ model.RoamEventType)
}

// HandoverDecisionEngine is the tick-driven controller that decides
// when to ask the radio stack for a reassociation scan. One engine
// serves one client session; it is not safe for concurrent Ticks, and
// the scheduler guarantees ticks never overlap.
type HandoverDecisionEngine struct {
	kb        *KnowledgeBase
	estimator *LinkQualityEstimator
	observer  *AssociationObserver
	scanner   ScanTrigger

	clientNodeID string
	cfg          DecisionConfig

	sync     ServingSync
	recorder *RoamEventRecorder
	log      logging.Logger
	metrics  DecisionMetricsRecorder

	state HandoverState
}

// EngineOption customises engine construction.
type EngineOption func(*HandoverDecisionEngine)

// WithServingSync attaches a synchronizer notified on confirmed
// serving-link changes.
func WithServingSync(s ServingSync) EngineOption {
	return func(e *HandoverDecisionEngine) { e.sync = s }
}

// WithRecorder attaches a roam event recorder.
func WithRecorder(r *RoamEventRecorder) EngineOption {
	return func(e *HandoverDecisionEngine) { e.recorder = r }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *HandoverDecisionEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches a decision metrics recorder.
func WithMetrics(m DecisionMetricsRecorder) EngineOption {
	return func(e *HandoverDecisionEngine) { e.metrics = m }
}

// NewHandoverDecisionEngine wires the engine to its collaborators.
func NewHandoverDecisionEngine(kb *KnowledgeBase, estimator *LinkQualityEstimator, observer *AssociationObserver, scanner ScanTrigger, clientNodeID string, cfg DecisionConfig, opts ...EngineOption) *HandoverDecisionEngine {
	e := &HandoverDecisionEngine{
		kb:           kb,
		estimator:    estimator,
		observer:     observer,
		scanner:      scanner,
		clientNodeID: clientNodeID,
		cfg:          cfg,
		log:          logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// State returns a copy of the engine's current state for reporting.
func (e *HandoverDecisionEngine) State() HandoverState {
	return e.state
}

// Tick runs one decision evaluation at the given simulation time.
// It never returns an error: missing inputs make candidates absent for
// the tick, and sync failures are logged, so a bad tick can never halt
// the polling loop.
func (e *HandoverDecisionEngine) Tick(ctx context.Context, now time.Time) {
	cur := e.observer.Poll()

	// First observation: adopt the serving AP, emit Init, no decision.
	if !e.state.HaveServing {
		if cur == UnassociatedLink {
			return
		}
		e.state.ServingID = cur
		e.state.HaveServing = true
		e.state.CandidateFlag = false
		e.fanOutServingChange(ctx, now, model.RoamEventInit, cur)
		return
	}

	// Serving changed since last tick: an executed handover, not a new
	// decision. Reset candidacy and notify downstream.
	if cur != e.state.ServingID {
		e.state.ServingID = cur
		e.state.CandidateFlag = false
		if cur != UnassociatedLink {
			e.fanOutServingChange(ctx, now, model.RoamEventRoam, cur)
		}
		return
	}

	if cur == UnassociatedLink {
		return
	}

	serving, best, ok := e.surveyCandidates(cur, now)
	if !ok {
		e.state.CandidateFlag = false
		return
	}

	// Minimum-gap guard: rate-limit scans regardless of signal. The
	// decision is skipped entirely, leaving any running dwell untouched.
	if e.state.Triggered && now.Sub(e.state.LastTrigger) < e.cfg.MinTriggerGap {
		return
	}

	if best.RxPowerDbm > serving.RxPowerDbm+e.cfg.HysteresisDb {
		if !e.state.CandidateFlag {
			e.state.CandidateFlag = true
			e.state.CandidateSince = now
			return
		}
		if now.Sub(e.state.CandidateSince) >= e.cfg.Dwell {
			e.scanner.TriggerScan(best.LinkID)
			e.state.LastTrigger = now
			e.state.Triggered = true
			e.state.CandidateFlag = false
			if e.metrics != nil {
				e.metrics.ScanTriggered()
			}
			e.log.Info(ctx, "scan triggered",
				logging.String("serving", string(cur)),
				logging.String("candidate", string(best.LinkID)),
				logging.Any("rx_serving_dbm", serving.RxPowerDbm),
				logging.Any("rx_best_dbm", best.RxPowerDbm),
				logging.String("serving_quality", string(serving.Quality())),
				logging.String("candidate_quality", string(best.Quality())),
			)
		}
		return
	}

	// Condition lapsed: discard any partial dwell.
	e.state.CandidateFlag = false
}

// surveyCandidates estimates the serving AP and the best non-serving
// candidate. Candidates whose positions or estimates are unavailable
// are treated as absent for this tick. ok is false when either the
// serving estimate or all other candidates are unavailable.
func (e *HandoverDecisionEngine) surveyCandidates(serving LinkIdentifier, now time.Time) (servingEst, bestEst SignalEstimate, ok bool) {
	clientPos, havePos := e.kb.GetNodePosition(e.clientNodeID)
	if !havePos {
		return SignalEstimate{}, SignalEstimate{}, false
	}

	haveServing := false
	haveBest := false

	for _, ap := range e.kb.Candidates() {
		apPos, okPos := e.kb.GetNodePosition(ap.NodeID)
		if !okPos {
			continue
		}
		est, err := e.estimator.Estimate(*ap, apPos, clientPos, now)
		if err != nil {
			continue
		}
		if e.metrics != nil {
			e.metrics.ObserveSignal(string(ap.LinkID), est.RxPowerDbm)
		}
		if ap.LinkID == serving {
			servingEst = est
			haveServing = true
			continue
		}
		if !haveBest || est.RxPowerDbm > bestEst.RxPowerDbm {
			bestEst = est
			haveBest = true
		}
	}

	if !haveServing || !haveBest {
		return SignalEstimate{}, SignalEstimate{}, false
	}
	return servingEst, bestEst, true
}

// fanOutServingChange reports a confirmed association to the recorder
// and the routing synchronizer. Sync failures are surfaced as warnings
// only; the next confirmed change self-corrects.
func (e *HandoverDecisionEngine) fanOutServingChange(ctx context.Context, now time.Time, typ model.RoamEventType, id LinkIdentifier) {
	if e.recorder != nil {
		e.recorder.Record(now, typ, id)
	}
	if e.metrics != nil {
		e.metrics.RoamObserved(typ)
	}
	if e.sync != nil {
		if err := e.sync.OnServingChanged(ctx, id); err != nil {
			e.log.Warn(ctx, "routing sync incomplete",
				logging.String("serving", string(id)),
				logging.String("error", err.Error()),
			)
		}
	}
	e.log.Info(ctx, "serving link "+string(typ),
		logging.String("serving", string(id)),
	)
}
