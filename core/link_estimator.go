package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrTxPowerInvalid indicates a candidate with a non-positive transmit power.
var ErrTxPowerInvalid = errors.New("transmit power must be positive")

// SignalQuality is a coarse, human-readable classification of an
// estimated received power. It is reporting metadata only; the
// decision engine compares raw dBm values.
type SignalQuality string

const (
	SignalQualityPoor      SignalQuality = "poor"
	SignalQualityFair      SignalQuality = "fair"
	SignalQualityGood      SignalQuality = "good"
	SignalQualityExcellent SignalQuality = "excellent"
)

// SignalEstimate is the estimated received power for one candidate at
// one decision tick. Estimates are ephemeral and recomputed every tick.
type SignalEstimate struct {
	LinkID     LinkIdentifier
	RxPowerDbm float64
	At         time.Time
}

// Quality buckets the estimate. Thresholds are deliberately soft; they
// only exist so logs and metrics read at a glance.
func (e SignalEstimate) Quality() SignalQuality {
	switch {
	case e.RxPowerDbm < -80:
		return SignalQualityPoor
	case e.RxPowerDbm < -70:
		return SignalQualityFair
	case e.RxPowerDbm < -60:
		return SignalQualityGood
	default:
		return SignalQualityExcellent
	}
}

// minPathDistanceM floors the log-distance law to avoid the singularity
// at zero range.
const minPathDistanceM = 0.1

// LinkQualityEstimator scores candidate access points with a simple
// log-distance path-loss law:
//
//	loss_dB = RefLossDb + 10 * Exponent * log10(d / 1m)
//
// Shadowing, fading and multipath live in the external channel; this
// estimate only has to be monotonic in distance so it can drive the
// handover decision.
type LinkQualityEstimator struct {
	// RefLossDb is the path loss at the 1 m reference distance.
	RefLossDb float64
	// Exponent is the log-distance decay exponent.
	Exponent float64
}

// NewLinkQualityEstimator returns an estimator with the 5 GHz Friis
// reference loss and an indoor-ish decay exponent.
func NewLinkQualityEstimator() *LinkQualityEstimator {
	return &LinkQualityEstimator{
		RefLossDb: 46.6777,
		Exponent:  3.0,
	}
}

// Estimate computes the received power at clientPos from the candidate
// at apPos. Deterministic given its inputs; the only failure mode is a
// candidate with non-positive transmit power.
func (le *LinkQualityEstimator) Estimate(candidate CandidateAccessPoint, apPos, clientPos Vec3, now time.Time) (SignalEstimate, error) {
	if candidate.TxPowerDbm <= 0 {
		return SignalEstimate{}, fmt.Errorf("%w: %q has %.1f dBm", ErrTxPowerInvalid, candidate.LinkID, candidate.TxPowerDbm)
	}

	d := apPos.DistanceTo(clientPos)
	if d < minPathDistanceM {
		d = minPathDistanceM
	}

	lossDb := le.RefLossDb + 10.0*le.Exponent*math.Log10(d/1.0)

	return SignalEstimate{
		LinkID:     candidate.LinkID,
		RxPowerDbm: candidate.TxPowerDbm - lossDb,
		At:         now,
	}, nil
}
