package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrCandidateExists   = errors.New("candidate access point already exists")
	ErrCandidateBadInput = errors.New("invalid candidate access point")
)

// KnowledgeBase stores the fixed candidate access point set and the
// per-node positions the estimator reads every decision tick.
//
// It is concurrency-safe via an internal RWMutex so the tick loop and
// the metrics/reporting side can read it without coordination, as long
// as all access goes through these methods.
type KnowledgeBase struct {
	mu sync.RWMutex

	candidates    map[LinkIdentifier]*CandidateAccessPoint
	nodePositions map[string]Vec3
}

// NewKnowledgeBase creates an empty radio knowledge base.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		candidates:    make(map[LinkIdentifier]*CandidateAccessPoint),
		nodePositions: make(map[string]Vec3),
	}
}

// AddCandidate registers an access point. Candidates are added once at
// scenario setup and are read-only during operation.
func (kb *KnowledgeBase) AddCandidate(ap *CandidateAccessPoint) error {
	if ap == nil || ap.LinkID == UnassociatedLink {
		return fmt.Errorf("%w: nil or empty link identifier", ErrCandidateBadInput)
	}
	if ap.NodeID == "" {
		return fmt.Errorf("%w: %q has no node reference", ErrCandidateBadInput, ap.LinkID)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.candidates[ap.LinkID]; exists {
		return fmt.Errorf("%w: %q", ErrCandidateExists, ap.LinkID)
	}
	kb.candidates[ap.LinkID] = ap
	return nil
}

// GetCandidate returns a candidate by link identifier, or nil.
func (kb *KnowledgeBase) GetCandidate(id LinkIdentifier) *CandidateAccessPoint {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.candidates[id]
}

// Candidates returns all registered access points in a stable order.
func (kb *KnowledgeBase) Candidates() []*CandidateAccessPoint {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]*CandidateAccessPoint, 0, len(kb.candidates))
	for _, ap := range kb.candidates {
		out = append(out, ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkID < out[j].LinkID })
	return out
}

// SetNodePosition records the current position of a node (the client
// or an access point). Called once per tick for moving nodes.
func (kb *KnowledgeBase) SetNodePosition(nodeID string, pos Vec3) {
	if nodeID == "" {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nodePositions[nodeID] = pos
}

// GetNodePosition returns a node's position. The second return is
// false until the node's first position update; callers treat such
// candidates as absent for the tick.
func (kb *KnowledgeBase) GetNodePosition(nodeID string) (Vec3, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	pos, ok := kb.nodePositions[nodeID]
	return pos, ok
}

// Clear drops positions and candidates so a fresh scenario can be
// loaded without leftovers.
func (kb *KnowledgeBase) Clear() {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	kb.candidates = make(map[LinkIdentifier]*CandidateAccessPoint)
	kb.nodePositions = make(map[string]Vec3)
}
