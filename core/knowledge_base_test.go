package core

import (
	"errors"
	"sync"
	"testing"
)

func TestKnowledgeBaseAddAndGetCandidate(t *testing.T) {
	kb := NewKnowledgeBase()

	ap := &CandidateAccessPoint{LinkID: "ap-1", NodeID: "n1", TxPowerDbm: 20}
	if err := kb.AddCandidate(ap); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	if got := kb.GetCandidate("ap-1"); got != ap {
		t.Fatalf("GetCandidate = %v, want the added candidate", got)
	}
	if got := kb.GetCandidate("missing"); got != nil {
		t.Fatalf("GetCandidate(missing) = %v, want nil", got)
	}
}

func TestKnowledgeBaseRejectsDuplicateAndInvalidCandidates(t *testing.T) {
	kb := NewKnowledgeBase()

	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-1", NodeID: "n1"}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-1", NodeID: "n2"}); !errors.Is(err, ErrCandidateExists) {
		t.Fatalf("duplicate AddCandidate err = %v, want ErrCandidateExists", err)
	}
	if err := kb.AddCandidate(nil); !errors.Is(err, ErrCandidateBadInput) {
		t.Fatalf("nil AddCandidate err = %v, want ErrCandidateBadInput", err)
	}
	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "", NodeID: "n3"}); !errors.Is(err, ErrCandidateBadInput) {
		t.Fatalf("empty-link AddCandidate err = %v, want ErrCandidateBadInput", err)
	}
	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-2", NodeID: ""}); !errors.Is(err, ErrCandidateBadInput) {
		t.Fatalf("no-node AddCandidate err = %v, want ErrCandidateBadInput", err)
	}
}

func TestKnowledgeBaseCandidatesAreSorted(t *testing.T) {
	kb := NewKnowledgeBase()
	for _, id := range []LinkIdentifier{"ap-3", "ap-1", "ap-2"} {
		if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: id, NodeID: "n-" + string(id)}); err != nil {
			t.Fatalf("AddCandidate %s: %v", id, err)
		}
	}

	got := kb.Candidates()
	want := []LinkIdentifier{"ap-1", "ap-2", "ap-3"}
	if len(got) != len(want) {
		t.Fatalf("Candidates returned %d entries, want %d", len(got), len(want))
	}
	for i, ap := range got {
		if ap.LinkID != want[i] {
			t.Fatalf("Candidates[%d] = %q, want %q", i, ap.LinkID, want[i])
		}
	}
}

func TestKnowledgeBaseNodePositions(t *testing.T) {
	kb := NewKnowledgeBase()

	if _, ok := kb.GetNodePosition("sta-1"); ok {
		t.Fatal("GetNodePosition reported a position before any update")
	}

	kb.SetNodePosition("sta-1", Vec3{X: 1, Y: 2, Z: 3})
	pos, ok := kb.GetNodePosition("sta-1")
	if !ok {
		t.Fatal("GetNodePosition = not found after SetNodePosition")
	}
	if pos != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position = %+v, want {1 2 3}", pos)
	}

	// Empty node IDs are dropped silently.
	kb.SetNodePosition("", Vec3{X: 9})
	if _, ok := kb.GetNodePosition(""); ok {
		t.Fatal("empty node ID should not be stored")
	}
}

func TestKnowledgeBaseClear(t *testing.T) {
	kb := NewKnowledgeBase()
	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-1", NodeID: "n1"}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}
	kb.SetNodePosition("n1", Vec3{X: 5})

	kb.Clear()

	if got := kb.GetCandidate("ap-1"); got != nil {
		t.Fatalf("candidate survived Clear: %v", got)
	}
	if _, ok := kb.GetNodePosition("n1"); ok {
		t.Fatal("position survived Clear")
	}
}

func TestKnowledgeBaseConcurrentAccess(t *testing.T) {
	kb := NewKnowledgeBase()
	if err := kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-1", NodeID: "n1"}); err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			kb.SetNodePosition("n1", Vec3{X: float64(i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = kb.Candidates()
			_, _ = kb.GetNodePosition("n1")
		}()
	}
	wg.Wait()
}
