package identity

import (
	"testing"
	"time"
)

func TestPeerHashID_Deterministic(t *testing.T) {
	a := PeerHashID("185.1.2.3", 65000)
	b := PeerHashID("185.1.2.3", 65000)
	if a != b {
		t.Fatalf("expected stable hash_id, got %q and %q", a, b)
	}
}

func TestPeerHashID_KnownVector(t *testing.T) {
	// sha1("185.1.2.3|65000") first 32 hex chars parsed as a UUID.
	got := PeerHashID("185.1.2.3", 65000)
	if len(got) != 36 {
		t.Fatalf("expected a 36-char UUID string, got %q", got)
	}
	if want := "8587a62a-0ecd-02af-6c47-f2642d4600df"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPeerHashID_DifferentASNDiffers(t *testing.T) {
	a := PeerHashID("185.1.2.3", 65000)
	b := PeerHashID("185.1.2.3", 65001)
	if a == b {
		t.Fatal("expected different peer_asn to produce different hash_id")
	}
}

func TestBaseAttrHashID_Deterministic(t *testing.T) {
	a := BaseAttrHashID([]int64{65000, 174}, 174, "1.2.3.4")
	b := BaseAttrHashID([]int64{65000, 174}, 174, "1.2.3.4")
	if a != b {
		t.Fatalf("expected stable hash_id, got %q and %q", a, b)
	}
}

func TestHeuristicDetectionID_Deterministic(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := HeuristicDetectionID(ts, "10.0.0.0/8", 64513)
	b := HeuristicDetectionID(ts, "10.0.0.0/8", 64513)
	if a != b {
		t.Fatalf("expected stable detection_id, got %q and %q", a, b)
	}
	if a[:5] != "heur_" {
		t.Errorf("expected heur_ prefix, got %q", a)
	}
	if len(a) != len("heur_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got %q", a)
	}
}

func TestMLDetectionID_Format(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := MLDetectionID(ts, "8.8.8.0/24", 65001)
	if id[:3] != "ml_" {
		t.Errorf("expected ml_ prefix, got %q", id)
	}
	if len(id) != len("ml_")+16 {
		t.Errorf("expected 16 hex chars after prefix, got %q", id)
	}
}

func TestRPKIDetectionID_HumanReadable(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := RPKIDetectionID(ts, "8.8.8.0/24", 65001)
	want := "rpki_20260102030405_8.8.8.0/24_65001"
	if id != want {
		t.Errorf("got %q, want %q", id, want)
	}
}
