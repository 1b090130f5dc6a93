package mldetect

import (
	"testing"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

func TestSeverityBucket_Boundaries(t *testing.T) {
	cases := []struct {
		combined float64
		want     model.Severity
	}{
		{2.9999, model.SeverityLow},
		{3.0000, model.SeverityMedium},
		{3.9999, model.SeverityMedium},
		{4.0000, model.SeverityHigh},
		{4.9999, model.SeverityHigh},
		{5.0000, model.SeverityCritical},
		{9.0, model.SeverityCritical},
	}
	for _, c := range cases {
		if got := severityBucket(c.combined); got != c.want {
			t.Errorf("severityBucket(%v) = %v, want %v", c.combined, got, c.want)
		}
	}
}

func TestSequenceEndingAt_LeftPadsWhenShort(t *testing.T) {
	group := [][9]float64{{1}, {2}, {3}}
	window := sequenceEndingAt(group, 2, 5)
	if len(window) != 5 {
		t.Fatalf("expected window length 5, got %d", len(window))
	}
	for i := 0; i < 2; i++ {
		if window[i] != ([9]float64{}) {
			t.Errorf("expected zero padding at index %d, got %v", i, window[i])
		}
	}
	if window[4] != group[2] {
		t.Errorf("expected last window element to be group[2], got %v", window[4])
	}
}

func TestSequenceEndingAt_FullWindowNoPadding(t *testing.T) {
	group := make([][9]float64, 10)
	for i := range group {
		group[i] = [9]float64{float64(i)}
	}
	window := sequenceEndingAt(group, 9, 5)
	if len(window) != 5 {
		t.Fatalf("expected window length 5, got %d", len(window))
	}
	if window[0][0] != 5 || window[4][0] != 9 {
		t.Errorf("expected window [5..9], got first=%v last=%v", window[0], window[4])
	}
}

func TestPrefixLength(t *testing.T) {
	cases := map[string]int{
		"10.0.0.0/8":    8,
		"8.8.8.0/24":    24,
		"no-slash-here": 32,
	}
	for prefix, want := range cases {
		if got := prefixLength(prefix); got != want {
			t.Errorf("prefixLength(%q) = %d, want %d", prefix, got, want)
		}
	}
}
