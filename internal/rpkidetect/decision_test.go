package rpkidetect

import (
	"testing"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

func TestDecide_Valid_NoDetection(t *testing.T) {
	v := Decide(&Result{State: "valid"}, 24)
	if v.Detected {
		t.Errorf("expected valid state to not detect, got %+v", v)
	}
}

func TestDecide_InvalidOriginMismatch_Critical(t *testing.T) {
	v := Decide(&Result{State: "invalid", Reason: "origin AS mismatch"}, 24)
	if !v.Detected || v.Severity != model.SeverityCritical {
		t.Errorf("expected critical origin-AS mismatch, got %+v", v)
	}
}

func TestDecide_InvalidMaxLength_HighWhenExceeded(t *testing.T) {
	res := &Result{
		State:     "invalid",
		Reason:    "max length exceeded",
		Unmatched: []VRP{{ASN: 65001, MaxLength: 20}},
	}
	v := Decide(res, 24)
	if !v.Detected || v.Severity != model.SeverityHigh || v.Reason != "MaxLength violation" {
		t.Errorf("expected MaxLength violation, got %+v", v)
	}
}

func TestDecide_InvalidMaxLength_GenericWhenNotExceeded(t *testing.T) {
	res := &Result{
		State:     "invalid",
		Reason:    "max length exceeded",
		Unmatched: []VRP{{ASN: 65001, MaxLength: 24}},
	}
	v := Decide(res, 24)
	if !v.Detected || v.Severity != model.SeverityHigh || v.Reason == "MaxLength violation" {
		t.Errorf("expected generic invalid (prefix_len not > max_length), got %+v", v)
	}
}

func TestDecide_InvalidOther_HighGeneric(t *testing.T) {
	v := Decide(&Result{State: "invalid", Reason: "something else"}, 24)
	if !v.Detected || v.Severity != model.SeverityHigh {
		t.Errorf("expected generic high invalid, got %+v", v)
	}
}

func TestDecide_NotFound_LowInformational(t *testing.T) {
	v := Decide(&Result{State: "not-found"}, 24)
	if !v.Detected || v.Severity != model.SeverityLow {
		t.Errorf("expected low informational for not-found, got %+v", v)
	}
}

func TestCombinedScore_MapsAllSeverities(t *testing.T) {
	cases := map[model.Severity]float64{
		model.SeverityCritical: 10,
		model.SeverityHigh:     7,
		model.SeverityMedium:   5,
		model.SeverityLow:      2,
	}
	for sev, want := range cases {
		if got := CombinedScore(sev); got != want {
			t.Errorf("CombinedScore(%v) = %v, want %v", sev, got, want)
		}
	}
}
