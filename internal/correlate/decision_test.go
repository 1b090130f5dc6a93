package correlate

import (
	"testing"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

func heuristicDetection(sev model.Severity, rules ...string) model.Detection {
	triggered := make([]any, len(rules))
	for i, r := range rules {
		triggered[i] = map[string]any{"rule_name": r}
	}
	return model.Detection{
		EventType:        model.EventHeuristic,
		CombinedSeverity: sev,
		Metadata:         map[string]any{"triggered_rules": triggered},
	}
}

func rpkiDetection(status, description string, sev model.Severity) model.Detection {
	return model.Detection{
		EventType:        model.EventRPKI,
		RPKIStatus:       status,
		CombinedSeverity: sev,
		Metadata:         map[string]any{"rpki_description": description},
	}
}

func mlDetection(sev model.Severity) model.Detection {
	return model.Detection{EventType: model.EventMLAnomaly, CombinedSeverity: sev}
}

// Scenario 1: bogon prefix + bogon ASN, both heuristic, one source -> rule 9 fallthrough to SUSPICIOUS/critical.
func TestDecide_Scenario1_BogonFallsThroughToSuspiciousCritical(t *testing.T) {
	group := []model.Detection{
		heuristicDetection(model.SeverityCritical, "bogon_prefix_critical", "bogon_asn_critical"),
	}
	v := Decide(group)
	if v.Classification != "SUSPICIOUS" || v.Severity != model.SeverityCritical {
		t.Errorf("got %+v, want SUSPICIOUS/critical", v)
	}
}

// Scenario 2: RPKI origin mismatch -> rule 1, HIJACK/critical.
func TestDecide_Scenario2_RPKIOriginMismatchIsHijack(t *testing.T) {
	group := []model.Detection{
		rpkiDetection("invalid", "Origin AS mismatch", model.SeverityCritical),
	}
	v := Decide(group)
	if v.Classification != "HIJACK" || v.Severity != model.SeverityCritical {
		t.Errorf("got %+v, want HIJACK/critical", v)
	}
}

// Scenario 3: heuristic path_inflation_high + RPKI maxlength invalid -> rule 2, LEAK/critical.
func TestDecide_Scenario3_MaxLengthWithPathInflationIsLeak(t *testing.T) {
	group := []model.Detection{
		heuristicDetection(model.SeverityHigh, "path_inflation_high"),
		rpkiDetection("invalid", "MaxLength violation", model.SeverityHigh),
	}
	v := Decide(group)
	if v.Classification != "LEAK" || v.Severity != model.SeverityCritical {
		t.Errorf("got %+v, want LEAK/critical", v)
	}
}

// Scenario 4: single low-severity ML detection, no heuristic/RPKI -> rule 10, NORMAL/low.
func TestDecide_Scenario4_QuietTrafficIsNormal(t *testing.T) {
	group := []model.Detection{mlDetection(model.SeverityLow)}
	v := Decide(group)
	if v.Classification != "NORMAL" || v.Severity != model.SeverityLow {
		t.Errorf("got %+v, want NORMAL/low", v)
	}
}

func TestDecide_MaxLengthAlone_IsLeakHigh(t *testing.T) {
	group := []model.Detection{rpkiDetection("invalid", "MaxLength violation", model.SeverityHigh)}
	v := Decide(group)
	if v.Classification != "LEAK" || v.Severity != model.SeverityHigh {
		t.Errorf("got %+v, want LEAK/high", v)
	}
}

func TestDecide_InvalidWithHeuristic_IsInvalidHigh(t *testing.T) {
	group := []model.Detection{
		rpkiDetection("invalid", "something else entirely", model.SeverityHigh),
		heuristicDetection(model.SeverityMedium, "churn_moderate"),
	}
	v := Decide(group)
	if v.Classification != "INVALID" || v.Severity != model.SeverityHigh {
		t.Errorf("got %+v, want INVALID/high", v)
	}
}

func TestDecide_SourceCountThresholds(t *testing.T) {
	cases := []struct {
		name    string
		group   []model.Detection
		wantSev model.Severity
	}{
		{"two sources", []model.Detection{heuristicDetection(model.SeverityLow, "churn_moderate"), mlDetection(model.SeverityLow)}, model.SeverityMedium},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v := Decide(c.group)
			if v.Classification != "SUSPICIOUS" || v.Severity != c.wantSev {
				t.Errorf("got %+v, want SUSPICIOUS/%v", v, c.wantSev)
			}
		})
	}
}

func TestDecide_SingleSourceLowSeverity_IsNormal(t *testing.T) {
	group := []model.Detection{heuristicDetection(model.SeverityLow, "session_resets_medium")}
	v := Decide(group)
	if v.Classification != "NORMAL" {
		t.Errorf("got %+v, want NORMAL", v)
	}
}

func TestDecide_SingleSourceHighSeverity_IsSuspicious(t *testing.T) {
	group := []model.Detection{heuristicDetection(model.SeverityHigh, "flap_high")}
	v := Decide(group)
	if v.Classification != "SUSPICIOUS" || v.Severity != model.SeverityHigh {
		t.Errorf("got %+v, want SUSPICIOUS/high", v)
	}
}

func TestDecide_RuleOrderMutualExclusion(t *testing.T) {
	// Origin mismatch must win even when maxlength and high source_count also hold.
	group := []model.Detection{
		rpkiDetection("invalid", "origin as mismatch and maxlength", model.SeverityCritical),
		heuristicDetection(model.SeverityCritical, "path_inflation_critical"),
		mlDetection(model.SeverityCritical),
	}
	v := Decide(group)
	if v.Classification != "HIJACK" {
		t.Errorf("expected rule 1 (HIJACK) to take priority, got %+v", v)
	}
}
