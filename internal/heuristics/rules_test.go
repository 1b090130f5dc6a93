package heuristics

import (
	"testing"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

func TestCheckChurn_Boundary(t *testing.T) {
	if hit := checkChurn(model.FeatureRow{TotalUpdates: 20}); hit != nil {
		t.Errorf("total_updates=20 (1200/hr) must not trigger, got %+v", hit)
	}
	if hit := checkChurn(model.FeatureRow{TotalUpdates: 21}); hit == nil {
		t.Fatal("total_updates=21 (1260/hr) must trigger medium churn")
	} else if hit.Severity != model.SeverityMedium {
		t.Errorf("expected medium severity, got %v", hit.Severity)
	}
}

func TestCheckWithdrawalRatio_RequiresBothRatioAndVolume(t *testing.T) {
	if hit := checkWithdrawalRatio(model.FeatureRow{WithdrawalRatio: 0.95, Withdrawals: 4}); hit != nil {
		t.Errorf("ratio=0.95, withdrawals=4 (240/hr) must not trigger, got %+v", hit)
	}
	hit := checkWithdrawalRatio(model.FeatureRow{WithdrawalRatio: 0.95, Withdrawals: 6})
	if hit == nil {
		t.Fatal("ratio=0.95, withdrawals=6 (360/hr) must trigger critical withdrawal storm")
	}
	if hit.Severity != model.SeverityCritical {
		t.Errorf("expected critical severity, got %v", hit.Severity)
	}
}

func TestCheckBogonASN_Boundaries(t *testing.T) {
	cases := []struct {
		asn     int64
		trigger bool
	}{
		{64511, false},
		{64512, true},
		{65534, true},
		{65535, false},
	}
	for _, c := range cases {
		hit := checkBogonASN(model.FeatureRow{OriginAS: c.asn})
		got := hit != nil
		if got != c.trigger {
			t.Errorf("origin_as=%d: got trigger=%v, want %v", c.asn, got, c.trigger)
		}
	}
}

func TestCheckPathInflation_NoPathLengthNeverTriggers(t *testing.T) {
	row := model.FeatureRow{Prefix: "10.1.0.0/16", OriginAS: 65001}
	// No PathLength means the rule must short-circuit before touching the
	// feature store, so passing a nil store here is safe.
	hit := checkPathInflation(nil, row, nil)
	if hit != nil {
		t.Errorf("expected no trigger without a path_length, got %+v", hit)
	}
}

func TestClassify_MultiRule(t *testing.T) {
	hits := []Hit{
		{RuleName: "churn_critical", Severity: model.SeverityCritical},
		{RuleName: "bogon_asn_critical", Severity: model.SeverityCritical},
	}
	if got := Classify(hits); got != "multi_rule" {
		t.Errorf("expected multi_rule, got %q", got)
	}
}

func TestClassify_SingleRule(t *testing.T) {
	hits := []Hit{{RuleName: "bogon_asn_critical", Severity: model.SeverityCritical}}
	if got := Classify(hits); got != "bogon_asn" {
		t.Errorf("expected bogon_asn, got %q", got)
	}
}

func TestMaxSeverity_PicksHighest(t *testing.T) {
	hits := []Hit{
		{Severity: model.SeverityMedium},
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityLow},
	}
	if got := MaxSeverity(hits); got != model.SeverityCritical {
		t.Errorf("expected critical, got %v", got)
	}
}
