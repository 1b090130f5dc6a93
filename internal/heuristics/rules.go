package heuristics

import (
	"context"
	"fmt"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// Hit is one fired rule, mirroring HeuristicHit.
type Hit struct {
	RuleName string
	Severity model.Severity
	Score    float64
	Reason   string
}

func checkChurn(f model.FeatureRow) *Hit {
	perHour := float64(f.TotalUpdates) * 60
	switch {
	case perHour > churnCritical:
		return &Hit{"churn_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("total_updates=%d (%.0f/hr) exceeds critical threshold %d/hr", f.TotalUpdates, perHour, churnCritical)}
	case perHour > churnSevere:
		return &Hit{"churn_severe", model.SeverityHigh, 0.8,
			fmt.Sprintf("total_updates=%d (%.0f/hr) exceeds severe threshold %d/hr", f.TotalUpdates, perHour, churnSevere)}
	case perHour > churnModerate:
		return &Hit{"churn_moderate", model.SeverityMedium, 0.6,
			fmt.Sprintf("total_updates=%d (%.0f/hr) exceeds moderate threshold %d/hr", f.TotalUpdates, perHour, churnModerate)}
	}
	return nil
}

func checkWithdrawalRatio(f model.FeatureRow) *Hit {
	perHour := float64(f.Withdrawals) * 60
	switch {
	case f.WithdrawalRatio >= withdrawalRatioCritical && perHour > 300:
		return &Hit{"withdrawal_storm_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("withdrawal_ratio=%.2f, withdrawals=%d (%.0f/hr) - withdrawal storm detected", f.WithdrawalRatio, f.Withdrawals, perHour)}
	case f.WithdrawalRatio >= withdrawalRatioHigh && perHour > 600:
		return &Hit{"withdrawal_storm_high", model.SeverityHigh, 0.8,
			fmt.Sprintf("withdrawal_ratio=%.2f, withdrawals=%d (%.0f/hr) - high withdrawal activity", f.WithdrawalRatio, f.Withdrawals, perHour)}
	}
	return nil
}

func checkFlapping(f model.FeatureRow) *Hit {
	perHour := float64(f.FlapCount) * 60
	switch {
	case perHour > flapCritical:
		return &Hit{"flap_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("flap_count=%d (%.0f/hr) exceeds critical threshold %d/hr", f.FlapCount, perHour, flapCritical)}
	case perHour > flapHigh:
		return &Hit{"flap_high", model.SeverityHigh, 0.8,
			fmt.Sprintf("flap_count=%d (%.0f/hr) exceeds high threshold %d/hr", f.FlapCount, perHour, flapHigh)}
	case perHour > flapMedium:
		return &Hit{"flap_medium", model.SeverityMedium, 0.6,
			fmt.Sprintf("flap_count=%d (%.0f/hr) exceeds medium threshold %d/hr", f.FlapCount, perHour, flapMedium)}
	}
	return nil
}

func checkPathLength(f model.FeatureRow) *Hit {
	if f.PathLength == nil {
		return nil
	}
	pl := *f.PathLength
	switch {
	case pl > pathLengthSevere:
		return &Hit{"path_length_severe", model.SeverityHigh, 0.85,
			fmt.Sprintf("path_length=%.1f exceeds severe threshold %.0f", pl, pathLengthSevere)}
	case pl > pathLengthMild:
		return &Hit{"path_length_mild", model.SeverityMedium, 0.6,
			fmt.Sprintf("path_length=%.1f exceeds mild threshold %.0f", pl, pathLengthMild)}
	}
	return nil
}

func checkBogonASN(f model.FeatureRow) *Hit {
	if is, lo, hi := IsBogonASN(f.OriginAS); is {
		return &Hit{"bogon_asn_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("origin_as=%d is in private/reserved range [%d-%d] - should not be in public routing", f.OriginAS, lo, hi)}
	}
	return nil
}

func checkBogonPrefix(f model.FeatureRow, bogons *BogonTable) *Hit {
	if f.Prefix == "" {
		return nil
	}
	if bogons.Overlaps(f.Prefix) {
		return &Hit{"bogon_prefix_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("prefix=%s overlaps a bogon range - reserved/private prefix should not be routed", f.Prefix)}
	}
	return nil
}

func checkPathInflation(ctx context.Context, f model.FeatureRow, features *store.FeatureStore) *Hit {
	if f.PathLength == nil {
		return nil
	}
	baseline, ok, err := features.BaselinePathLength(ctx, f.Prefix, f.OriginAS, f.WindowStart)
	if err != nil || !ok {
		return nil
	}
	delta := *f.PathLength - baseline
	switch {
	case delta > pathInflationCritical:
		return &Hit{"path_inflation_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("path_length=%.1f, baseline=%.1f, delta=%.1f (>10 hop increase) - possible path poisoning", *f.PathLength, baseline, delta)}
	case delta > pathInflationHigh:
		return &Hit{"path_inflation_high", model.SeverityHigh, 0.8,
			fmt.Sprintf("path_length=%.1f, baseline=%.1f, delta=%.1f (>5 hop increase) - suspicious path change", *f.PathLength, baseline, delta)}
	}
	return nil
}

func checkVolumeSpike(f model.FeatureRow) *Hit {
	switch {
	case f.MessageRate > volumeSpikeCritical:
		return &Hit{"volume_spike_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("message_rate=%.0f msg/s exceeds critical threshold %.0f - severe overload", f.MessageRate, volumeSpikeCritical)}
	case f.MessageRate > volumeSpikeHigh:
		return &Hit{"volume_spike_high", model.SeverityHigh, 0.85,
			fmt.Sprintf("message_rate=%.0f msg/s exceeds high threshold %.0f - may stress devices", f.MessageRate, volumeSpikeHigh)}
	}
	return nil
}

func checkSessionResets(f model.FeatureRow) *Hit {
	switch {
	case f.SessionResets > sessionResetsCritical:
		return &Hit{"session_resets_critical", model.SeverityCritical, 0.95,
			fmt.Sprintf("session_resets=%d exceeds critical threshold %d - DoS-level issue", f.SessionResets, sessionResetsCritical)}
	case f.SessionResets >= sessionResetsHigh:
		return &Hit{"session_resets_high", model.SeverityHigh, 0.85,
			fmt.Sprintf("session_resets=%d exceeds high threshold %d - persistent instability", f.SessionResets, sessionResetsHigh)}
	case f.SessionResets >= sessionResetsMedium:
		return &Hit{"session_resets_medium", model.SeverityMedium, 0.6,
			fmt.Sprintf("session_resets=%d exceeds medium threshold %d - investigate", f.SessionResets, sessionResetsMedium)}
	}
	return nil
}

// ApplyRules runs all nine rules against one feature row, in the original's
// fixed order, returning every hit (not just the first).
func ApplyRules(ctx context.Context, f model.FeatureRow, bogons *BogonTable, features *store.FeatureStore) []Hit {
	candidates := []*Hit{
		checkChurn(f),
		checkWithdrawalRatio(f),
		checkFlapping(f),
		checkPathLength(f),
		checkBogonASN(f),
		checkBogonPrefix(f, bogons),
		checkPathInflation(ctx, f, features),
		checkVolumeSpike(f),
		checkSessionResets(f),
	}
	var hits []Hit
	for _, c := range candidates {
		if c != nil {
			hits = append(hits, *c)
		}
	}
	return hits
}

// Classify maps the fired rules onto one classification label: multi_rule
// when more than one rule fired, otherwise a label keyed off the single
// rule's name, matching determine_classification.
func Classify(hits []Hit) string {
	if len(hits) == 0 {
		return "unknown"
	}
	if len(hits) > 1 {
		return "multi_rule"
	}
	switch name := hits[0].RuleName; {
	case contains(name, "churn"):
		return "churn_spike"
	case contains(name, "withdrawal"):
		return "withdrawal_burst"
	case contains(name, "flap"):
		return "route_flap"
	case contains(name, "path_inflation"):
		return "path_inflation"
	case contains(name, "path_length"):
		return "path_anomaly"
	case contains(name, "bogon_asn"):
		return "bogon_asn"
	case contains(name, "bogon_prefix"):
		return "bogon_prefix"
	case contains(name, "volume_spike"):
		return "volume_spike"
	case contains(name, "session_resets"):
		return "session_instability"
	default:
		return "unknown"
	}
}

// MaxSeverity returns the highest severity among hits.
func MaxSeverity(hits []Hit) model.Severity {
	max := model.SeverityLow
	for _, h := range hits {
		max = model.MaxSeverity(max, h.Severity)
	}
	return max
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
