package correlate

import (
	"fmt"
	"strings"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

// Verdict is the fused classification and severity for one correlation
// group, plus the human-readable reasoning recorded alongside it.
type Verdict struct {
	Classification string
	Severity       model.Severity
	SourceCount    int
	Reasoning      string
}

// Decide implements spec.md §4.6's ten-row decision matrix, evaluated in
// order with the first match winning.
func Decide(group []model.Detection) Verdict {
	sourceCount := distinctEventTypes(group)
	maxSeverity := maxSeverityOf(group)

	hasOriginMismatch := false
	hasMaxLength := false
	hasInvalid := false
	hasHeuristic := false
	hasPathInflation := false

	for _, d := range group {
		switch d.EventType {
		case model.EventRPKI:
			desc := strings.ToLower(fmt.Sprint(d.Metadata["rpki_description"]))
			if strings.Contains(desc, "origin as mismatch") || strings.Contains(desc, "hijack") {
				hasOriginMismatch = true
			}
			if strings.Contains(desc, "maxlength") || strings.Contains(desc, "leak") {
				hasMaxLength = true
			}
			if strings.EqualFold(d.RPKIStatus, "invalid") {
				hasInvalid = true
			}
		case model.EventHeuristic:
			hasHeuristic = true
			if heuristicHasRule(d, "path_inflation") {
				hasPathInflation = true
			}
		}
	}

	switch {
	case hasOriginMismatch:
		return Verdict{"HIJACK", model.SeverityCritical, sourceCount, "RPKI origin-AS mismatch"}
	case hasMaxLength && hasPathInflation:
		return Verdict{"LEAK", model.SeverityCritical, sourceCount, "RPKI maxlength violation combined with path inflation"}
	case hasMaxLength:
		return Verdict{"LEAK", model.SeverityHigh, sourceCount, "RPKI maxlength violation"}
	case hasInvalid && hasHeuristic:
		return Verdict{"INVALID", model.SeverityHigh, sourceCount, "RPKI invalid corroborated by heuristic detection"}
	case hasInvalid:
		return Verdict{"INVALID", model.SeverityHigh, sourceCount, "RPKI invalid"}
	case sourceCount >= 4:
		return Verdict{"SUSPICIOUS", model.SeverityCritical, sourceCount, "four or more independent detectors fired"}
	case sourceCount == 3:
		return Verdict{"SUSPICIOUS", model.SeverityHigh, sourceCount, "three independent detectors fired"}
	case sourceCount == 2:
		return Verdict{"SUSPICIOUS", model.SeverityMedium, sourceCount, "two independent detectors fired"}
	case sourceCount == 1 && (maxSeverity == model.SeverityHigh || maxSeverity == model.SeverityCritical):
		return Verdict{"SUSPICIOUS", maxSeverity, sourceCount, "single detector fired at high or critical severity"}
	default:
		return Verdict{"NORMAL", maxSeverity, sourceCount, "no corroborating signal"}
	}
}

func distinctEventTypes(group []model.Detection) int {
	seen := map[model.EventType]bool{}
	for _, d := range group {
		seen[d.EventType] = true
	}
	return len(seen)
}

func maxSeverityOf(group []model.Detection) model.Severity {
	max := model.SeverityLow
	for _, d := range group {
		max = model.MaxSeverity(max, d.CombinedSeverity)
	}
	return max
}

// heuristicHasRule reports whether a heuristic detection's triggered_rules
// metadata lists a rule whose name contains substr. Metadata round-tripped
// through JSON (as it is once read back from the detections table) decodes
// nested arrays as []interface{} of map[string]interface{}, rather than the
// concrete []map[string]any a freshly built Detection carries, so both
// shapes are accepted.
func heuristicHasRule(d model.Detection, substr string) bool {
	raw, ok := d.Metadata["triggered_rules"]
	if !ok {
		return false
	}

	var entries []any
	switch v := raw.(type) {
	case []map[string]any:
		for _, r := range v {
			entries = append(entries, r)
		}
	case []any:
		entries = v
	default:
		return false
	}

	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["rule_name"].(string); ok && strings.Contains(name, substr) {
			return true
		}
	}
	return false
}
