package rpkidetect

import (
	"strings"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

// Verdict is the decision table's output for one validator Result.
type Verdict struct {
	// Detected is false for a "valid" result: no detection is emitted.
	Detected bool
	Severity model.Severity
	Reason   string
}

// combinedScoreForSeverity maps a severity bucket onto combined_score per
// spec.md §4.5: the RPKI detector has no continuous score of its own, so
// it reports a fixed value per bucket instead.
var combinedScoreForSeverity = map[model.Severity]float64{
	model.SeverityCritical: 10,
	model.SeverityHigh:     7,
	model.SeverityMedium:   5,
	model.SeverityLow:      2,
}

func CombinedScore(sev model.Severity) float64 {
	return combinedScoreForSeverity[sev]
}

// Decide implements spec.md §4.5's five-row decision table over the
// validator's state/reason and the prefix length actually announced.
func Decide(res *Result, announcedPrefixLen int) Verdict {
	state := strings.ToLower(res.State)

	switch state {
	case "valid":
		return Verdict{Detected: false}

	case "invalid":
		reason := strings.ToLower(res.Reason)
		switch {
		case strings.Contains(reason, "as") || strings.Contains(reason, "origin"):
			return Verdict{Detected: true, Severity: model.SeverityCritical, Reason: "Origin AS mismatch"}
		case strings.Contains(reason, "length") || strings.Contains(reason, "max"):
			if exceedsMaxLength(res, announcedPrefixLen) {
				return Verdict{Detected: true, Severity: model.SeverityHigh, Reason: "MaxLength violation"}
			}
			return Verdict{Detected: true, Severity: model.SeverityHigh, Reason: "RPKI invalid: " + res.Reason}
		default:
			return Verdict{Detected: true, Severity: model.SeverityHigh, Reason: "RPKI invalid: " + res.Reason}
		}

	case "not-found", "not_found", "unknown", "":
		return Verdict{Detected: true, Severity: model.SeverityLow, Reason: "No covering ROA found"}

	default:
		return Verdict{Detected: true, Severity: model.SeverityLow, Reason: "Unrecognized validator state: " + res.State}
	}
}

// exceedsMaxLength reports whether any VRP the validator matched or saw as
// unmatched has a max_length the announced prefix length exceeds, which is
// the condition distinguishing a genuine MaxLength violation from a
// generic "invalid, reason mentions length" fallback.
func exceedsMaxLength(res *Result, announcedPrefixLen int) bool {
	for _, vrp := range res.Unmatched {
		if announcedPrefixLen > vrp.MaxLength {
			return true
		}
	}
	for _, vrp := range res.Matched {
		if announcedPrefixLen > vrp.MaxLength {
			return true
		}
	}
	return false
}
