// Package heuristics implements the nine deterministic rules of spec.md
// §4.3, applied to every new feature row since the stage's checkpoint.
package heuristics

// Thresholds, carried over verbatim from the original's THRESHOLDS dict.
// Per-minute feature rows are extrapolated to an hourly rate (x60) before
// comparison, since the thresholds were authored for 5-minute windows and
// then converted (x12) to a 1-minute cadence.
const (
	churnModerate = 1212
	churnSevere   = 6012
	churnCritical = 24000

	flapMedium   = 132
	flapHigh     = 372
	flapCritical = 1200

	pathLengthMild   = 16.0
	pathLengthSevere = 25.0

	withdrawalRatioHigh     = 0.70
	withdrawalRatioCritical = 0.90

	pathInflationHigh     = 5.0
	pathInflationCritical = 10.0

	volumeSpikeHigh     = 100000.0
	volumeSpikeCritical = 500000.0

	sessionResetsMedium   = 6
	sessionResetsHigh     = 11
	sessionResetsCritical = 50
)
