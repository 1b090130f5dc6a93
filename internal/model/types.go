// Package model holds the shared row types of the BGP anomaly pipeline's
// data model (spec.md §3), plus the supplemented Detection columns
// carried over from the original hybrid_anomaly_detections schema.
package model

import "time"

type Peer struct {
	HashID       string
	RouterHashID string
	PeerAddr     string
	PeerASN      int64
	IsIPv4       bool
	State        string
}

type BaseAttrs struct {
	HashID        string
	PeerHashID    string
	Origin        string
	ASPath        []int64
	ASPathCount   int
	OriginAS      int64
	NextHop       string
	NextHopIsIPv4 bool
	Timestamp     time.Time
}

type Update struct {
	HashID              string
	BaseAttrHashID      string
	PeerHashID          string
	IsIPv4              bool
	OriginAS            int64
	Prefix              string
	PrefixLen           int
	Timestamp           time.Time
	FirstAddedTimestamp time.Time
	IsWithdrawn         bool
	PathID              int
}

type FeatureRow struct {
	ID               int64
	WindowStart      time.Time
	WindowEnd        time.Time
	Prefix           string
	OriginAS         int64
	Announcements    int
	Withdrawals      int
	TotalUpdates     int
	WithdrawalRatio  float64
	FlapCount        int
	PathLength       *float64
	UniquePeers      int
	MessageRate      float64
	SessionResets    int
}

// FeatureVector returns the nine features of §4.2 in the fixed order the
// ML detector's scalers and trees were trained against.
func (f FeatureRow) FeatureVector() [9]float64 {
	pathLength := 0.0
	if f.PathLength != nil {
		pathLength = *f.PathLength
	}
	return [9]float64{
		float64(f.Announcements),
		float64(f.Withdrawals),
		float64(f.TotalUpdates),
		f.WithdrawalRatio,
		float64(f.FlapCount),
		pathLength,
		float64(f.UniquePeers),
		f.MessageRate,
		float64(f.SessionResets),
	}
}

type EventType string

const (
	EventHeuristic EventType = "heuristic"
	EventMLAnomaly EventType = "ml_anomaly"
	EventRPKI      EventType = "rpki"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// MaxSeverity returns the higher of two severities under the total order
// low < medium < high < critical.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// Detection is the fused row written by detectors and updated in place by
// the correlator. Fields beyond event_type/combined_score/combined_severity/
// rpki_status/classification/metadata are the SPEC_FULL.md §3 supplement
// carried over from hybrid_anomaly_detections.
type Detection struct {
	ID               int64
	Timestamp        time.Time
	DetectionID      string
	Prefix           string
	PrefixLength     int
	PeerIP           *string
	PeerASN          *int64
	OriginAS         int64
	ASPath           []int64
	NextHop          *string
	EventType        EventType
	MessageType      string
	RPKIStatus       string
	RPKIAnomaly      bool
	CombinedAnomaly  bool
	CombinedScore    float64
	CombinedSeverity Severity
	Classification   string
	Metadata         map[string]any
}

// StageName identifies the five private checkpoint rows (the collector
// keeps none).
type StageName string

const (
	StageAggregator StageName = "feature_aggregator_state"
	StageHeuristic  StageName = "heuristic_inference_state"
	StageML         StageName = "ml_inference_state"
	StageRPKI       StageName = "rpki_inference_state"
	StageCorrelator StageName = "correlation_engine_state"
)
