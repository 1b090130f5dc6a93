package heuristics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/identity"
	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// Engine scans new FeatureRows and, for every row that fires at least one
// rule, upserts one detection.
type Engine struct {
	features   *store.FeatureStore
	detections *store.DetectionStore
	state      *store.StageStateStore
	bogons     *BogonTable
	logger     *zap.Logger
}

func NewEngine(features *store.FeatureStore, detections *store.DetectionStore, state *store.StageStateStore, logger *zap.Logger) *Engine {
	return &Engine{
		features:   features,
		detections: detections,
		state:      state,
		bogons:     NewBogonTable(),
		logger:     logger,
	}
}

// Tick fetches every FeatureRow since the checkpoint, applies the nine
// rules to each, upserts a detection for any row with >=1 hit, and
// advances the checkpoint to the latest window_start processed.
func (e *Engine) Tick(ctx context.Context) error {
	lastTS, err := e.state.LastProcessedTimestamp(ctx)
	if err != nil {
		return err
	}

	rows, err := e.features.FetchSince(ctx, lastTS)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	maxTS := lastTS
	for _, row := range rows {
		hits := ApplyRules(ctx, row, e.bogons, e.features)
		for _, h := range hits {
			metrics.RuleFiredTotal.WithLabelValues(h.RuleName).Inc()
		}

		if len(hits) > 0 {
			if err := e.emit(ctx, row, hits); err != nil {
				e.logger.Error("failed to upsert heuristic detection", zap.Error(err), zap.String("prefix", row.Prefix))
			}
		}

		if row.WindowStart.After(maxTS) {
			maxTS = row.WindowStart
		}
	}

	if err := e.state.AdvanceTimestamp(ctx, maxTS, int64(len(rows))); err != nil {
		return err
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, row model.FeatureRow, hits []Hit) error {
	classification := Classify(hits)
	severity := MaxSeverity(hits)
	score := 0.0
	for _, h := range hits {
		if h.Score > score {
			score = h.Score
		}
	}

	triggered := make([]map[string]any, len(hits))
	for i, h := range hits {
		triggered[i] = map[string]any{
			"rule_name": h.RuleName,
			"severity":  string(h.Severity),
			"score":     h.Score,
			"reason":    h.Reason,
		}
	}

	det := model.Detection{
		Timestamp:        row.WindowStart,
		DetectionID:      identity.HeuristicDetectionID(row.WindowStart, row.Prefix, row.OriginAS),
		Prefix:           row.Prefix,
		PrefixLength:     prefixLengthOf(row.Prefix),
		OriginAS:         row.OriginAS,
		EventType:        model.EventHeuristic,
		MessageType:      "bgp_features_1min",
		RPKIStatus:       "unknown",
		RPKIAnomaly:      false,
		CombinedAnomaly:  severity == model.SeverityMedium || severity == model.SeverityHigh || severity == model.SeverityCritical,
		CombinedScore:    score,
		CombinedSeverity: severity,
		Classification:   classification,
		Metadata: map[string]any{
			"triggered_rules": triggered,
			"raw_features": map[string]any{
				"announcements":    row.Announcements,
				"withdrawals":      row.Withdrawals,
				"total_updates":    row.TotalUpdates,
				"withdrawal_ratio": row.WithdrawalRatio,
				"flap_count":       row.FlapCount,
				"path_length":      row.PathLength,
				"unique_peers":     row.UniquePeers,
				"message_rate":     row.MessageRate,
				"session_resets":   row.SessionResets,
			},
			"heuristic_score": score,
			"detector_type":   "HeuristicDetector",
		},
	}

	if err := e.detections.UpsertDetection(ctx, det); err != nil {
		return err
	}
	metrics.DetectionsEmittedTotal.WithLabelValues("heuristic", classification).Inc()
	return nil
}

// Run polls forever at interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.logger.Error("heuristic scan tick failed", zap.Error(err))
			}
		}
	}
}

func prefixLengthOf(prefix string) int {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] == '/' {
			n := 0
			for _, c := range prefix[i+1:] {
				if c < '0' || c > '9' {
					return 32
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 32
}
