package rpkidetect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/identity"
	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// Engine validates every new FeatureRow's (prefix, origin_as) against the
// RPKI validator and inserts one immutable detection per non-valid
// outcome.
type Engine struct {
	features   *store.FeatureStore
	detections *store.DetectionStore
	state      *store.StageStateStore
	validator  *Validator
	logger     *zap.Logger
}

func NewEngine(features *store.FeatureStore, detections *store.DetectionStore, state *store.StageStateStore, validator *Validator, logger *zap.Logger) *Engine {
	return &Engine{
		features:   features,
		detections: detections,
		state:      state,
		validator:  validator,
		logger:     logger,
	}
}

// Tick validates every FeatureRow since the checkpoint. A validator
// failure for one row (exhausted retries, malformed prefix) is logged and
// skipped rather than aborting the whole batch, matching the per-row
// compute error policy the heuristic and ML detectors follow.
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
		res, err := e.validator.Validate(ctx, row.OriginAS, row.Prefix)
		if err != nil {
			metrics.RPKIValidatorCallsTotal.WithLabelValues("error").Inc()
			e.logger.Warn("rpki validator call failed, skipping row",
				zap.String("prefix", row.Prefix), zap.Int64("origin_as", row.OriginAS), zap.Error(err))
		} else {
			metrics.RPKIValidatorCallsTotal.WithLabelValues("ok").Inc()
			if err := e.emit(ctx, row, res); err != nil {
				e.logger.Error("failed to insert rpki detection", zap.Error(err), zap.String("prefix", row.Prefix))
			}
		}

		if row.WindowStart.After(maxTS) {
			maxTS = row.WindowStart
		}
	}

	return e.state.AdvanceTimestamp(ctx, maxTS, int64(len(rows)))
}

func (e *Engine) emit(ctx context.Context, row model.FeatureRow, res *Result) error {
	verdict := Decide(res, prefixLengthOf(row.Prefix))
	if !verdict.Detected {
		return nil
	}

	det := model.Detection{
		Timestamp:        row.WindowStart,
		DetectionID:      identity.RPKIDetectionID(row.WindowStart, row.Prefix, row.OriginAS),
		Prefix:           row.Prefix,
		PrefixLength:     prefixLengthOf(row.Prefix),
		OriginAS:         row.OriginAS,
		EventType:        model.EventRPKI,
		MessageType:      "bgp_features_1min",
		RPKIStatus:       res.State,
		RPKIAnomaly:      true,
		CombinedAnomaly:  true,
		CombinedScore:    CombinedScore(verdict.Severity),
		CombinedSeverity: verdict.Severity,
		Classification:   "rpki_invalid",
		Metadata: map[string]any{
			"rpki_state":       res.State,
			"rpki_reason":      res.Reason,
			"rpki_description": verdict.Reason,
			"matched_vrps":     res.Matched,
			"unmatched_vrps":   res.Unmatched,
			"detector_type":    "RPKIValidatorDetector",
		},
	}

	if err := e.detections.InsertRPKIDetection(ctx, det); err != nil {
		return err
	}
	metrics.DetectionsEmittedTotal.WithLabelValues("rpki", det.Classification).Inc()
	return nil
}

func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.logger.Error("rpki validation tick failed", zap.Error(err))
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
