// Package correlate implements the final pipeline stage: fusing detections
// emitted independently by the heuristic, ML and RPKI detectors into one
// classified incident per (prefix, origin_as, coarse time window).
package correlate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

type groupKey struct {
	prefix   string
	originAS int64
	bucket   int64 // unix seconds, floored to 60s
}

// Engine polls for newly written detections, groups them by (prefix,
// origin_as, floor_60s(timestamp)), and back-annotates every member of
// each group with one batched write per tick.
type Engine struct {
	detections *store.DetectionStore
	state      *store.StageStateStore
	clock      func() time.Time
	logger     *zap.Logger
}

func NewEngine(detections *store.DetectionStore, state *store.StageStateStore, logger *zap.Logger) *Engine {
	return &Engine{detections: detections, state: state, clock: time.Now, logger: logger}
}

// Tick fetches detections since the checkpoint, groups and decides, issues
// one batched update, and — only on success — advances the checkpoint to
// the maximum id in the batch. A failed batch leaves the checkpoint
// unchanged so the same id range is reprocessed on the next poll.
func (e *Engine) Tick(ctx context.Context) error {
	lastID, err := e.state.LastProcessedID(ctx)
	if err != nil {
		return err
	}

	rows, err := e.detections.FetchSinceID(ctx, lastID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	groups := make(map[groupKey][]model.Detection)
	var order []groupKey
	maxID := lastID
	for _, d := range rows {
		k := groupKey{prefix: d.Prefix, originAS: d.OriginAS, bucket: d.Timestamp.Unix() / 60 * 60}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
		if d.ID > maxID {
			maxID = d.ID
		}
	}

	var updates []store.CorrelationUpdate
	for _, k := range order {
		members := groups[k]
		verdict := Decide(members)
		metrics.CorrelationDecisionsTotal.WithLabelValues(verdict.Classification).Inc()

		groupMeta := map[string]any{
			"source_count":  verdict.SourceCount,
			"reasoning":     verdict.Reasoning,
			"time_window":   time.Unix(k.bucket, 0).UTC().Format(time.RFC3339),
			"correlated_at": e.clock().UTC().Format(time.RFC3339),
		}
		anomaly := verdict.Classification != "NORMAL"
		for _, d := range members {
			updates = append(updates, store.CorrelationUpdate{
				DetectionID:    d.DetectionID,
				Classification: verdict.Classification,
				Severity:       verdict.Severity,
				Anomaly:        anomaly,
				GroupMetadata:  groupMeta,
			})
		}
	}

	if err := e.detections.UpdateCorrelationBatch(ctx, updates); err != nil {
		return err
	}

	return e.state.AdvanceID(ctx, maxID, int64(len(rows)))
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
				e.logger.Error("correlation tick failed", zap.Error(err))
			}
		}
	}
}
