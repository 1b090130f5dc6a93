// Package aggregator implements the feature aggregation stage: every poll
// tick it computes the nine per-minute features (spec.md §4.2) for all
// updates landed since its last checkpoint, and advances that checkpoint.
package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// initialLookback bounds how far back the very first run reaches, mirroring
// feature_aggregator.py's INITIAL_LOOKBACK of 10 minutes.
const initialLookback = 10 * time.Minute

type Engine struct {
	features *store.FeatureStore
	state    *store.StageStateStore
	logger   *zap.Logger
	clock    func() time.Time
}

func NewEngine(features *store.FeatureStore, state *store.StageStateStore, logger *zap.Logger) *Engine {
	return &Engine{features: features, state: state, logger: logger, clock: time.Now}
}

// Tick advances the checkpoint by exactly one half-open window
// (fromTS, toTS], where toTS never exceeds "now floored to the minute
// boundary" so a window isn't aggregated until it has fully elapsed.
func (e *Engine) Tick(ctx context.Context) error {
	fromTS, err := e.state.LastProcessedTimestamp(ctx)
	if err != nil {
		return err
	}

	fromTS, toTS, ok := nextWindow(fromTS, e.clock().UTC())
	if !ok {
		return nil
	}

	inserted, err := e.features.AggregateWindow(ctx, fromTS, toTS)
	if err != nil {
		return err
	}

	if err := e.state.AdvanceTimestamp(ctx, toTS, inserted); err != nil {
		return err
	}

	metrics.FeatureRowsInsertedTotal.WithLabelValues().Add(float64(inserted))
	metrics.CheckpointLagSeconds.WithLabelValues(string(model.StageAggregator)).Set(e.clock().UTC().Sub(toTS).Seconds())

	if inserted > 0 {
		e.logger.Info("aggregated feature window", zap.Time("from", fromTS), zap.Time("to", toTS), zap.Int64("rows", inserted))
	}
	return nil
}

// nextWindow computes the half-open (fromTS, toTS] window a tick should
// aggregate, given the stage's last checkpoint. A zero lastTS (first run)
// falls back to initialLookback before now. No window is returned once
// toTS would not be after fromTS, so a tick landing inside the same minute
// as the last one is a no-op.
func nextWindow(lastTS, now time.Time) (from, to time.Time, ok bool) {
	from = lastTS
	if from.IsZero() {
		from = now.Add(-initialLookback)
	}
	to = now.Truncate(time.Minute)
	if !to.After(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
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
				e.logger.Error("aggregation tick failed", zap.Error(err))
			}
		}
	}
}
