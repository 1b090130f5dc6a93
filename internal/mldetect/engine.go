// Package mldetect implements the ML detection stage: a two-model
// ensemble (isolation-forest-like point anomaly detector + LSTM-like
// sequence reconstruction network) scored against every new feature row,
// z-normalized against fixed baseline statistics and combined per
// spec.md §4.4.
package mldetect

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/identity"
	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

// maxSequenceGroups caps how many (prefix, origin_as) groups get a real
// sequence score per batch; the rest are filled with the mean of the
// scored groups. Pure cost control, not a correctness feature.
const maxSequenceGroups = 5000

// samplingSeed makes the group subsample reproducible across replays of
// the same batch, per spec.md §4.4.
const samplingSeed = 42

type groupKey struct {
	prefix   string
	originAS int64
}

// Engine scores every new FeatureRow with the loaded artifacts and
// upserts one detection per row.
type Engine struct {
	features   *store.FeatureStore
	detections *store.DetectionStore
	state      *store.StageStateStore
	artifacts  *Artifacts
	seqLength  int
	ensemble   string // "avg" or "max"
	threshold  float64
	logger     *zap.Logger
	clock      func() time.Time
}

func NewEngine(features *store.FeatureStore, detections *store.DetectionStore, state *store.StageStateStore,
	artifacts *Artifacts, seqLength int, ensemble string, threshold float64, logger *zap.Logger) *Engine {
	return &Engine{
		features:   features,
		detections: detections,
		state:      state,
		artifacts:  artifacts,
		seqLength:  seqLength,
		ensemble:   ensemble,
		threshold:  threshold,
		logger:     logger,
		clock:      time.Now,
	}
}

// Tick fetches every FeatureRow since the checkpoint, scores the whole
// batch, writes a detection per row, and advances the checkpoint to the
// latest window_start processed.
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

	isoScores := e.computeIsoScores(rows)
	lstmScores := e.computeSequenceScores(rows)

	maxTS := lastTS
	for i, row := range rows {
		zIso := -(isoScores[i] - e.artifacts.IsoBaseline.Mean) / safeDiv(e.artifacts.IsoBaseline.Std)
		zLSTM := (lstmScores[i] - e.artifacts.LSTMBaseline.Mean) / safeDiv(e.artifacts.LSTMBaseline.Std)

		var combined float64
		if e.ensemble == "max" {
			combined = math64Max(zIso, zLSTM)
		} else {
			combined = (zIso + zLSTM) / 2.0
		}

		anomaly := combined >= e.threshold
		severity := severityBucket(combined)

		det := model.Detection{
			Timestamp:        row.WindowStart,
			DetectionID:      identity.MLDetectionID(row.WindowStart, row.Prefix, row.OriginAS),
			Prefix:           row.Prefix,
			PrefixLength:     prefixLength(row.Prefix),
			OriginAS:         row.OriginAS,
			EventType:        model.EventMLAnomaly,
			MessageType:      "bgp_features_1min",
			RPKIStatus:       "unknown",
			RPKIAnomaly:      false,
			CombinedAnomaly:  anomaly,
			CombinedScore:    combined,
			CombinedSeverity: severity,
			Classification:   "lstm_if_ensemble",
			Metadata: map[string]any{
				"iso_score":       isoScores[i],
				"lstm_score":      lstmScores[i],
				"z_iso":           zIso,
				"z_lstm":          zLSTM,
				"ensemble_method": e.ensemble,
				"model_version":   e.artifacts.ModelVersion,
				"threshold":       e.threshold,
			},
		}
		if err := e.detections.UpsertDetection(ctx, det); err != nil {
			e.logger.Error("failed to upsert ml detection", zap.Error(err), zap.String("prefix", row.Prefix))
			continue
		}

		metrics.MLScoreHistogram.WithLabelValues().Observe(combined)
		metrics.DetectionsEmittedTotal.WithLabelValues("ml", det.Classification).Inc()

		if row.WindowStart.After(maxTS) {
			maxTS = row.WindowStart
		}
	}

	if err := e.state.AdvanceTimestamp(ctx, maxTS, int64(len(rows))); err != nil {
		return err
	}
	metrics.CheckpointLagSeconds.WithLabelValues(string(model.StageML)).Set(e.clock().UTC().Sub(maxTS).Seconds())
	return nil
}

func (e *Engine) computeIsoScores(rows []model.FeatureRow) []float64 {
	scores := make([]float64, len(rows))
	for i, row := range rows {
		scaled := e.artifacts.FeatureScaler.Transform(row.FeatureVector())
		scores[i] = e.artifacts.Forest.DecisionFunction(scaled)
	}
	return scores
}

// computeSequenceScores groups rows by (prefix, origin_as), sorts each
// group by window_start, and for every row builds the length-L window
// ending at that row (left-padded with zeros if the group is shorter),
// scoring it through the sequence model. Groups beyond maxSequenceGroups
// are sampled deterministically (seed 42); the rest get the mean of the
// groups actually scored.
func (e *Engine) computeSequenceScores(rows []model.FeatureRow) []float64 {
	scores := make([]float64, len(rows))

	groups := map[groupKey][]int{}
	for i, row := range rows {
		k := groupKey{prefix: row.Prefix, originAS: row.OriginAS}
		groups[k] = append(groups[k], i)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].prefix != keys[b].prefix {
			return keys[a].prefix < keys[b].prefix
		}
		return keys[a].originAS < keys[b].originAS
	})

	toScore := keys
	if len(keys) > maxSequenceGroups {
		rng := rand.New(rand.NewSource(samplingSeed))
		shuffled := append([]groupKey(nil), keys...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		toScore = shuffled[:maxSequenceGroups]
		e.logger.Warn("sampling sequence groups for this batch",
			zap.Int("total_groups", len(keys)), zap.Int("sampled", maxSequenceGroups))
	}

	scored := map[groupKey]bool{}
	for _, k := range toScore {
		scored[k] = true
	}

	var sum float64
	var count int
	for _, k := range toScore {
		idxs := groups[k]
		sort.Slice(idxs, func(a, b int) bool { return rows[idxs[a]].WindowStart.Before(rows[idxs[b]].WindowStart) })

		scaler := *e.artifacts.SequenceScaler
		var scaledWindow [][9]float64
		for _, idx := range idxs {
			scaledWindow = append(scaledWindow, scaler.Transform(rows[idx].FeatureVector()))
		}

		for pos, idx := range idxs {
			window := sequenceEndingAt(scaledWindow, pos, e.seqLength)
			predicted := e.artifacts.Sequence.Reconstruct(window)
			mse := mseLastStep(window[len(window)-1], predicted)
			scores[idx] = mse
			sum += mse
			count++
		}
	}

	if count == 0 {
		return scores
	}
	mean := sum / float64(count)
	for k, idxs := range groups {
		if scored[k] {
			continue
		}
		for _, idx := range idxs {
			scores[idx] = mean
		}
	}
	return scores
}

// sequenceEndingAt builds the length-L window of scaled feature vectors
// ending at position pos (inclusive), left-padding with zeros if the
// group doesn't have L entries yet.
func sequenceEndingAt(group [][9]float64, pos, seqLen int) [][9]float64 {
	start := pos - seqLen + 1
	if start < 0 {
		start = 0
	}
	slice := group[start : pos+1]

	if len(slice) == seqLen {
		return slice
	}
	padded := make([][9]float64, seqLen)
	offset := seqLen - len(slice)
	copy(padded[offset:], slice)
	return padded
}

func severityBucket(combined float64) model.Severity {
	switch {
	case combined < 3.0:
		return model.SeverityLow
	case combined < 4.0:
		return model.SeverityMedium
	case combined < 5.0:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

func safeDiv(std float64) float64 {
	if std == 0 {
		return 1
	}
	return std
}

func math64Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func prefixLength(prefix string) int {
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
				e.logger.Error("ml inference tick failed", zap.Error(err))
			}
		}
	}
}
