// Package metrics holds the Prometheus vectors shared across the six
// pipeline workers. Each worker registers only the vectors it uses, but
// definitions live together as in the teacher's internal/metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UpdatesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_updates_ingested_total",
			Help: "UPDATE messages processed by the collector.",
		},
		[]string{"action"},
	)

	WSReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_ws_reconnects_total",
			Help: "RIS-Live WebSocket reconnect attempts.",
		},
		[]string{"reason"},
	)

	FeatureRowsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_feature_rows_inserted_total",
			Help: "FeatureRows inserted by the aggregator per tick.",
		},
		[]string{},
	)

	DetectionsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_detections_emitted_total",
			Help: "Detections emitted by detector and classification.",
		},
		[]string{"detector", "classification"},
	)

	RuleFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_heuristic_rule_fired_total",
			Help: "Heuristic rule firings by rule name.",
		},
		[]string{"rule"},
	)

	MLScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bgpensemble_ml_combined_score",
			Help:    "Distribution of ML ensemble combined scores.",
			Buckets: []float64{-2, -1, 0, 1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{},
	)

	RPKIValidatorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_rpki_validator_calls_total",
			Help: "RPKI validator HTTP calls by outcome.",
		},
		[]string{"outcome"},
	)

	CorrelationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpensemble_correlation_decisions_total",
			Help: "Correlator decisions by classification.",
		},
		[]string{"classification"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bgpensemble_db_write_duration_seconds",
			Help:    "DB write latency by stage and operation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"stage", "op"},
	)

	CheckpointLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpensemble_checkpoint_lag_seconds",
			Help: "Seconds between a stage's checkpoint and wall clock.",
		},
		[]string{"stage"},
	)
)

// Register registers the vectors relevant to one worker. Workers pass only
// the subset they use so unrelated metrics don't show up on every binary.
func Register(vecs ...prometheus.Collector) {
	for _, v := range vecs {
		prometheus.MustRegister(v)
	}
}
