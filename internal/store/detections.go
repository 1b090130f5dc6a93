package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

type DetectionStore struct {
	pool *pgxpool.Pool
}

func NewDetectionStore(pool *pgxpool.Pool) *DetectionStore {
	return &DetectionStore{pool: pool}
}

// UpsertDetection writes a detector's finding, or refreshes the score,
// severity, anomaly flag and metadata of an existing row sharing the same
// detection_id, mirroring insert_detection's ON CONFLICT clause. Used by
// the heuristic and ML detectors; the RPKI detector uses InsertRPKIDetection.
func (s *DetectionStore) UpsertDetection(ctx context.Context, d model.Detection) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO public.hybrid_anomaly_detections (
			timestamp, detection_id, prefix, prefix_length, peer_ip, peer_asn,
			origin_as, as_path, next_hop, event_type, message_type,
			rpki_status, rpki_anomaly, combined_anomaly, combined_score,
			combined_severity, classification, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (detection_id) DO UPDATE SET
			combined_score    = EXCLUDED.combined_score,
			combined_severity = EXCLUDED.combined_severity,
			combined_anomaly  = EXCLUDED.combined_anomaly,
			rpki_status       = EXCLUDED.rpki_status,
			rpki_anomaly      = EXCLUDED.rpki_anomaly,
			metadata          = EXCLUDED.metadata,
			timestamp         = EXCLUDED.timestamp`,
		d.Timestamp, d.DetectionID, d.Prefix, d.PrefixLength, d.PeerIP, d.PeerASN,
		d.OriginAS, d.ASPath, d.NextHop, string(d.EventType), d.MessageType,
		d.RPKIStatus, d.RPKIAnomaly, d.CombinedAnomaly, d.CombinedScore,
		string(d.CombinedSeverity), d.Classification, meta,
	)
	return err
}

// InsertRPKIDetection writes an RPKI verdict once and never touches it
// again: unlike the heuristic and ML detectors, the RPKI detector's
// finding for a given (window, prefix, origin_as) cannot change on replay,
// so a conflicting detection_id is a silent no-op rather than a refresh.
func (s *DetectionStore) InsertRPKIDetection(ctx context.Context, d model.Detection) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO public.hybrid_anomaly_detections (
			timestamp, detection_id, prefix, prefix_length, peer_ip, peer_asn,
			origin_as, as_path, next_hop, event_type, message_type,
			rpki_status, rpki_anomaly, combined_anomaly, combined_score,
			combined_severity, classification, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (detection_id) DO NOTHING`,
		d.Timestamp, d.DetectionID, d.Prefix, d.PrefixLength, d.PeerIP, d.PeerASN,
		d.OriginAS, d.ASPath, d.NextHop, string(d.EventType), d.MessageType,
		d.RPKIStatus, d.RPKIAnomaly, d.CombinedAnomaly, d.CombinedScore,
		string(d.CombinedSeverity), d.Classification, meta,
	)
	return err
}

// FetchSinceID returns detections with id > lastID, ascending, the unit of
// work the correlator checkpoints against.
func (s *DetectionStore) FetchSinceID(ctx context.Context, lastID int64) ([]model.Detection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, detection_id, prefix, prefix_length, peer_ip, peer_asn,
		       origin_as, as_path, next_hop, event_type, message_type, rpki_status,
		       rpki_anomaly, combined_anomaly, combined_score, combined_severity,
		       classification, metadata
		FROM public.hybrid_anomaly_detections
		WHERE id > $1
		ORDER BY id`, lastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Detection
	for rows.Next() {
		var d model.Detection
		var meta []byte
		var eventType, severity string
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.DetectionID, &d.Prefix, &d.PrefixLength,
			&d.PeerIP, &d.PeerASN, &d.OriginAS, &d.ASPath, &d.NextHop, &eventType,
			&d.MessageType, &d.RPKIStatus, &d.RPKIAnomaly, &d.CombinedAnomaly,
			&d.CombinedScore, &severity, &d.Classification, &meta); err != nil {
			return nil, err
		}
		d.EventType = model.EventType(eventType)
		d.CombinedSeverity = model.Severity(severity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &d.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateCorrelation applies the correlator's verdict for a group of
// detections sharing (prefix, origin_as, floor_60s(timestamp)) to one of
// its detections: classification and combined_severity are set to the
// verdict's (which may be lower than the row's previous severity), but
// combined_anomaly is never downgraded once another stage has set it true.
func (s *DetectionStore) UpdateCorrelation(ctx context.Context, detectionID, classification string, severity model.Severity, anomaly bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE public.hybrid_anomaly_detections
		SET classification    = $2,
		    combined_severity = $3,
		    combined_anomaly  = combined_anomaly OR $4
		WHERE detection_id = $1`,
		detectionID, classification, string(severity), anomaly,
	)
	return err
}

// CorrelationUpdate is one row of a correlator batch write: the verdict
// for a single detection_id within a correlated group.
type CorrelationUpdate struct {
	DetectionID    string
	Classification string
	Severity       model.Severity
	Anomaly        bool
	GroupMetadata  map[string]any
}

// UpdateCorrelationBatch applies every update in one transaction via
// pgx.Batch, so a correlation pass over many groups either lands as a
// whole or rolls back entirely rather than leaving some detections
// correlated and others not.
func (s *DetectionStore) UpdateCorrelationBatch(ctx context.Context, updates []CorrelationUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range updates {
		groupMeta, err := json.Marshal(u.GroupMetadata)
		if err != nil {
			return fmt.Errorf("store: marshaling correlation metadata for %s: %w", u.DetectionID, err)
		}
		batch.Queue(`
			UPDATE public.hybrid_anomaly_detections
			SET classification    = $2,
			    combined_severity = $3,
			    combined_anomaly  = combined_anomaly OR $4,
			    metadata          = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{correlation}', $5::jsonb, true)
			WHERE detection_id = $1`,
			u.DetectionID, u.Classification, string(u.Severity), u.Anomaly, groupMeta,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range updates {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("store: correlation batch exec: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
