package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

type FeatureStore struct {
	pool *pgxpool.Pool
}

func NewFeatureStore(pool *pgxpool.Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// AggregateWindow computes and inserts the nine §4.2 features for every
// (floor_to_1min(timestamp), prefix, origin_as) triple with an Update
// landing in the half-open interval (fromTS, toTS]. Conflicts on the
// (window_start, prefix, origin_as) uniqueness constraint are ignored, so
// re-running a window is idempotent. Returns the number of rows inserted.
func (s *FeatureStore) AggregateWindow(ctx context.Context, fromTS, toTS time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO public.bgp_features_1min (
			window_start, window_end, prefix, origin_as,
			announcements, withdrawals, total_updates, withdrawal_ratio,
			flap_count, path_length, unique_peers, message_rate, session_resets
		)
		SELECT
			public.floor_to_1min(r.timestamp) AS window_start,
			public.floor_to_1min(r.timestamp) + interval '1 minute' AS window_end,
			r.prefix,
			r.origin_as,
			COUNT(*) FILTER (WHERE r.iswithdrawn = false)::integer,
			COUNT(*) FILTER (WHERE r.iswithdrawn = true)::integer,
			COUNT(*)::integer,
			(COUNT(*) FILTER (WHERE r.iswithdrawn = true)::double precision /
			 GREATEST(COUNT(*) FILTER (WHERE r.iswithdrawn = false), 1))::double precision,
			(COUNT(*) FILTER (WHERE r.iswithdrawn = true) + COUNT(*) FILTER (WHERE r.iswithdrawn = false))::integer / 2,
			COALESCE(AVG(ba.as_path_count), 2.0 + (MOD(r.origin_as, 3))::double precision)::double precision,
			COUNT(DISTINCT r.peer_hash_id)::integer,
			(COUNT(*)::double precision / 60.0)::double precision,
			0::integer
		FROM public.ip_rib r
		LEFT JOIN public.base_attrs ba ON r.base_attr_hash_id = ba.hash_id
		WHERE r.timestamp > $1 AND r.timestamp <= $2
		GROUP BY public.floor_to_1min(r.timestamp), r.prefix, r.origin_as
		ON CONFLICT (window_start, prefix, origin_as) DO NOTHING`,
		fromTS, toTS,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FetchSince returns FeatureRows with window_start > lastTS, ascending, for
// a detector to score. Detectors process windows strictly in ascending
// order per spec.md §5.
func (s *FeatureStore) FetchSince(ctx context.Context, lastTS time.Time) ([]model.FeatureRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, window_start, window_end, prefix, origin_as, announcements, withdrawals,
		       total_updates, withdrawal_ratio, flap_count, path_length, unique_peers,
		       message_rate, session_resets
		FROM public.bgp_features_1min
		WHERE window_start > $1
		ORDER BY window_start, prefix, origin_as`, lastTS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeatureRow
	for rows.Next() {
		var f model.FeatureRow
		if err := rows.Scan(&f.ID, &f.WindowStart, &f.WindowEnd, &f.Prefix, &f.OriginAS, &f.Announcements,
			&f.Withdrawals, &f.TotalUpdates, &f.WithdrawalRatio, &f.FlapCount, &f.PathLength,
			&f.UniquePeers, &f.MessageRate, &f.SessionResets); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// BaselinePathLength returns the 7-day average path_length for (prefix,
// origin_as) ending one hour before windowStart, for the path_inflation
// heuristic. Returns ok=false if there's no history (no trigger per §8).
func (s *FeatureStore) BaselinePathLength(ctx context.Context, prefix string, originAS int64, windowStart time.Time) (float64, bool, error) {
	var avg *float64
	err := s.pool.QueryRow(ctx, `
		SELECT AVG(path_length)
		FROM public.bgp_features_1min
		WHERE prefix = $1 AND origin_as = $2
		  AND window_start BETWEEN $3 - INTERVAL '7 days' AND $3 - INTERVAL '1 hour'
		  AND path_length IS NOT NULL`,
		prefix, originAS, windowStart,
	).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}
