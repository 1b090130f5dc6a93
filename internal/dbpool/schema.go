package dbpool

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey derives a stable pg_advisory_lock key from a fixed string,
// the same trick the teacher uses to serialize schema changes across
// concurrently starting processes.
func advisoryLockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// EnsureSchema idempotently creates every table, index and helper function
// the pipeline needs. Each of the six workers calls this at startup, the
// same way every original_source/services/*.py script calls its own
// ensure_tables()/init_state_table() before entering its main loop. An
// advisory lock keeps concurrent startups from racing on DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	lockKey := advisoryLockKey("bgpensemble-schema")

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection for schema lock: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}
	defer conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockKey)

	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}

	logger.Info("schema verified")
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS public.bgp_peers (
		hash_id        uuid PRIMARY KEY,
		router_hash_id uuid,
		peer_rd        text NOT NULL DEFAULT '',
		isipv4         boolean NOT NULL,
		peer_addr      text NOT NULL,
		peer_as        bigint NOT NULL,
		state          text NOT NULL DEFAULT 'up'
	)`,
	`CREATE TABLE IF NOT EXISTS public.base_attrs (
		hash_id        uuid PRIMARY KEY,
		peer_hash_id   uuid NOT NULL REFERENCES public.bgp_peers(hash_id),
		origin         text NOT NULL DEFAULT 'IGP',
		as_path        bigint[] NOT NULL,
		as_path_count  integer NOT NULL,
		origin_as      bigint NOT NULL,
		next_hop       text,
		nexthop_isipv4 boolean NOT NULL DEFAULT true,
		timestamp      timestamp without time zone NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS public.ip_rib (
		hash_id                uuid PRIMARY KEY,
		base_attr_hash_id      uuid NOT NULL REFERENCES public.base_attrs(hash_id),
		peer_hash_id           uuid NOT NULL REFERENCES public.bgp_peers(hash_id),
		isipv4                 boolean NOT NULL,
		origin_as              bigint NOT NULL,
		prefix                 text NOT NULL,
		prefix_len             integer NOT NULL,
		timestamp              timestamp without time zone NOT NULL,
		first_added_timestamp  timestamp without time zone NOT NULL,
		iswithdrawn            boolean NOT NULL,
		path_id                integer NOT NULL DEFAULT 0,
		labels                 text
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ip_rib_timestamp ON public.ip_rib (timestamp)`,
	`CREATE OR REPLACE FUNCTION public.floor_to_1min(t timestamp without time zone)
		RETURNS timestamp without time zone AS $$
		SELECT date_trunc('minute', t)
	$$ LANGUAGE sql IMMUTABLE`,
	`CREATE TABLE IF NOT EXISTS public.bgp_features_1min (
		id               bigserial PRIMARY KEY,
		window_start     timestamp without time zone NOT NULL,
		window_end       timestamp without time zone NOT NULL,
		prefix           text NOT NULL,
		origin_as        bigint NOT NULL,
		announcements    integer NOT NULL,
		withdrawals      integer NOT NULL,
		total_updates    integer NOT NULL,
		withdrawal_ratio double precision NOT NULL,
		flap_count       integer NOT NULL,
		path_length      double precision,
		unique_peers     integer NOT NULL,
		message_rate     double precision NOT NULL,
		session_resets   integer NOT NULL,
		UNIQUE (window_start, prefix, origin_as)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_features_prefix_origin ON public.bgp_features_1min (prefix, origin_as, window_start)`,
	`CREATE TABLE IF NOT EXISTS public.hybrid_anomaly_detections (
		id                 bigserial PRIMARY KEY,
		timestamp          timestamp without time zone NOT NULL,
		detection_id       text UNIQUE NOT NULL,
		prefix             text NOT NULL,
		prefix_length      integer NOT NULL,
		peer_ip            text,
		peer_asn           bigint,
		origin_as          bigint NOT NULL,
		as_path            bigint[],
		next_hop           text,
		event_type         text NOT NULL,
		message_type       text NOT NULL,
		rpki_status        text NOT NULL DEFAULT 'unknown',
		rpki_anomaly       boolean NOT NULL DEFAULT false,
		combined_anomaly   boolean NOT NULL,
		combined_score     double precision NOT NULL,
		combined_severity  text NOT NULL,
		classification     text NOT NULL,
		metadata           jsonb NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_group ON public.hybrid_anomaly_detections (prefix, origin_as, timestamp)`,
	`CREATE TABLE IF NOT EXISTS public.feature_aggregator_state (
		id integer PRIMARY KEY DEFAULT 1,
		last_processed_timestamp timestamp without time zone,
		total_processed bigint NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS public.heuristic_inference_state (
		id integer PRIMARY KEY DEFAULT 1,
		last_processed_timestamp timestamp without time zone,
		total_processed bigint NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS public.ml_inference_state (
		id integer PRIMARY KEY DEFAULT 1,
		last_processed_timestamp timestamp without time zone,
		total_processed bigint NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS public.rpki_inference_state (
		id integer PRIMARY KEY DEFAULT 1,
		last_processed_timestamp timestamp without time zone,
		total_processed bigint NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS public.correlation_engine_state (
		id integer PRIMARY KEY DEFAULT 1,
		last_processed_id bigint NOT NULL DEFAULT 0,
		total_processed bigint NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
}
