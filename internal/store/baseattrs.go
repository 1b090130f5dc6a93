package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

type BaseAttrStore struct {
	pool *pgxpool.Pool
}

func NewBaseAttrStore(pool *pgxpool.Pool) *BaseAttrStore {
	return &BaseAttrStore{pool: pool}
}

// UpsertBaseAttrs mirrors get_or_create_base_attrs: insert if absent,
// tolerate a concurrent insert of the identical attribute bundle.
func (s *BaseAttrStore) UpsertBaseAttrs(ctx context.Context, ba model.BaseAttrs) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT true FROM public.base_attrs WHERE hash_id = $1`, ba.HashID).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO public.base_attrs
			(hash_id, peer_hash_id, origin, as_path, as_path_count, origin_as, next_hop, nexthop_isipv4, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hash_id) DO NOTHING`,
		ba.HashID, ba.PeerHashID, ba.Origin, ba.ASPath, ba.ASPathCount, ba.OriginAS,
		nilIfEmpty(ba.NextHop), ba.NextHopIsIPv4, ba.Timestamp,
	)
	return err
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
