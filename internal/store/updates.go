package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

type UpdateStore struct {
	pool *pgxpool.Pool
}

func NewUpdateStore(pool *pgxpool.Pool) *UpdateStore {
	return &UpdateStore{pool: pool}
}

// InsertUpdate writes one row per prefix of an announcement or withdrawal,
// per spec.md §4.1. ip_rib has no uniqueness constraint beyond hash_id, so
// every call inserts a fresh row.
func (s *UpdateStore) InsertUpdate(ctx context.Context, u model.Update) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO public.ip_rib
			(hash_id, base_attr_hash_id, peer_hash_id, isipv4, origin_as, prefix, prefix_len,
			 timestamp, first_added_timestamp, iswithdrawn, path_id, labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)`,
		u.HashID, u.BaseAttrHashID, u.PeerHashID, u.IsIPv4, u.OriginAS, u.Prefix, u.PrefixLen,
		u.Timestamp, u.FirstAddedTimestamp, u.IsWithdrawn, u.PathID,
	)
	return err
}
