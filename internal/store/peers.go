package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

type PeerStore struct {
	pool *pgxpool.Pool
}

func NewPeerStore(pool *pgxpool.Pool) *PeerStore {
	return &PeerStore{pool: pool}
}

// UpsertPeer inserts a Peer row if its hash_id isn't already present. A
// unique-violation from a concurrent insert of the same (peer_addr,
// peer_asn) is treated as success, matching get_peer_hash_id's race
// handling in the original collector.
func (s *PeerStore) UpsertPeer(ctx context.Context, p model.Peer) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT true FROM public.bgp_peers WHERE hash_id = $1`, p.HashID).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO public.bgp_peers (hash_id, router_hash_id, peer_rd, isipv4, peer_addr, peer_as, state)
		VALUES ($1, $2, '', $3, $4, $5, 'up')
		ON CONFLICT (hash_id) DO NOTHING`,
		p.HashID, p.RouterHashID, p.IsIPv4, p.PeerAddr, p.PeerASN,
	)
	return err
}
