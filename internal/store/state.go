package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

// querier is the subset of *pgxpool.Pool the checkpoint reads/writes need,
// narrow enough that a pgxmock pool satisfies it too for tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StageStateStore reads and advances the private checkpoint row each stage
// owns, per spec.md §5 — no stage ever reads another stage's state table.
type StageStateStore struct {
	pool  querier
	stage model.StageName
}

func NewStageStateStore(pool *pgxpool.Pool, stage model.StageName) *StageStateStore {
	return &StageStateStore{pool: pool, stage: stage}
}

// LastProcessedTimestamp returns the stage's checkpoint, or the zero time
// if the row has never advanced (an idle stage, or one only ever seeded) —
// including the case where the state table hasn't been seeded at all yet,
// since AdvanceTimestamp only INSERTs the id=1 row on a stage's first
// successful tick and EnsureSchema never seeds it.
func (s *StageStateStore) LastProcessedTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_processed_timestamp FROM public.`+string(s.stage)+` WHERE id = 1`,
	).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

// AdvanceTimestamp moves the checkpoint forward and bumps the running
// processed count by delta, inserting the single state row on first use.
func (s *StageStateStore) AdvanceTimestamp(ctx context.Context, to time.Time, delta int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO public.`+string(s.stage)+` (id, last_processed_timestamp, total_processed)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_processed_timestamp = $1,
			total_processed = public.`+string(s.stage)+`.total_processed + $2`,
		to, delta,
	)
	return err
}

// LastProcessedID returns the correlator's checkpoint: the highest
// hybrid_anomaly_detections.id it has folded into a correlation decision,
// or 0 if the state row hasn't been seeded yet (the correlator's first
// tick ever, mirroring LastProcessedTimestamp's zero-value handling).
func (s *StageStateStore) LastProcessedID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT last_processed_id FROM public.`+string(s.stage)+` WHERE id = 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

// AdvanceID moves the correlator's checkpoint to the given detection id.
func (s *StageStateStore) AdvanceID(ctx context.Context, to int64, delta int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO public.`+string(s.stage)+` (id, last_processed_id, total_processed)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_processed_id = $1,
			total_processed = public.`+string(s.stage)+`.total_processed + $2`,
		to, delta,
	)
	return err
}
