package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/bgpensemble/anomaly-pipeline/internal/model"
)

// On a freshly bootstrapped database EnsureSchema creates the *_state
// tables but never seeds their id=1 row — that only happens the first time
// Advance{Timestamp,ID} runs. A stage's very first Tick() must therefore
// see a missing row as "no checkpoint yet", not as a hard error.
func TestLastProcessedTimestamp_NoRowYet_ReturnsZeroValue(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT last_processed_timestamp FROM public\.heuristic_inference_state WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_processed_timestamp"}))

	s := &StageStateStore{pool: mockPool, stage: model.StageHeuristic}
	ts, err := s.LastProcessedTimestamp(context.Background())
	if err != nil {
		t.Fatalf("expected no error on a missing checkpoint row, got %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time, got %v", ts)
	}

	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLastProcessedTimestamp_NullColumn_ReturnsZeroValue(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT last_processed_timestamp FROM public\.heuristic_inference_state WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_processed_timestamp"}).AddRow(nil))

	s := &StageStateStore{pool: mockPool, stage: model.StageHeuristic}
	ts, err := s.LastProcessedTimestamp(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time for a seeded-but-null row, got %v", ts)
	}
}

func TestLastProcessedTimestamp_SeededRow_ReturnsCheckpoint(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mockPool.Close()

	want := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	mockPool.ExpectQuery(`SELECT last_processed_timestamp FROM public\.heuristic_inference_state WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_processed_timestamp"}).AddRow(want))

	s := &StageStateStore{pool: mockPool, stage: model.StageHeuristic}
	ts, err := s.LastProcessedTimestamp(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.Equal(want) {
		t.Errorf("got %v, want %v", ts, want)
	}
}

// The correlator's analogous first-run case: no row yet means checkpoint 0,
// not an error, so FetchSinceID(ctx, 0) sees every detection ever written.
func TestLastProcessedID_NoRowYet_ReturnsZero(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT last_processed_id FROM public\.correlation_engine_state WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_processed_id"}))

	s := &StageStateStore{pool: mockPool, stage: model.StageCorrelator}
	id, err := s.LastProcessedID(context.Background())
	if err != nil {
		t.Fatalf("expected no error on a missing checkpoint row, got %v", err)
	}
	if id != 0 {
		t.Errorf("expected id=0, got %d", id)
	}
}

func TestLastProcessedID_SeededRow_ReturnsCheckpoint(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT last_processed_id FROM public\.correlation_engine_state WHERE id = 1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_processed_id"}).AddRow(int64(42)))

	s := &StageStateStore{pool: mockPool, stage: model.StageCorrelator}
	id, err := s.LastProcessedID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("got %d, want 42", id)
	}
}
