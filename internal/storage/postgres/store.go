package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammPool/internal/model"
)

// Schema creates the tables used by Store. Amounts are NUMERIC(20,0) so the
// full uint64 range round-trips; they travel as decimal text.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	id                 TEXT PRIMARY KEY,
	reserve_a          NUMERIC(20,0) NOT NULL,
	reserve_b          NUMERIC(20,0) NOT NULL,
	total_claim_supply NUMERIC(20,0) NOT NULL,
	seq                BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool_operations (
	pool_id    TEXT NOT NULL,
	seq        BIGINT NOT NULL,
	op         TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	failed     BOOLEAN NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS pool_operations_pool_seq ON pool_operations (pool_id, seq);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id             TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	failed_count        BIGINT NOT NULL,
	volume_in_a         NUMERIC NOT NULL,
	volume_in_b         NUMERIC NOT NULL,
	volume_out_a        NUMERIC NOT NULL,
	volume_out_b        NUMERIC NOT NULL,
	claims_minted       NUMERIC NOT NULL,
	claims_burned       NUMERIC NOT NULL,
	reserve_a           NUMERIC(20,0) NOT NULL,
	reserve_b           NUMERIC(20,0) NOT NULL,
	claim_supply        NUMERIC(20,0) NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregator_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pools, the operation journal and
// aggregated metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadPool returns the pool with the given ID.
func (s *Store) LoadPool(ctx context.Context, id string) (model.PoolState, bool, error) {
	if id == "" {
		return model.PoolState{}, false, fmt.Errorf("pool id required")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, reserve_a::text, reserve_b::text, total_claim_supply::text, seq, updated_at
		FROM pools WHERE id=$1
	`, id)
	state, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolState{}, false, nil
		}
		return model.PoolState{}, false, err
	}
	return state, true, nil
}

// SavePool inserts or updates a pool record.
func (s *Store) SavePool(ctx context.Context, state model.PoolState) error {
	if state.ID == "" {
		return fmt.Errorf("pool id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (id, reserve_a, reserve_b, total_claim_supply, seq, created_at, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			reserve_a = EXCLUDED.reserve_a,
			reserve_b = EXCLUDED.reserve_b,
			total_claim_supply = EXCLUDED.total_claim_supply,
			seq = EXCLUDED.seq,
			updated_at = now()
	`,
		state.ID,
		formatUint(state.ReserveA),
		formatUint(state.ReserveB),
		formatUint(state.TotalClaimSupply),
		int64(state.Seq),
	)
	return err
}

// ListPools returns all pools ordered by ID.
func (s *Store) ListPools(ctx context.Context) ([]model.PoolState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, reserve_a::text, reserve_b::text, total_claim_supply::text, seq, updated_at
		FROM pools ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.PoolState
	for rows.Next() {
		state, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, state)
	}
	return pools, rows.Err()
}

// PutOperationBatch appends operation records to the journal table.
func (s *Store) PutOperationBatch(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal operation record: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_operations (pool_id, seq, op, ts, failed, record, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`,
			record.PoolID,
			int64(record.Seq),
			string(record.Op),
			int64(record.Timestamp),
			record.Failed(),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, failed_count, volume_in_a, volume_in_b, volume_out_a, volume_out_b,
				claims_minted, claims_burned, reserve_a, reserve_b, claim_supply, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13::numeric,$14::numeric,$15::numeric,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				failed_count = EXCLUDED.failed_count,
				volume_in_a = EXCLUDED.volume_in_a,
				volume_in_b = EXCLUDED.volume_in_b,
				volume_out_a = EXCLUDED.volume_out_a,
				volume_out_b = EXCLUDED.volume_out_b,
				claims_minted = EXCLUDED.claims_minted,
				claims_burned = EXCLUDED.claims_burned,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				claim_supply = EXCLUDED.claim_supply,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.FailedCount),
			m.VolumeInA,
			m.VolumeInB,
			m.VolumeOutA,
			m.VolumeOutB,
			m.ClaimsMinted,
			m.ClaimsBurned,
			formatUint(m.ReserveA),
			formatUint(m.ReserveB),
			formatUint(m.ClaimSupply),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func scanPool(row pgx.Row) (model.PoolState, error) {
	var (
		state                   model.PoolState
		reserveA, reserveB, sup string
		seq                     int64
		updatedAt               time.Time
	)
	if err := row.Scan(&state.ID, &reserveA, &reserveB, &sup, &seq, &updatedAt); err != nil {
		return model.PoolState{}, err
	}
	var err error
	if state.ReserveA, err = parseUint(reserveA); err != nil {
		return model.PoolState{}, fmt.Errorf("reserve_a: %w", err)
	}
	if state.ReserveB, err = parseUint(reserveB); err != nil {
		return model.PoolState{}, fmt.Errorf("reserve_b: %w", err)
	}
	if state.TotalClaimSupply, err = parseUint(sup); err != nil {
		return model.PoolState{}, fmt.Errorf("total_claim_supply: %w", err)
	}
	state.Seq = uint64(seq)
	state.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return state, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
