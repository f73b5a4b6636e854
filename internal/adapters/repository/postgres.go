package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camspipe/bridge/internal/domain/model"
	"github.com/camspipe/bridge/pkg/logger"
	"github.com/camspipe/bridge/pkg/metrics"
)

// Pool sizing constants. The pool is shared by the consumer's write path
// and the recent-history read path; acquisition blocks when exhausted.
const (
	poolMinConns = 1
	poolMaxConns = 5

	defaultOpTimeout = 5 * time.Second
)

const (
	insertSQL = `INSERT INTO activity (student_id, status, confidence, ts) VALUES ($1, $2, $3, to_timestamp($4))`
	recentSQL = `SELECT student_id, status, confidence, ts FROM activity ORDER BY ts DESC LIMIT $1`
	countSQL  = `SELECT count(*) FROM activity`

	schemaSQL = `CREATE TABLE IF NOT EXISTS activity (
		student_id TEXT NOT NULL,
		status     TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		ts         TIMESTAMPTZ NOT NULL
	)`
	schemaIndexSQL = `CREATE INDEX IF NOT EXISTS activity_ts_idx ON activity (ts DESC)`
)

// PostgresStore implements Store on a bounded pgx connection pool.
type PostgresStore struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
	logger    logger.Logger
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithOpTimeout bounds one store operation, pool acquisition included.
func WithOpTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithPostgresLogger sets a custom logger for the store.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewPostgresStore connects the bounded pool and verifies reachability.
// The pool must be ready before any message is processed; callers open the
// store before starting the consumer.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		opTimeout: defaultOpTimeout,
		logger:    logger.Get().Named("postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", ErrStoreUnavailable, err)
	}
	cfg.MinConns = poolMinConns
	cfg.MaxConns = poolMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.pool = pool
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info(ctx, "connected activity store",
		logger.Int("minConns", poolMinConns),
		logger.Int("maxConns", poolMaxConns),
	)
	return s, nil
}

// ensureSchema creates the activity table and its read index if absent.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	for _, stmt := range []string{schemaSQL, schemaIndexSQL} {
		if _, err := s.pool.Exec(opCtx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Insert writes one activity row.
func (s *PostgresStore) Insert(ctx context.Context, e model.ActivityEvent) error {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.pool.Exec(opCtx, insertSQL, e.StudentID, e.Status, e.Confidence, e.Timestamp)
	if err != nil {
		metrics.RecordErrorByComponent("store", "insert")
		return classifyPgError(err)
	}

	metrics.RecordStoreInsert()
	metrics.RecordStoreInsertLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// RecentN returns up to n rows, newest first.
func (s *PostgresStore) RecentN(ctx context.Context, n int) ([]Activity, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	rows, err := s.pool.Query(opCtx, recentSQL, n)
	if err != nil {
		metrics.RecordStoreQueryError()
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	out := make([]Activity, 0, n)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.StudentID, &a.Status, &a.Confidence, &a.TS); err != nil {
			metrics.RecordStoreQueryError()
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreQueryError()
		return nil, classifyPgError(err)
	}

	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// Count returns the number of stored rows, zero when unreachable.
func (s *PostgresStore) Count(ctx context.Context) int {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(opCtx, countSQL).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Ping verifies store reachability within the operation deadline.
func (s *PostgresStore) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.pool.Ping(opCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the connection pool. Callers stop the consumer first so
// no writer is using the pool when it goes away.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// classifyPgError maps driver errors onto the package sentinels.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		// SQLSTATE class 23: integrity constraint violation
		return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
