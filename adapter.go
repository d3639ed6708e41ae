package hydrodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Adapter maps hydrology timeseries onto the relational schema. Every
// operation acquires one pooled connection for its duration and releases
// it on all paths.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// PoolConfig tunes the connection pool behind an Adapter.
type PoolConfig struct {
	DatabaseURL string
	// MaxConns bounds the pool; zero keeps the pgxpool default.
	MaxConns int32
	// AcquireTimeout bounds connection establishment.
	AcquireTimeout time.Duration
	// StatementTimeout is applied server-side to every statement.
	StatementTimeout time.Duration
}

// NewPool builds a pgx pool from cfg.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.AcquireTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] =
			fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}
	return pgxpool.NewWithConfig(ctx, pc)
}

// New creates an Adapter backed by a fresh pool on databaseURL.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Adapter, error) {
	pool, err := NewPool(ctx, PoolConfig{DatabaseURL: databaseURL})
	if err != nil {
		return nil, err
	}
	return NewWithPool(pool, opts...), nil
}

// NewWithPool wraps an existing pool, leaving its lifecycle to the caller
// of Close.
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Adapter {
	a := &Adapter{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases the pool resources.
func (a *Adapter) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// storeError logs the failure once and wraps it with context. Errors that
// already carry adapter semantics (constraint and validation failures)
// pass through untouched.
func (a *Adapter) storeError(err error, format string, args ...any) error {
	var ce *ConstraintError
	var ve *ValidationError
	if errors.As(err, &ce) || errors.As(err, &ve) {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	a.logger.Error(msg, "error", err)
	return &StoreError{msg: msg, err: err}
}

// IsUniqueViolation reports whether err is a primary/unique key conflict.
// Callers racing to create the same event should treat it as "lost the
// race" and re-fetch rather than fail.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
