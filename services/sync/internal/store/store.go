// Package store is the pgx-backed relational store for stations, demands
// and retrieved time series. The sync engine is its only writer; the
// engine runs single-threaded over a single pool.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps database access for the sync service.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies reachability. A connection
// failure here is fatal for the run.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
