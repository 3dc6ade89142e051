// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package store provides the PostgreSQL connection pool and schema
// migrations for Guildhall.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect opens a pgx connection pool and verifies it with a ping,
// retrying with capped exponential backoff. Databases routinely come up
// after the service in container environments; connect failures during
// that window are retryable, not fatal.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.In("store").
			Code("POOL_CONFIG_FAILED").
			Wrap(err)
	}

	backoff := retry.WithMaxDuration(30*time.Second,
		retry.WithCappedDuration(5*time.Second,
			retry.NewExponential(100*time.Millisecond)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.In("store").
			Code("POOL_PING_FAILED").
			Wrap(err)
	}

	return pool, nil
}
