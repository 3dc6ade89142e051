// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package postgres implements the guild repositories using PostgreSQL.
//
// Every permission-affecting write sends pg_notify on the perm_changed
// channel in the same transaction, feeding cache invalidation. The
// payload is "user:<id>", "guild:<id>", or "channel:<id>" depending on
// the narrowest scope the write can affect.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// poolIface abstracts *pgxpool.Pool so repositories can be unit-tested
// with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// notify sends the cache-invalidation notification inside a
// transaction.
func notify(ctx context.Context, tx pgx.Tx, payload string) error {
	_, err := tx.Exec(ctx, `SELECT pg_notify('perm_changed', $1)`, payload)
	if err != nil {
		return oops.With("operation", "notify").With("payload", payload).Wrap(err)
	}
	return nil
}

// ulidToStringPtr converts a ULID pointer to a string pointer for SQL parameters.
func ulidToStringPtr(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseOptionalULID parses an optional ULID string pointer.
func parseOptionalULID(strPtr *string, fieldName string) (*ulid.ULID, error) {
	if strPtr == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*strPtr)
	if err != nil {
		return nil, oops.With("operation", "parse "+fieldName).With(fieldName, *strPtr).Wrap(err)
	}
	return &id, nil
}
