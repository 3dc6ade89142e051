// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guildhall/guildhall/internal/guild"
)

// UserRepository implements guild.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id ulid.ULID) (*guild.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, banned, created_at
		FROM users WHERE id = $1
	`, id.String())

	var u guild.User
	var idStr string
	err := row.Scan(&idStr, &u.Name, &u.Banned, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", idStr).Wrap(err)
	}
	return &u, nil
}

// Create persists a new user.
// Callers must validate the user before calling this method.
func (r *UserRepository) Create(ctx context.Context, u *guild.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, banned, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID.String(), u.Name, u.Banned, u.CreatedAt)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("id", u.ID.String()).Wrap(err)
	}
	return nil
}

// SetBanned flips the ban flag and notifies so cached masks for the
// user are dropped before the next resolution.
func (r *UserRepository) SetBanned(ctx context.Context, id ulid.ULID, banned bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("USER_BAN_FAILED").With("id", id.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `UPDATE users SET banned = $2 WHERE id = $1`, id.String(), banned)
	if err != nil {
		return oops.Code("USER_BAN_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}

	if err := notify(ctx, tx, "user:"+id.String()); err != nil {
		return oops.Code("USER_BAN_FAILED").With("id", id.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("USER_BAN_FAILED").With("id", id.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}
