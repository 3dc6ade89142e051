// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/guildhall/guildhall/internal/guild"
)

// GuildRepository implements guild.GuildRepository using PostgreSQL.
type GuildRepository struct {
	pool poolIface
}

// NewGuildRepository creates a new PostgreSQL guild repository.
func NewGuildRepository(pool poolIface) *GuildRepository {
	return &GuildRepository{pool: pool}
}

// Get retrieves a guild by ID.
func (r *GuildRepository) Get(ctx context.Context, id ulid.ULID) (*guild.Guild, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM guilds WHERE id = $1
	`, id.String())

	var g guild.Guild
	var idStr, ownerStr string
	err := row.Scan(&idStr, &g.Name, &ownerStr, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GUILD_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GUILD_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	if g.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("GUILD_GET_FAILED").With("id", idStr).Wrap(err)
	}
	if g.OwnerID, err = ulid.Parse(ownerStr); err != nil {
		return nil, oops.Code("GUILD_GET_FAILED").With("owner_id", ownerStr).Wrap(err)
	}
	return &g, nil
}

// Create persists a new guild.
// Callers must validate the guild before calling this method.
func (r *GuildRepository) Create(ctx context.Context, g *guild.Guild) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guilds (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, g.ID.String(), g.Name, g.OwnerID.String(), g.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("USER_NOT_FOUND").With("owner_id", g.OwnerID.String()).Wrap(guild.ErrNotFound)
		}
		return oops.Code("GUILD_CREATE_FAILED").With("id", g.ID.String()).Wrap(err)
	}
	return nil
}

// Delete removes a guild. Roles, assignments, channels, and member
// overrides cascade in the schema.
func (r *GuildRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("GUILD_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `DELETE FROM guilds WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("GUILD_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("GUILD_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}

	if err := notify(ctx, tx, "guild:"+id.String()); err != nil {
		return oops.Code("GUILD_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("GUILD_DELETE_FAILED").With("id", id.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// TransferOwnership changes the guild owner. The new owner holds the
// full mask from the moment this commits; cached masks for the guild
// are invalidated in the same transaction's notification.
func (r *GuildRepository) TransferOwnership(ctx context.Context, guildID, newOwnerID ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("GUILD_TRANSFER_FAILED").With("id", guildID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `
		UPDATE guilds SET owner_id = $2 WHERE id = $1
	`, guildID.String(), newOwnerID.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("USER_NOT_FOUND").With("owner_id", newOwnerID.String()).Wrap(guild.ErrNotFound)
		}
		return oops.Code("GUILD_TRANSFER_FAILED").With("id", guildID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("GUILD_NOT_FOUND").With("id", guildID.String()).Wrap(guild.ErrNotFound)
	}

	if err := notify(ctx, tx, "guild:"+guildID.String()); err != nil {
		return oops.Code("GUILD_TRANSFER_FAILED").With("id", guildID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("GUILD_TRANSFER_FAILED").With("id", guildID.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign
// key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
