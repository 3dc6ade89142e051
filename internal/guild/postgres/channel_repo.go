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

// ChannelRepository implements guild.ChannelRepository using PostgreSQL.
type ChannelRepository struct {
	pool poolIface
}

// NewChannelRepository creates a new PostgreSQL channel repository.
func NewChannelRepository(pool poolIface) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

const channelColumns = `id, guild_id, name, kind, parent_id, created_at`

func scanChannel(row pgx.Row) (*guild.Channel, error) {
	var c guild.Channel
	var idStr, guildStr, kindStr string
	var parentStr *string
	err := row.Scan(&idStr, &guildStr, &c.Name, &kindStr, &parentStr, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if c.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.With("operation", "parse channel id").With("id", idStr).Wrap(err)
	}
	if c.GuildID, err = ulid.Parse(guildStr); err != nil {
		return nil, oops.With("operation", "parse channel guild_id").With("guild_id", guildStr).Wrap(err)
	}
	c.Kind = guild.ChannelKind(kindStr)
	if c.ParentID, err = parseOptionalULID(parentStr, "parent_id"); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get retrieves a channel by ID.
func (r *ChannelRepository) Get(ctx context.Context, id ulid.ULID) (*guild.Channel, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id.String())
	ch, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CHANNEL_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHANNEL_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return ch, nil
}

// Create persists a new channel. The parent, if set, must exist in the
// same guild.
// Callers must validate the channel before calling this method.
func (r *ChannelRepository) Create(ctx context.Context, c *guild.Channel) error {
	if err := r.validateParent(ctx, c); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO channels (id, guild_id, name, kind, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID.String(), c.GuildID.String(), c.Name, string(c.Kind),
		ulidToStringPtr(c.ParentID), c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("GUILD_NOT_FOUND").With("guild_id", c.GuildID.String()).Wrap(guild.ErrNotFound)
		}
		return oops.Code("CHANNEL_CREATE_FAILED").With("id", c.ID.String()).Wrap(err)
	}
	return nil
}

// Update modifies a channel's name and parent. Kind and guild are
// immutable after creation.
func (r *ChannelRepository) Update(ctx context.Context, c *guild.Channel) error {
	if err := r.validateParent(ctx, c); err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE channels SET name = $2, parent_id = $3 WHERE id = $1
	`, c.ID.String(), c.Name, ulidToStringPtr(c.ParentID))
	if err != nil {
		return oops.Code("CHANNEL_UPDATE_FAILED").With("id", c.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHANNEL_NOT_FOUND").With("id", c.ID.String()).Wrap(guild.ErrNotFound)
	}
	return nil
}

// Delete removes a channel. Member overrides cascade; children are
// reparented to NULL in the schema.
func (r *ChannelRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("CHANNEL_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("CHANNEL_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHANNEL_NOT_FOUND").With("id", id.String()).Wrap(guild.ErrNotFound)
	}

	if err := notify(ctx, tx, "channel:"+id.String()); err != nil {
		return oops.Code("CHANNEL_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("CHANNEL_DELETE_FAILED").With("id", id.String()).With("operation", "commit").Wrap(err)
	}
	return nil
}

// ListByGuild returns all channels in a guild.
func (r *ChannelRepository) ListByGuild(ctx context.Context, guildID ulid.ULID) ([]*guild.Channel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE guild_id = $1 ORDER BY name`, guildID.String())
	if err != nil {
		return nil, oops.Code("CHANNEL_QUERY_FAILED").With("guild_id", guildID.String()).Wrap(err)
	}
	defer rows.Close()

	var channels []*guild.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, oops.Code("CHANNEL_SCAN_FAILED").Wrap(err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CHANNEL_QUERY_FAILED").Wrap(err)
	}
	return channels, nil
}

// validateParent enforces the tree constraints: the parent must exist
// in the same guild, and following parents from the proposed parent
// must never reach the channel itself.
func (r *ChannelRepository) validateParent(ctx context.Context, c *guild.Channel) error {
	if c.ParentID == nil {
		return nil
	}
	if *c.ParentID == c.ID {
		return oops.Code("CHANNEL_CYCLE").
			With("id", c.ID.String()).
			Errorf("channel cannot be its own parent")
	}

	current := *c.ParentID
	// The walk is bounded by the tree depth; the guard below caps it
	// in case the stored tree is already corrupt.
	for depth := 0; depth < 64; depth++ {
		row := r.pool.QueryRow(ctx,
			`SELECT guild_id, parent_id FROM channels WHERE id = $1`, current.String())
		var guildStr string
		var parentStr *string
		err := row.Scan(&guildStr, &parentStr)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("CHANNEL_NOT_FOUND").With("parent_id", current.String()).Wrap(guild.ErrNotFound)
		}
		if err != nil {
			return oops.Code("CHANNEL_QUERY_FAILED").With("parent_id", current.String()).Wrap(err)
		}
		if guildStr != c.GuildID.String() {
			return oops.Code("INCONSISTENT_REFERENCE").
				With("channel_id", c.ID.String()).
				With("parent_id", current.String()).
				With("parent_guild_id", guildStr).
				Errorf("parent channel belongs to a different guild")
		}
		if parentStr == nil {
			return nil
		}
		next, err := ulid.Parse(*parentStr)
		if err != nil {
			return oops.With("operation", "parse parent_id").With("parent_id", *parentStr).Wrap(err)
		}
		if next == c.ID {
			return oops.Code("CHANNEL_CYCLE").
				With("id", c.ID.String()).
				Errorf("parent assignment would create a cycle")
		}
		current = next
	}
	return oops.Code("CHANNEL_CYCLE").
		With("id", c.ID.String()).
		Errorf("channel tree exceeds maximum depth")
}
