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

// MemberRepository implements guild.MemberRepository using PostgreSQL.
type MemberRepository struct {
	pool poolIface
}

// NewMemberRepository creates a new PostgreSQL member repository.
func NewMemberRepository(pool poolIface) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// OverrideFor returns the override mask for a user on a channel.
// Absence of a row yields Present=false, not an error.
func (r *MemberRepository) OverrideFor(ctx context.Context, userID, channelID ulid.ULID) (guild.Override, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT permissions FROM channel_members
		WHERE user_id = $1 AND channel_id = $2
	`, userID.String(), channelID.String())

	var bits int64
	err := row.Scan(&bits)
	if errors.Is(err, pgx.ErrNoRows) {
		return guild.Override{}, nil
	}
	if err != nil {
		return guild.Override{}, oops.Code("OVERRIDE_QUERY_FAILED").
			With("user_id", userID.String()).
			With("channel_id", channelID.String()).
			Wrap(err)
	}
	return guild.Override{Mask: uint32(bits), Present: true}, nil
}

// SetOverride creates or replaces the override row for a user on a
// channel. A zero mask is stored as-is: an intentional grant of
// nothing is distinct from no row.
// Callers must validate the member before calling this method.
func (r *MemberRepository) SetOverride(ctx context.Context, m *guild.Member) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("OVERRIDE_SET_FAILED").With("channel_id", m.ChannelID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO channel_members (user_id, channel_id, permissions, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET permissions = $3
	`, m.UserID.String(), m.ChannelID.String(), int64(m.Permissions), m.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("CHANNEL_NOT_FOUND").
				With("user_id", m.UserID.String()).
				With("channel_id", m.ChannelID.String()).
				Wrap(guild.ErrNotFound)
		}
		return oops.Code("OVERRIDE_SET_FAILED").
			With("user_id", m.UserID.String()).
			With("channel_id", m.ChannelID.String()).
			Wrap(err)
	}

	if err := notify(ctx, tx, "channel:"+m.ChannelID.String()); err != nil {
		return oops.Code("OVERRIDE_SET_FAILED").With("channel_id", m.ChannelID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("OVERRIDE_SET_FAILED").
			With("channel_id", m.ChannelID.String()).
			With("operation", "commit").
			Wrap(err)
	}
	return nil
}

// ClearOverride removes the override row. Clearing an absent row is a
// no-op.
func (r *MemberRepository) ClearOverride(ctx context.Context, userID, channelID ulid.ULID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("OVERRIDE_CLEAR_FAILED").With("channel_id", channelID.String()).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		DELETE FROM channel_members WHERE user_id = $1 AND channel_id = $2
	`, userID.String(), channelID.String())
	if err != nil {
		return oops.Code("OVERRIDE_CLEAR_FAILED").
			With("user_id", userID.String()).
			With("channel_id", channelID.String()).
			Wrap(err)
	}

	if err := notify(ctx, tx, "channel:"+channelID.String()); err != nil {
		return oops.Code("OVERRIDE_CLEAR_FAILED").With("channel_id", channelID.String()).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("OVERRIDE_CLEAR_FAILED").
			With("channel_id", channelID.String()).
			With("operation", "commit").
			Wrap(err)
	}
	return nil
}

// ListByChannel returns all override rows for a channel.
func (r *MemberRepository) ListByChannel(ctx context.Context, channelID ulid.ULID) ([]guild.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, channel_id, permissions, created_at
		FROM channel_members WHERE channel_id = $1
	`, channelID.String())
	if err != nil {
		return nil, oops.Code("OVERRIDE_QUERY_FAILED").With("channel_id", channelID.String()).Wrap(err)
	}
	defer rows.Close()

	var members []guild.Member
	for rows.Next() {
		var m guild.Member
		var userStr, chanStr string
		var bits int64
		if err := rows.Scan(&userStr, &chanStr, &bits, &m.CreatedAt); err != nil {
			return nil, oops.Code("OVERRIDE_SCAN_FAILED").Wrap(err)
		}
		if m.UserID, err = ulid.Parse(userStr); err != nil {
			return nil, oops.With("operation", "parse member user_id").With("user_id", userStr).Wrap(err)
		}
		if m.ChannelID, err = ulid.Parse(chanStr); err != nil {
			return nil, oops.With("operation", "parse member channel_id").With("channel_id", chanStr).Wrap(err)
		}
		m.Permissions = uint32(bits)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("OVERRIDE_QUERY_FAILED").Wrap(err)
	}
	return members, nil
}
