// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package guild

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = errors.New("not found")

// RoleSource is the read contract the permission resolver consumes.
// Implementations must return a consistent snapshot per call.
type RoleSource interface {
	// RolesForUser returns the roles a user holds in a guild.
	// Ordering is irrelevant; resolution is a pure union.
	RolesForUser(ctx context.Context, userID, guildID ulid.ULID) ([]Role, error)

	// RoleByID retrieves a role by ID.
	RoleByID(ctx context.Context, id ulid.ULID) (Role, error)
}

// OverrideSource supplies per-channel per-user override masks.
type OverrideSource interface {
	// OverrideFor returns the override mask for a user on a channel.
	// Absence of a row is not an error: the result has Present=false.
	OverrideFor(ctx context.Context, userID, channelID ulid.ULID) (Override, error)
}

// UserRepository manages user persistence.
type UserRepository interface {
	Get(ctx context.Context, id ulid.ULID) (*User, error)
	Create(ctx context.Context, u *User) error

	// SetBanned flips the ban flag. Banned users resolve to the empty
	// permission set unconditionally.
	SetBanned(ctx context.Context, id ulid.ULID, banned bool) error
}

// GuildRepository manages guild persistence.
type GuildRepository interface {
	Get(ctx context.Context, id ulid.ULID) (*Guild, error)
	Create(ctx context.Context, g *Guild) error
	Delete(ctx context.Context, id ulid.ULID) error

	// TransferOwnership changes the guild owner. The new owner is
	// implicitly an administrator from the moment the write commits.
	TransferOwnership(ctx context.Context, guildID, newOwnerID ulid.ULID) error
}

// RoleRepository manages role persistence and assignment.
type RoleRepository interface {
	RoleSource

	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id ulid.ULID) error
	ListByGuild(ctx context.Context, guildID ulid.ULID) ([]Role, error)

	// Assign grants a role to a user. The role's guild scopes the
	// assignment; assigning twice is a no-op.
	Assign(ctx context.Context, userID, roleID ulid.ULID) error

	// Remove revokes a role from a user.
	Remove(ctx context.Context, userID, roleID ulid.ULID) error
}

// ChannelRepository manages channel persistence.
type ChannelRepository interface {
	Get(ctx context.Context, id ulid.ULID) (*Channel, error)
	Create(ctx context.Context, c *Channel) error

	// Update modifies a channel. Parent changes are validated against
	// the tree: the parent must belong to the same guild and must not
	// create a cycle.
	Update(ctx context.Context, c *Channel) error
	Delete(ctx context.Context, id ulid.ULID) error
	ListByGuild(ctx context.Context, guildID ulid.ULID) ([]*Channel, error)
}

// MemberRepository manages per-channel member overrides.
type MemberRepository interface {
	OverrideSource

	// SetOverride creates or replaces the override row for a user on a
	// channel. A zero mask is a valid, intentional grant of nothing.
	SetOverride(ctx context.Context, m *Member) error

	// ClearOverride removes the override row. Clearing an absent row is
	// a no-op.
	ClearOverride(ctx context.Context, userID, channelID ulid.ULID) error

	ListByChannel(ctx context.Context, channelID ulid.ULID) ([]Member, error)
}
