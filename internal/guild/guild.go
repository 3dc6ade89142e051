// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package guild

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/guildhall/guildhall/internal/perms/flag"
)

// User is an authenticated principal. Identity, sessions, and
// credential handling live outside this module; only the fields the
// resolver needs are carried here.
type User struct {
	ID        ulid.ULID
	Name      string
	Banned    bool
	CreatedAt time.Time
}

// NewUser creates a User with a generated ID.
func NewUser(name string) (*User, error) {
	return NewUserWithID(ulid.Make(), name)
}

// NewUserWithID creates a User with the provided ID.
func NewUserWithID(id ulid.ULID, name string) (*User, error) {
	u := &User{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks that the user has required fields.
func (u *User) Validate() error {
	if u.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	return ValidateName(u.Name)
}

// Guild is a community container grouping channels, members, and roles.
// The owner is implicitly an administrator; ownership cannot be revoked
// by removing roles.
type Guild struct {
	ID        ulid.ULID
	Name      string
	OwnerID   ulid.ULID
	CreatedAt time.Time
}

// NewGuild creates a Guild with a generated ID.
func NewGuild(name string, ownerID ulid.ULID) (*Guild, error) {
	g := &Guild{
		ID:        ulid.Make(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks that the guild has required fields.
func (g *Guild) Validate() error {
	if g.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if g.OwnerID.IsZero() {
		return &ValidationError{Field: "owner_id", Message: "cannot be zero"}
	}
	return ValidateName(g.Name)
}

// Role is a guild-scoped bundle of guild-vocabulary permission flags.
// A role belongs to exactly one guild; its mask is meaningful only
// within that guild.
type Role struct {
	ID          ulid.ULID
	GuildID     ulid.ULID
	Name        string
	Permissions flag.GuildPermission
	CreatedAt   time.Time
}

// NewRole creates a Role with a generated ID.
func NewRole(guildID ulid.ULID, name string, permissions flag.GuildPermission) (*Role, error) {
	r := &Role{
		ID:          ulid.Make(),
		GuildID:     guildID,
		Name:        name,
		Permissions: permissions,
		CreatedAt:   time.Now(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that the role has required fields.
func (r *Role) Validate() error {
	if r.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if r.GuildID.IsZero() {
		return &ValidationError{Field: "guild_id", Message: "cannot be zero"}
	}
	return ValidateName(r.Name)
}
