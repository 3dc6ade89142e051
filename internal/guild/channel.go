// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package guild

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ChannelKind identifies the kind of channel.
type ChannelKind string

// Channel kinds. Category channels are grouping nodes with no
// permission vocabulary of their own.
const (
	ChannelText     ChannelKind = "text"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category"
)

// Valid reports whether the kind is one of the defined channel kinds.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelText, ChannelVoice, ChannelCategory:
		return true
	default:
		return false
	}
}

// Channel is a text or voice channel, or a category grouping node,
// within a guild. ParentID, if set, must reference a channel in the
// same guild; the channel tree is acyclic. Both constraints are
// enforced by the channel repository on write.
type Channel struct {
	ID        ulid.ULID
	GuildID   ulid.ULID
	Name      string
	Kind      ChannelKind
	ParentID  *ulid.ULID
	CreatedAt time.Time
}

// NewChannel creates a Channel with a generated ID.
func NewChannel(guildID ulid.ULID, name string, kind ChannelKind) (*Channel, error) {
	c := &Channel{
		ID:        ulid.Make(),
		GuildID:   guildID,
		Name:      name,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetParentID updates the channel's parent. If id is non-nil, it must
// be a valid (non-zero) ULID. Same-guild and acyclicity checks happen
// in the repository, which can see the whole tree.
func (c *Channel) SetParentID(id *ulid.ULID) error {
	if id != nil && id.IsZero() {
		return &ValidationError{Field: "parent_id", Message: "cannot be zero"}
	}
	c.ParentID = id
	return nil
}

// Validate checks that the channel has required fields.
func (c *Channel) Validate() error {
	if c.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if c.GuildID.IsZero() {
		return &ValidationError{Field: "guild_id", Message: "cannot be zero"}
	}
	if !c.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: "must be text, voice, or category"}
	}
	if c.ParentID != nil && c.ParentID.IsZero() {
		return &ValidationError{Field: "parent_id", Message: "cannot be zero"}
	}
	return ValidateName(c.Name)
}

// Member is an explicit per-channel, per-user grant. The mask is raw
// bits; its vocabulary is selected by the channel's kind at resolution
// time. Presence of a row is itself access-defining: a user without a
// row has no channel-scoped grant from this mechanism.
type Member struct {
	UserID      ulid.ULID
	ChannelID   ulid.ULID
	Permissions uint32
	CreatedAt   time.Time
}

// Validate checks that the member has required fields.
func (m *Member) Validate() error {
	if m.UserID.IsZero() {
		return &ValidationError{Field: "user_id", Message: "cannot be zero"}
	}
	if m.ChannelID.IsZero() {
		return &ValidationError{Field: "channel_id", Message: "cannot be zero"}
	}
	return nil
}

// Override is the result of a channel-override lookup. Present
// distinguishes "no override configured" from "override intentionally
// set to zero"; both resolve to the same effective mask but audit
// differently.
type Override struct {
	Mask    uint32
	Present bool
}
