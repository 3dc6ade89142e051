// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package guild

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelKind_Valid(t *testing.T) {
	tests := []struct {
		kind ChannelKind
		want bool
	}{
		{ChannelText, true},
		{ChannelVoice, true},
		{ChannelCategory, true},
		{ChannelKind("dm"), false},
		{ChannelKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Valid())
		})
	}
}

func TestNewChannel(t *testing.T) {
	guildID := ulid.Make()
	c, err := NewChannel(guildID, "war-room", ChannelText)
	require.NoError(t, err)

	assert.False(t, c.ID.IsZero())
	assert.Equal(t, guildID, c.GuildID)
	assert.Equal(t, ChannelText, c.Kind)
	assert.Nil(t, c.ParentID)
}

func TestNewChannel_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		guildID   ulid.ULID
		chanName  string
		kind      ChannelKind
		wantField string
	}{
		{
			name:      "zero guild",
			guildID:   ulid.ULID{},
			chanName:  "war-room",
			kind:      ChannelText,
			wantField: "guild_id",
		},
		{
			name:      "unknown kind",
			guildID:   ulid.Make(),
			chanName:  "war-room",
			kind:      ChannelKind("dm"),
			wantField: "kind",
		},
		{
			name:      "empty name",
			guildID:   ulid.Make(),
			chanName:  "",
			kind:      ChannelVoice,
			wantField: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChannel(tt.guildID, tt.chanName, tt.kind)
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestChannel_SetParentID(t *testing.T) {
	c, err := NewChannel(ulid.Make(), "war-room", ChannelText)
	require.NoError(t, err)

	parent := ulid.Make()
	require.NoError(t, c.SetParentID(&parent))
	assert.Equal(t, parent, *c.ParentID)

	require.NoError(t, c.SetParentID(nil))
	assert.Nil(t, c.ParentID)

	zero := ulid.ULID{}
	err = c.SetParentID(&zero)
	require.Error(t, err)
	assert.Nil(t, c.ParentID)
}

func TestChannel_Validate_ZeroParent(t *testing.T) {
	zero := ulid.ULID{}
	c := Channel{
		ID:       ulid.Make(),
		GuildID:  ulid.Make(),
		Name:     "war-room",
		Kind:     ChannelText,
		ParentID: &zero,
	}

	err := c.Validate()
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "parent_id", vErr.Field)
}

func TestMember_Validate(t *testing.T) {
	tests := []struct {
		name      string
		member    Member
		wantField string
	}{
		{
			name:   "valid",
			member: Member{UserID: ulid.Make(), ChannelID: ulid.Make()},
		},
		{
			name:      "zero user",
			member:    Member{ChannelID: ulid.Make()},
			wantField: "user_id",
		},
		{
			name:      "zero channel",
			member:    Member{UserID: ulid.Make()},
			wantField: "channel_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.member.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}
