// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package perms

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms/flag"
)

// Resolver computes effective permission masks. It is a pure function
// over its inputs: no internal mutable state, no locks, safe for
// concurrent use. The role and override sources are the only reads it
// performs; callers wanting snapshot consistency supply sources backed
// by a single snapshot.
//
// Every ambiguity, missing datum, or internal fault resolves to the
// empty mask, never an elevated one.
type Resolver struct {
	roles     guild.RoleSource
	overrides guild.OverrideSource
}

// NewResolver creates a Resolver over the given sources.
func NewResolver(roles guild.RoleSource, overrides guild.OverrideSource) *Resolver {
	return &Resolver{roles: roles, overrides: overrides}
}

// GuildPermissions computes the effective guild-vocabulary mask for a
// user in a guild.
//
// Precedence: ban short-circuit, then ownership, then role union with
// Administrator saturation. A banned owner resolves to empty: the ban
// takes precedence over ownership.
func (r *Resolver) GuildPermissions(ctx context.Context, u guild.User, g guild.Guild) (flag.GuildPermission, error) {
	start := time.Now()
	defer func() { recordResolution(flag.VocabularyGuild, time.Since(start)) }()

	if u.Banned {
		return 0, nil
	}
	if u.ID == g.OwnerID {
		return flag.FullGuildMask, nil
	}

	roles, err := r.roles.RolesForUser(ctx, u.ID, g.ID)
	if err != nil {
		return 0, oops.In("perms").
			Code("ROLE_READ_FAILED").
			With("user_id", u.ID.String()).
			With("guild_id", g.ID.String()).
			Wrap(err)
	}

	var mask flag.GuildPermission
	for _, role := range roles {
		if role.GuildID != g.ID {
			// A role from another guild reaching this resolution is a
			// storage-layer fault. Skip it rather than fail the whole
			// resolution: the skipped grant can only lower the mask.
			recordInconsistentReference("role")
			slog.WarnContext(ctx, "role from foreign guild in resolution",
				"role_id", role.ID.String(),
				"role_guild_id", role.GuildID.String(),
				"guild_id", g.ID.String(),
				"user_id", u.ID.String())
			continue
		}
		mask |= role.Permissions
	}

	if mask.Has(flag.GuildAdministrator) {
		return flag.FullGuildMask, nil
	}
	return mask, nil
}

// TextPermissions computes the effective text-vocabulary mask for a
// user on a text channel. Administrator (and therefore ownership)
// bypasses overrides entirely; otherwise the direct override row for
// this exact channel is the only source. Parent channels contribute
// nothing.
func (r *Resolver) TextPermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.TextPermission, error) {
	start := time.Now()
	defer func() { recordResolution(flag.VocabularyText, time.Since(start)) }()

	mask, err := r.channelBits(ctx, u, g, ch, guild.ChannelText)
	return flag.TextPermission(mask), err
}

// VoicePermissions computes the effective voice-vocabulary mask for a
// user on a voice channel.
func (r *Resolver) VoicePermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.VoicePermission, error) {
	start := time.Now()
	defer func() { recordResolution(flag.VocabularyVoice, time.Since(start)) }()

	mask, err := r.channelBits(ctx, u, g, ch, guild.ChannelVoice)
	return flag.VoicePermission(mask), err
}

// channelBits resolves the raw channel-scoped bits shared by the text
// and voice paths. The caller tags them with the right vocabulary type.
func (r *Resolver) channelBits(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel, kind guild.ChannelKind) (uint32, error) {
	if ch.Kind != kind {
		return 0, oops.In("perms").
			Code("CHANNEL_KIND_MISMATCH").
			With("channel_id", ch.ID.String()).
			With("kind", string(ch.Kind)).
			With("want", string(kind)).
			Errorf("channel is not a %s channel", kind)
	}
	if ch.GuildID != g.ID {
		// Caller passed a channel from another guild. Fail closed and
		// surface it: resolving against the wrong guild must never
		// silently produce a grant.
		recordInconsistentReference("channel")
		return 0, oops.In("perms").
			Code("INCONSISTENT_REFERENCE").
			With("channel_id", ch.ID.String()).
			With("channel_guild_id", ch.GuildID.String()).
			With("guild_id", g.ID.String()).
			Errorf("channel belongs to a different guild")
	}

	guildMask, err := r.GuildPermissions(ctx, u, g)
	if err != nil {
		return 0, err
	}
	if u.Banned {
		return 0, nil
	}
	if guildMask.Has(flag.GuildAdministrator) {
		return ^uint32(0), nil
	}

	override, err := r.overrides.OverrideFor(ctx, u.ID, ch.ID)
	if err != nil {
		return 0, oops.In("perms").
			Code("OVERRIDE_READ_FAILED").
			With("user_id", u.ID.String()).
			With("channel_id", ch.ID.String()).
			Wrap(err)
	}
	if !override.Present {
		return 0, nil
	}
	return override.Mask, nil
}

// HasGuildCapability reports whether the user's effective guild mask
// contains every flag in want.
func (r *Resolver) HasGuildCapability(ctx context.Context, u guild.User, g guild.Guild, want flag.GuildPermission) (bool, error) {
	mask, err := r.GuildPermissions(ctx, u, g)
	if err != nil {
		return false, err
	}
	return mask.Has(want), nil
}

// HasTextCapability reports whether the user's effective mask on a text
// channel contains every flag in want.
func (r *Resolver) HasTextCapability(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel, want flag.TextPermission) (bool, error) {
	mask, err := r.TextPermissions(ctx, u, g, ch)
	if err != nil {
		return false, err
	}
	return mask.Has(want), nil
}

// HasVoiceCapability reports whether the user's effective mask on a
// voice channel contains every flag in want.
func (r *Resolver) HasVoiceCapability(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel, want flag.VoicePermission) (bool, error) {
	mask, err := r.VoicePermissions(ctx, u, g, ch)
	if err != nil {
		return false, err
	}
	return mask.Has(want), nil
}
