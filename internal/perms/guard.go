// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package perms

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms/audit"
	"github.com/guildhall/guildhall/internal/perms/flag"
)

var tracer = otel.Tracer("github.com/guildhall/guildhall/internal/perms")

// PermissionResolver is the resolution contract the guard consumes.
// Implemented by *Resolver and by the caching wrapper in the cache
// subpackage.
type PermissionResolver interface {
	GuildPermissions(ctx context.Context, u guild.User, g guild.Guild) (flag.GuildPermission, error)
	TextPermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.TextPermission, error)
	VoicePermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.VoicePermission, error)
}

// Guard is the boundary adapter action handlers call before mutating
// state. It translates a missing capability into a structured denial;
// an action must perform no side effects before Authorize allows it.
type Guard struct {
	resolver PermissionResolver
	audit    *audit.Logger
}

// NewGuard creates a Guard. If auditLogger is nil, decisions are not
// audited.
func NewGuard(resolver PermissionResolver, auditLogger *audit.Logger) *Guard {
	return &Guard{resolver: resolver, audit: auditLogger}
}

// Authorize checks that the user holds every capability the
// requirement names, in the given guild and (for channel-scoped flags)
// the given channel. Guild-scope and channel-scope checks must both
// pass independently; a guild grant never substitutes for a channel
// grant or vice versa.
//
// ch may be nil when the requirement names only guild flags.
func (gd *Guard) Authorize(ctx context.Context, u guild.User, g guild.Guild, ch *guild.Channel, req Requirement) (Decision, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Guard.Authorize")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", u.ID.String()),
		attribute.String("guild.id", g.ID.String()),
	)

	if req.Empty() {
		return Decision{}, oops.In("perms").
			Code("INVALID_REQUIREMENT").
			Errorf("requirement names no capability flags")
	}
	if req.Text != 0 && req.Voice != 0 {
		return Decision{}, oops.In("perms").
			Code("INVALID_REQUIREMENT").
			Errorf("requirement mixes text and voice vocabularies")
	}
	if req.NeedsChannel() && ch == nil {
		return Decision{}, oops.In("perms").
			Code("INVALID_REQUIREMENT").
			Errorf("channel-scoped requirement without a channel")
	}

	decision, err := gd.evaluate(ctx, u, g, ch, req)
	if err != nil {
		return Decision{}, err
	}

	if valErr := decision.Validate(); valErr != nil {
		return decision, oops.In("perms").Wrapf(valErr, "decision validation failed")
	}

	span.SetAttributes(
		attribute.String("decision.effect", decision.Effect.String()),
		attribute.Bool("decision.allowed", decision.IsAllowed()),
	)

	recordDecision(decision.Effect)
	gd.logDecision(ctx, u, g, ch, decision, time.Since(start))

	return decision, nil
}

func (gd *Guard) evaluate(ctx context.Context, u guild.User, g guild.Guild, ch *guild.Channel, req Requirement) (Decision, error) {
	if u.Banned {
		return NewDecision(EffectBannedDeny, "user is banned"), nil
	}

	guildMask, err := gd.resolver.GuildPermissions(ctx, u, g)
	if err != nil {
		return Decision{}, err
	}

	// Guild-scope check first: a missing guild flag denies regardless
	// of any channel grant.
	if !guildMask.Has(req.Guild) {
		d := NewDecision(EffectDeny, "missing guild capability")
		d.MissingGuild = guildMask.Missing(req.Guild)
		return d, nil
	}

	if !req.NeedsChannel() {
		return gd.allowEffect(u, g, guildMask, "guild capability granted"), nil
	}

	switch {
	case req.Text != 0:
		chMask, err := gd.resolver.TextPermissions(ctx, u, g, *ch)
		if err != nil {
			return Decision{}, err
		}
		if !chMask.Has(req.Text) {
			d := NewDecision(EffectDeny, "missing text channel capability")
			d.MissingText = chMask.Missing(req.Text)
			return d, nil
		}
	case req.Voice != 0:
		chMask, err := gd.resolver.VoicePermissions(ctx, u, g, *ch)
		if err != nil {
			return Decision{}, err
		}
		if !chMask.Has(req.Voice) {
			d := NewDecision(EffectDeny, "missing voice channel capability")
			d.MissingVoice = chMask.Missing(req.Voice)
			return d, nil
		}
	}

	return gd.allowEffect(u, g, guildMask, "guild and channel capabilities granted"), nil
}

// allowEffect labels an allowed decision with the mechanism that
// granted it, for audit precision. Ownership is reported ahead of
// Administrator since it is the stronger claim.
func (gd *Guard) allowEffect(u guild.User, g guild.Guild, guildMask flag.GuildPermission, reason string) Decision {
	switch {
	case u.ID == g.OwnerID:
		return NewDecision(EffectOwnerBypass, "guild owner")
	case guildMask.Has(flag.GuildAdministrator):
		return NewDecision(EffectAdminBypass, "administrator")
	default:
		return NewDecision(EffectAllow, reason)
	}
}

func (gd *Guard) logDecision(ctx context.Context, u guild.User, g guild.Guild, ch *guild.Channel, d Decision, elapsed time.Duration) {
	if gd.audit == nil {
		return
	}

	entry := audit.Entry{
		UserID:     u.ID.String(),
		GuildID:    g.ID.String(),
		Effect:     d.Effect.String(),
		Reason:     d.Reason,
		DurationUS: elapsed.Microseconds(),
		Timestamp:  time.Now(),
	}
	if ch != nil {
		entry.ChannelID = ch.ID.String()
	}
	entry.Missing = append(entry.Missing, d.MissingGuild.Names()...)
	entry.Missing = append(entry.Missing, d.MissingText.Names()...)
	entry.Missing = append(entry.Missing, d.MissingVoice.Names()...)

	if err := gd.audit.Log(ctx, entry); err != nil {
		// The decision stands; audit failure is logged and counted.
		slog.WarnContext(ctx, "audit log failed", "error", err)
	}
}
