// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package perms

import (
	"fmt"

	"github.com/guildhall/guildhall/internal/perms/flag"
)

// Effect represents the evaluated outcome of an authorization check.
type Effect int

// Effect constants define the possible outcomes of authorization.
const (
	EffectDeny        Effect = iota // deny
	EffectAllow                     // allow
	EffectOwnerBypass               // owner_bypass
	EffectAdminBypass               // admin_bypass
	EffectBannedDeny                // banned_deny
)

var effectStrings = [...]string{
	"deny",
	"allow",
	"owner_bypass",
	"admin_bypass",
	"banned_deny",
}

func (e Effect) String() string {
	if e >= 0 && int(e) < len(effectStrings) {
		return effectStrings[e]
	}
	return fmt.Sprintf("unknown(%d)", int(e))
}

// Requirement names the capability flags an action needs. Guild and
// channel requirements are checked independently and must both pass;
// there is no implicit OR between vocabularies. At most one of Text and
// Voice may be non-zero per request, matching the channel's kind.
type Requirement struct {
	Guild flag.GuildPermission
	Text  flag.TextPermission
	Voice flag.VoicePermission
}

// Empty reports whether the requirement names no flags at all.
func (r Requirement) Empty() bool {
	return r.Guild == 0 && r.Text == 0 && r.Voice == 0
}

// NeedsChannel reports whether the requirement includes channel-scoped
// flags and therefore needs a channel to check against.
func (r Requirement) NeedsChannel() bool {
	return r.Text != 0 || r.Voice != 0
}

// Decision is the result of an authorization check. The allowed field
// is unexported to prevent invariant bypass: it is derived from the
// effect at construction and verified by Validate at guard boundaries.
//
// A denied decision carries the specific missing flags for
// observability. It never reveals state beyond that; whether the caller
// may see the guild at all is a visibility precondition enforced
// before the guard is consulted.
type Decision struct {
	allowed bool
	Effect  Effect
	Reason  string

	MissingGuild flag.GuildPermission
	MissingText  flag.TextPermission
	MissingVoice flag.VoicePermission
}

// NewDecision creates a Decision with the allowed field set
// consistently from the effect: Allow and the two bypasses grant
// access, Deny and BannedDeny do not.
func NewDecision(effect Effect, reason string) Decision {
	allowed := effect == EffectAllow || effect == EffectOwnerBypass || effect == EffectAdminBypass
	return Decision{
		allowed: allowed,
		Effect:  effect,
		Reason:  reason,
	}
}

// IsAllowed returns whether the decision grants access.
func (d Decision) IsAllowed() bool {
	return d.allowed
}

// Validate checks that the Decision invariant holds: the allowed field
// must be consistent with the Effect. Called at guard return
// boundaries.
func (d Decision) Validate() error {
	expectAllowed := d.Effect == EffectAllow || d.Effect == EffectOwnerBypass || d.Effect == EffectAdminBypass
	if d.allowed != expectAllowed {
		return fmt.Errorf(
			"decision invariant violated: allowed=%v but effect=%s",
			d.allowed, d.Effect,
		)
	}
	return nil
}
