// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package flag defines the permission flag vocabularies.
//
// Three vocabularies exist: guild-wide permissions, text-channel
// permissions, and voice-channel permissions. Each is a distinct tagged
// uint32 type so a mask from one vocabulary can never be tested against
// another without an explicit conversion, which this package does not
// provide. Masks combine by bitwise OR and are tested by containment
// (mask & flag == flag).
//
// Bits above the known range are reserved for future flags. Reserved
// bits round-trip through serialization unchanged and never satisfy a
// named-flag containment test.
package flag

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// GuildPermission is a guild-vocabulary flag set. A single flag is a
// single set bit; a mask is any union of flags.
type GuildPermission uint32

// Guild-vocabulary flags. Bit positions are a stable, versioned layout:
// once assigned, a position is never reused for a different meaning.
const (
	GuildAdministrator   GuildPermission = 1 << 0
	GuildManageGuild     GuildPermission = 1 << 1
	GuildManageChannels  GuildPermission = 1 << 2
	GuildManageRoles     GuildPermission = 1 << 3
	GuildAssignRoles     GuildPermission = 1 << 4
	GuildRemoveRoles     GuildPermission = 1 << 5
	GuildKickMembers     GuildPermission = 1 << 6
	GuildBanMembers      GuildPermission = 1 << 7
	GuildCreateInvites   GuildPermission = 1 << 8
	GuildManageInvites   GuildPermission = 1 << 9
	GuildViewAuditLog    GuildPermission = 1 << 10
	GuildMentionEveryone GuildPermission = 1 << 11
)

// KnownGuildMask is the union of all named guild flags.
const KnownGuildMask GuildPermission = GuildAdministrator | GuildManageGuild |
	GuildManageChannels | GuildManageRoles | GuildAssignRoles | GuildRemoveRoles |
	GuildKickMembers | GuildBanMembers | GuildCreateInvites | GuildManageInvites |
	GuildViewAuditLog | GuildMentionEveryone

// FullGuildMask is the saturated mask granted to guild owners and
// administrators. All bits are set, including reserved ones, so that
// flags added later are implied without re-resolving stored grants.
const FullGuildMask GuildPermission = ^GuildPermission(0)

// TextPermission is a text-channel-vocabulary flag set.
type TextPermission uint32

// Text-channel-vocabulary flags.
const (
	TextViewChannel        TextPermission = 1 << 0
	TextSendMessages       TextPermission = 1 << 1
	TextReadMessageHistory TextPermission = 1 << 2
	TextManageMessages     TextPermission = 1 << 3
	TextEmbedLinks         TextPermission = 1 << 4
	TextAttachFiles        TextPermission = 1 << 5
	TextAddReactions       TextPermission = 1 << 6
	TextPinMessages        TextPermission = 1 << 7
)

// KnownTextMask is the union of all named text-channel flags.
const KnownTextMask TextPermission = TextViewChannel | TextSendMessages |
	TextReadMessageHistory | TextManageMessages | TextEmbedLinks |
	TextAttachFiles | TextAddReactions | TextPinMessages

// FullTextMask is the saturated text-channel mask.
const FullTextMask TextPermission = ^TextPermission(0)

// VoicePermission is a voice-channel-vocabulary flag set.
type VoicePermission uint32

// Voice-channel-vocabulary flags.
const (
	VoiceConnect          VoicePermission = 1 << 0
	VoiceSpeak            VoicePermission = 1 << 1
	VoiceStream           VoicePermission = 1 << 2
	VoiceMuteMembers      VoicePermission = 1 << 3
	VoiceDeafenMembers    VoicePermission = 1 << 4
	VoiceMoveMembers      VoicePermission = 1 << 5
	VoiceUseVoiceActivity VoicePermission = 1 << 6
	VoicePrioritySpeaker  VoicePermission = 1 << 7
)

// KnownVoiceMask is the union of all named voice-channel flags.
const KnownVoiceMask VoicePermission = VoiceConnect | VoiceSpeak | VoiceStream |
	VoiceMuteMembers | VoiceDeafenMembers | VoiceMoveMembers |
	VoiceUseVoiceActivity | VoicePrioritySpeaker

// FullVoiceMask is the saturated voice-channel mask.
const FullVoiceMask VoicePermission = ^VoicePermission(0)

// Has reports whether every flag in want is contained in the mask.
func (p GuildPermission) Has(want GuildPermission) bool {
	return p&want == want
}

// Missing returns the flags in want that are absent from the mask.
func (p GuildPermission) Missing(want GuildPermission) GuildPermission {
	return want &^ p
}

// Has reports whether every flag in want is contained in the mask.
func (p TextPermission) Has(want TextPermission) bool {
	return p&want == want
}

// Missing returns the flags in want that are absent from the mask.
func (p TextPermission) Missing(want TextPermission) TextPermission {
	return want &^ p
}

// Has reports whether every flag in want is contained in the mask.
func (p VoicePermission) Has(want VoicePermission) bool {
	return p&want == want
}

// Missing returns the flags in want that are absent from the mask.
func (p VoicePermission) Missing(want VoicePermission) VoicePermission {
	return want &^ p
}

var guildFlagNames = []struct {
	flag GuildPermission
	name string
}{
	{GuildAdministrator, "Administrator"},
	{GuildManageGuild, "ManageGuild"},
	{GuildManageChannels, "ManageChannels"},
	{GuildManageRoles, "ManageRoles"},
	{GuildAssignRoles, "AssignRoles"},
	{GuildRemoveRoles, "RemoveRoles"},
	{GuildKickMembers, "KickMembers"},
	{GuildBanMembers, "BanMembers"},
	{GuildCreateInvites, "CreateInvites"},
	{GuildManageInvites, "ManageInvites"},
	{GuildViewAuditLog, "ViewAuditLog"},
	{GuildMentionEveryone, "MentionEveryone"},
}

var textFlagNames = []struct {
	flag TextPermission
	name string
}{
	{TextViewChannel, "ViewChannel"},
	{TextSendMessages, "SendMessages"},
	{TextReadMessageHistory, "ReadMessageHistory"},
	{TextManageMessages, "ManageMessages"},
	{TextEmbedLinks, "EmbedLinks"},
	{TextAttachFiles, "AttachFiles"},
	{TextAddReactions, "AddReactions"},
	{TextPinMessages, "PinMessages"},
}

var voiceFlagNames = []struct {
	flag VoicePermission
	name string
}{
	{VoiceConnect, "Connect"},
	{VoiceSpeak, "Speak"},
	{VoiceStream, "Stream"},
	{VoiceMuteMembers, "MuteMembers"},
	{VoiceDeafenMembers, "DeafenMembers"},
	{VoiceMoveMembers, "MoveMembers"},
	{VoiceUseVoiceActivity, "UseVoiceActivity"},
	{VoicePrioritySpeaker, "PrioritySpeaker"},
}

// Names returns the names of the known flags set in the mask.
// Reserved bits are ignored.
func (p GuildPermission) Names() []string {
	names := make([]string, 0, len(guildFlagNames))
	for _, f := range guildFlagNames {
		if p.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return names
}

// Names returns the names of the known flags set in the mask.
func (p TextPermission) Names() []string {
	names := make([]string, 0, len(textFlagNames))
	for _, f := range textFlagNames {
		if p.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return names
}

// Names returns the names of the known flags set in the mask.
func (p VoicePermission) Names() []string {
	names := make([]string, 0, len(voiceFlagNames))
	for _, f := range voiceFlagNames {
		if p.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return names
}

func (p GuildPermission) String() string { return maskString(p.Names(), uint32(p)) }
func (p TextPermission) String() string  { return maskString(p.Names(), uint32(p)) }
func (p VoicePermission) String() string { return maskString(p.Names(), uint32(p)) }

func maskString(names []string, bits uint32) string {
	if bits == 0 {
		return "(none)"
	}
	if len(names) == 0 {
		return "(reserved)"
	}
	return strings.Join(names, "|")
}

// Vocabulary identifies one of the three flag vocabularies.
type Vocabulary string

// Vocabulary constants.
const (
	VocabularyGuild Vocabulary = "guild"
	VocabularyText  Vocabulary = "text"
	VocabularyVoice Vocabulary = "voice"
)

// FlagNames returns the flag names of a vocabulary in bit order.
func FlagNames(v Vocabulary) []string {
	switch v {
	case VocabularyGuild:
		names := make([]string, 0, len(guildFlagNames))
		for _, f := range guildFlagNames {
			names = append(names, f.name)
		}
		return names
	case VocabularyText:
		names := make([]string, 0, len(textFlagNames))
		for _, f := range textFlagNames {
			names = append(names, f.name)
		}
		return names
	case VocabularyVoice:
		names := make([]string, 0, len(voiceFlagNames))
		for _, f := range voiceFlagNames {
			names = append(names, f.name)
		}
		return names
	default:
		return nil
	}
}

// MatchNames returns the flag names of a vocabulary matching a glob
// pattern, e.g. "Manage*". Used by operator tooling.
func MatchNames(v Vocabulary, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.In("perms").
			Code("INVALID_FLAG_PATTERN").
			With("pattern", pattern).
			Wrap(err)
	}
	var matched []string
	for _, name := range FlagNames(v) {
		if g.Match(name) {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// ParseGuildFlags resolves flag names to a guild mask.
// Unknown names are an error, never silently dropped.
func ParseGuildFlags(names []string) (GuildPermission, error) {
	var mask GuildPermission
	for _, name := range names {
		found := false
		for _, f := range guildFlagNames {
			if f.name == name {
				mask |= f.flag
				found = true
				break
			}
		}
		if !found {
			return 0, oops.In("perms").
				Code("UNKNOWN_FLAG").
				With("vocabulary", VocabularyGuild).
				With("name", name).
				Errorf("unknown guild flag %q", name)
		}
	}
	return mask, nil
}

// ParseTextFlags resolves flag names to a text-channel mask.
func ParseTextFlags(names []string) (TextPermission, error) {
	var mask TextPermission
	for _, name := range names {
		found := false
		for _, f := range textFlagNames {
			if f.name == name {
				mask |= f.flag
				found = true
				break
			}
		}
		if !found {
			return 0, oops.In("perms").
				Code("UNKNOWN_FLAG").
				With("vocabulary", VocabularyText).
				With("name", name).
				Errorf("unknown text flag %q", name)
		}
	}
	return mask, nil
}

// ParseVoiceFlags resolves flag names to a voice-channel mask.
func ParseVoiceFlags(names []string) (VoicePermission, error) {
	var mask VoicePermission
	for _, name := range names {
		found := false
		for _, f := range voiceFlagNames {
			if f.name == name {
				mask |= f.flag
				found = true
				break
			}
		}
		if !found {
			return 0, oops.In("perms").
				Code("UNKNOWN_FLAG").
				With("vocabulary", VocabularyVoice).
				With("name", name).
				Errorf("unknown voice flag %q", name)
		}
	}
	return mask, nil
}
