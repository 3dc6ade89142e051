// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms"
	"github.com/guildhall/guildhall/internal/perms/audit"
	"github.com/guildhall/guildhall/internal/perms/cache"
	"github.com/guildhall/guildhall/internal/perms/flag"
)

// seedGuild creates an owner, a member, and a guild, returning all
// three persisted entities.
func seedGuild(ctx context.Context, name string) (*guild.User, *guild.User, *guild.Guild) {
	owner, err := guild.NewUser(name + "-owner")
	Expect(err).NotTo(HaveOccurred())
	Expect(env.Users.Create(ctx, owner)).To(Succeed())

	member, err := guild.NewUser(name + "-member")
	Expect(err).NotTo(HaveOccurred())
	Expect(env.Users.Create(ctx, member)).To(Succeed())

	g, err := guild.NewGuild(name, owner.ID)
	Expect(err).NotTo(HaveOccurred())
	Expect(env.Guilds.Create(ctx, g)).To(Succeed())

	return owner, member, g
}

// grantRole creates a role with the given mask and assigns it.
func grantRole(ctx context.Context, g *guild.Guild, u *guild.User, name string, mask flag.GuildPermission) *guild.Role {
	role, err := guild.NewRole(g.ID, name, mask)
	Expect(err).NotTo(HaveOccurred())
	Expect(env.Roles.Create(ctx, role)).To(Succeed())
	Expect(env.Roles.Assign(ctx, u.ID, role.ID)).To(Succeed())
	return role
}

var _ = Describe("Permission resolution", func() {
	var (
		ctx      context.Context
		resolver *perms.Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		resolver = perms.NewResolver(env.Roles, env.Members)
	})

	Describe("guild-level masks", func() {
		It("unions role masks for a regular member", func() {
			_, member, g := seedGuild(ctx, "union-guild")
			grantRole(ctx, g, member, "moderator", flag.GuildKickMembers)
			grantRole(ctx, g, member, "builder", flag.GuildManageChannels)

			mask, err := resolver.GuildPermissions(ctx, *member, *g)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.GuildKickMembers | flag.GuildManageChannels))
		})

		It("grants the owner every bit without any roles", func() {
			owner, _, g := seedGuild(ctx, "owner-guild")

			mask, err := resolver.GuildPermissions(ctx, *owner, *g)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.FullGuildMask))
		})

		It("saturates the mask when any role carries Administrator", func() {
			_, member, g := seedGuild(ctx, "admin-guild")
			grantRole(ctx, g, member, "admin", flag.GuildAdministrator)

			mask, err := resolver.GuildPermissions(ctx, *member, *g)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.FullGuildMask))
		})

		It("resolves a banned user to the empty set", func() {
			_, member, g := seedGuild(ctx, "ban-guild")
			grantRole(ctx, g, member, "moderator", flag.GuildKickMembers)
			Expect(env.Users.SetBanned(ctx, member.ID, true)).To(Succeed())
			member.Banned = true

			mask, err := resolver.GuildPermissions(ctx, *member, *g)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.GuildPermission(0)))
		})

		It("resolves a user with no roles to the empty set", func() {
			_, member, g := seedGuild(ctx, "empty-guild")

			mask, err := resolver.GuildPermissions(ctx, *member, *g)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.GuildPermission(0)))
		})
	})

	Describe("channel-level masks", func() {
		It("returns the stored override for a text channel", func() {
			_, member, g := seedGuild(ctx, "text-guild")
			ch, err := guild.NewChannel(g.ID, "war-room", guild.ChannelText)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Channels.Create(ctx, ch)).To(Succeed())

			m := &guild.Member{
				UserID:      member.ID,
				ChannelID:   ch.ID,
				Permissions: uint32(flag.TextViewChannel | flag.TextSendMessages),
				CreatedAt:   time.Now().UTC(),
			}
			Expect(env.Members.SetOverride(ctx, m)).To(Succeed())

			mask, err := resolver.TextPermissions(ctx, *member, *g, *ch)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.TextViewChannel | flag.TextSendMessages))
		})

		It("treats an intentionally zero override as zero, not absent", func() {
			_, member, g := seedGuild(ctx, "zero-guild")
			ch, err := guild.NewChannel(g.ID, "sealed", guild.ChannelText)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Channels.Create(ctx, ch)).To(Succeed())

			m := &guild.Member{
				UserID:    member.ID,
				ChannelID: ch.ID,
				CreatedAt: time.Now().UTC(),
			}
			Expect(env.Members.SetOverride(ctx, m)).To(Succeed())

			mask, err := resolver.TextPermissions(ctx, *member, *g, *ch)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.TextPermission(0)))

			override, err := env.Members.OverrideFor(ctx, member.ID, ch.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(override.Present).To(BeTrue())
		})

		It("gives an administrator every channel bit regardless of overrides", func() {
			_, member, g := seedGuild(ctx, "admin-chan-guild")
			grantRole(ctx, g, member, "admin", flag.GuildAdministrator)
			ch, err := guild.NewChannel(g.ID, "briefing", guild.ChannelVoice)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Channels.Create(ctx, ch)).To(Succeed())

			mask, err := resolver.VoicePermissions(ctx, *member, *g, *ch)
			Expect(err).NotTo(HaveOccurred())
			Expect(mask).To(Equal(flag.FullVoiceMask))
		})

		It("rejects a channel that belongs to another guild", func() {
			_, member, g := seedGuild(ctx, "cross-guild-a")
			_, _, other := seedGuild(ctx, "cross-guild-b")
			ch, err := guild.NewChannel(other.ID, "foreign", guild.ChannelText)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Channels.Create(ctx, ch)).To(Succeed())

			_, err = resolver.TextPermissions(ctx, *member, *g, *ch)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("guard authorization", func() {
		var guard *perms.Guard

		BeforeEach(func() {
			logger := audit.NewLogger(audit.ModeMinimal, audit.NewSlogWriter(nil))
			DeferCleanup(func() {
				Expect(logger.Close()).To(Succeed())
			})
			guard = perms.NewGuard(resolver, logger)
		})

		It("allows an action the member's roles cover", func() {
			_, member, g := seedGuild(ctx, "guard-allow")
			grantRole(ctx, g, member, "moderator", flag.GuildKickMembers)

			d, err := guard.Authorize(ctx, *member, *g, nil, perms.Requirement{Guild: flag.GuildKickMembers})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsAllowed()).To(BeTrue())
			Expect(d.Effect).To(Equal(perms.EffectAllow))
		})

		It("denies with the missing flags when roles fall short", func() {
			_, member, g := seedGuild(ctx, "guard-deny")
			grantRole(ctx, g, member, "moderator", flag.GuildKickMembers)

			d, err := guard.Authorize(ctx, *member, *g, nil, perms.Requirement{
				Guild: flag.GuildKickMembers | flag.GuildBanMembers,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsAllowed()).To(BeFalse())
			Expect(d.MissingGuild).To(Equal(flag.GuildBanMembers))
		})

		It("short-circuits a banned user before any other consideration", func() {
			owner, _, g := seedGuild(ctx, "guard-banned-owner")
			Expect(env.Users.SetBanned(ctx, owner.ID, true)).To(Succeed())
			owner.Banned = true

			d, err := guard.Authorize(ctx, *owner, *g, nil, perms.Requirement{Guild: flag.GuildManageGuild})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsAllowed()).To(BeFalse())
			Expect(d.Effect).To(Equal(perms.EffectBannedDeny))
		})

		It("checks channel requirements against the channel override", func() {
			_, member, g := seedGuild(ctx, "guard-channel")
			ch, err := guild.NewChannel(g.ID, "war-room", guild.ChannelText)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Channels.Create(ctx, ch)).To(Succeed())

			m := &guild.Member{
				UserID:      member.ID,
				ChannelID:   ch.ID,
				Permissions: uint32(flag.TextViewChannel),
				CreatedAt:   time.Now().UTC(),
			}
			Expect(env.Members.SetOverride(ctx, m)).To(Succeed())

			d, err := guard.Authorize(ctx, *member, *g, ch, perms.Requirement{Text: flag.TextViewChannel})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsAllowed()).To(BeTrue())

			d, err = guard.Authorize(ctx, *member, *g, ch, perms.Requirement{Text: flag.TextSendMessages})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.IsAllowed()).To(BeFalse())
			Expect(d.MissingText).To(Equal(flag.TextSendMessages))
		})
	})
})

var _ = Describe("Cache invalidation over LISTEN/NOTIFY", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	It("drops cached masks when a role changes", func() {
		_, member, g := seedGuild(ctx, "notify-guild")
		role := grantRole(ctx, g, member, "moderator", flag.GuildKickMembers)

		resolver := perms.NewResolver(env.Roles, env.Members)
		c := cache.New(resolver, cache.WithStalenessThreshold(time.Minute))
		listener := cache.NewPgListener(env.connStr)
		Expect(c.StartWithListener(ctx, listener)).To(Succeed())
		DeferCleanup(func() {
			cancel()
			c.Wait()
		})

		// Prime the cache once the listener is connected; the first
		// read may bypass the cache while the stream is warming up.
		Eventually(func() bool {
			return !c.IsStale()
		}, 10*time.Second, 100*time.Millisecond).Should(BeTrue())

		mask, err := c.GuildPermissions(ctx, *member, *g)
		Expect(err).NotTo(HaveOccurred())
		Expect(mask).To(Equal(flag.GuildKickMembers))

		role.Permissions = flag.GuildKickMembers | flag.GuildBanMembers
		Expect(env.Roles.Update(ctx, role)).To(Succeed())

		Eventually(func() (flag.GuildPermission, error) {
			return c.GuildPermissions(ctx, *member, *g)
		}, 10*time.Second, 100*time.Millisecond).Should(Equal(flag.GuildKickMembers | flag.GuildBanMembers))
	})

	It("drops cached channel masks when an override changes", func() {
		_, member, g := seedGuild(ctx, "notify-channel")
		ch, err := guild.NewChannel(g.ID, "war-room", guild.ChannelText)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Channels.Create(ctx, ch)).To(Succeed())

		m := &guild.Member{
			UserID:      member.ID,
			ChannelID:   ch.ID,
			Permissions: uint32(flag.TextViewChannel),
			CreatedAt:   time.Now().UTC(),
		}
		Expect(env.Members.SetOverride(ctx, m)).To(Succeed())

		resolver := perms.NewResolver(env.Roles, env.Members)
		c := cache.New(resolver, cache.WithStalenessThreshold(time.Minute))
		listener := cache.NewPgListener(env.connStr)
		Expect(c.StartWithListener(ctx, listener)).To(Succeed())
		DeferCleanup(func() {
			cancel()
			c.Wait()
		})

		Eventually(func() bool {
			return !c.IsStale()
		}, 10*time.Second, 100*time.Millisecond).Should(BeTrue())

		mask, err := c.TextPermissions(ctx, *member, *g, *ch)
		Expect(err).NotTo(HaveOccurred())
		Expect(mask).To(Equal(flag.TextViewChannel))

		m.Permissions = uint32(flag.TextViewChannel | flag.TextSendMessages)
		Expect(env.Members.SetOverride(ctx, m)).To(Succeed())

		Eventually(func() (flag.TextPermission, error) {
			return c.TextPermissions(ctx, *member, *g, *ch)
		}, 10*time.Second, 100*time.Millisecond).Should(Equal(flag.TextViewChannel | flag.TextSendMessages))
	})
})
