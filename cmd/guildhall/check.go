// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/guildhall/guildhall/internal/config"
	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/guild/postgres"
	"github.com/guildhall/guildhall/internal/logging"
	"github.com/guildhall/guildhall/internal/perms"
	"github.com/guildhall/guildhall/internal/perms/audit"
	"github.com/guildhall/guildhall/internal/perms/flag"
	"github.com/guildhall/guildhall/internal/store"
)

// checkConfig holds flags for the check command.
type checkConfig struct {
	userID     string
	guildID    string
	channelID  string
	guildFlags []string
	textFlags  []string
	voiceFlags []string
	jsonOutput bool
}

// checkResult is the serializable outcome of a one-shot authorization.
type checkResult struct {
	Allowed      bool     `json:"allowed"`
	Effect       string   `json:"effect"`
	Reason       string   `json:"reason,omitempty"`
	MissingGuild []string `json:"missing_guild,omitempty"`
	MissingText  []string `json:"missing_text,omitempty"`
	MissingVoice []string `json:"missing_voice,omitempty"`
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Authorize a single request against the database",
		Long: `Resolve a user's effective permissions and evaluate one requirement.
Useful for operators verifying why a request was allowed or denied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&cfg.userID, "user", "", "user ULID (required)")
	cmd.Flags().StringVar(&cfg.guildID, "guild", "", "guild ULID (required)")
	cmd.Flags().StringVar(&cfg.channelID, "channel", "", "channel ULID (required for text/voice flags)")
	cmd.Flags().StringSliceVar(&cfg.guildFlags, "require-guild", nil, "required guild flags (e.g. ManageGuild,KickMembers)")
	cmd.Flags().StringSliceVar(&cfg.textFlags, "require-text", nil, "required text flags (e.g. SendMessages)")
	cmd.Flags().StringSliceVar(&cfg.voiceFlags, "require-voice", nil, "required voice flags (e.g. Connect,Speak)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output the decision as JSON")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("guild")

	return cmd
}

func runCheck(cmd *cobra.Command, cc *checkConfig) error {
	cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}
	logging.SetDefault("guildhall", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	if cfg.DatabaseURL == "" {
		return oops.In("check").
			Code("CONFIG_INVALID").
			Errorf("database_url is required (flag, config file, or GUILDHALL_DATABASE_URL)")
	}

	req, err := buildRequirement(cc)
	if err != nil {
		return err
	}

	userID, err := parseULIDArg(cc.userID, "user")
	if err != nil {
		return err
	}
	guildID, err := parseULIDArg(cc.guildID, "guild")
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := postgres.NewUserRepository(pool)
	guilds := postgres.NewGuildRepository(pool)
	channels := postgres.NewChannelRepository(pool)
	roles := postgres.NewRoleRepository(pool)
	members := postgres.NewMemberRepository(pool)

	u, err := users.Get(ctx, userID)
	if err != nil {
		return err
	}
	g, err := guilds.Get(ctx, guildID)
	if err != nil {
		return err
	}

	var ch *guild.Channel
	if cc.channelID != "" {
		channelID, parseErr := parseULIDArg(cc.channelID, "channel")
		if parseErr != nil {
			return parseErr
		}
		ch, err = channels.Get(ctx, channelID)
		if err != nil {
			return err
		}
	}

	resolver := perms.NewResolver(roles, members)
	auditLogger := audit.NewLogger(audit.Mode(cfg.AuditMode), audit.NewSlogWriter(slog.Default()))
	defer func() { _ = auditLogger.Close() }()
	guard := perms.NewGuard(resolver, auditLogger)

	decision, err := guard.Authorize(ctx, *u, *g, ch, req)
	if err != nil {
		return err
	}

	return printDecision(cmd, decision, cc.jsonOutput)
}

// buildRequirement parses the flag-name lists into a typed requirement.
func buildRequirement(cc *checkConfig) (perms.Requirement, error) {
	var req perms.Requirement

	if len(cc.guildFlags) > 0 {
		mask, err := flag.ParseGuildFlags(cc.guildFlags)
		if err != nil {
			return req, err
		}
		req.Guild = mask
	}
	if len(cc.textFlags) > 0 {
		mask, err := flag.ParseTextFlags(cc.textFlags)
		if err != nil {
			return req, err
		}
		req.Text = mask
	}
	if len(cc.voiceFlags) > 0 {
		mask, err := flag.ParseVoiceFlags(cc.voiceFlags)
		if err != nil {
			return req, err
		}
		req.Voice = mask
	}

	return req, nil
}

func parseULIDArg(s, name string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.In("check").
			Code("INVALID_ARGUMENT").
			With(name, s).
			Wrap(err)
	}
	return id, nil
}

func printDecision(cmd *cobra.Command, d perms.Decision, asJSON bool) error {
	result := checkResult{
		Allowed:      d.IsAllowed(),
		Effect:       d.Effect.String(),
		Reason:       d.Reason,
		MissingGuild: d.MissingGuild.Names(),
		MissingText:  d.MissingText.Names(),
		MissingVoice: d.MissingVoice.Names(),
	}

	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return oops.In("check").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	if result.Allowed {
		cmd.Printf("ALLOWED (%s)\n", result.Effect)
		return nil
	}

	cmd.Printf("DENIED (%s)\n", result.Effect)
	if result.Reason != "" {
		cmd.Printf("  reason: %s\n", result.Reason)
	}
	printMissing(cmd, "guild", result.MissingGuild)
	printMissing(cmd, "text", result.MissingText)
	printMissing(cmd, "voice", result.MissingVoice)
	return nil
}

func printMissing(cmd *cobra.Command, vocab string, names []string) {
	if len(names) == 0 {
		return
	}
	cmd.Printf("  missing %s: %s\n", vocab, strings.Join(names, ", "))
}
