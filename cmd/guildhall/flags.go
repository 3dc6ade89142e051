// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/guildhall/guildhall/internal/perms/flag"
)

// flagsConfig holds flags for the flags command.
type flagsConfig struct {
	vocab string
	match string
}

// NewFlagsCmd creates the flags subcommand.
func NewFlagsCmd() *cobra.Command {
	cfg := &flagsConfig{}

	cmd := &cobra.Command{
		Use:   "flags",
		Short: "List permission flags by vocabulary",
		Long: `List the flag names of the guild, text, and voice permission
vocabularies. An optional glob pattern filters the names.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlags(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.vocab, "vocab", "", "vocabulary to list (guild, text, or voice; default all)")
	cmd.Flags().StringVar(&cfg.match, "match", "", "glob pattern to filter flag names (e.g. 'Manage*')")

	return cmd
}

func runFlags(cmd *cobra.Command, cfg *flagsConfig) error {
	vocabularies := []flag.Vocabulary{flag.VocabularyGuild, flag.VocabularyText, flag.VocabularyVoice}
	if cfg.vocab != "" {
		v := flag.Vocabulary(cfg.vocab)
		switch v {
		case flag.VocabularyGuild, flag.VocabularyText, flag.VocabularyVoice:
			vocabularies = []flag.Vocabulary{v}
		default:
			return oops.In("flags").
				Code("INVALID_ARGUMENT").
				With("vocab", cfg.vocab).
				Errorf("vocab must be 'guild', 'text', or 'voice'")
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VOCABULARY\tFLAG")

	for _, v := range vocabularies {
		var names []string
		var err error
		if cfg.match != "" {
			names, err = flag.MatchNames(v, cfg.match)
			if err != nil {
				return err
			}
		} else {
			names = flag.FlagNames(v)
		}
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", v, name)
		}
	}

	return w.Flush()
}
