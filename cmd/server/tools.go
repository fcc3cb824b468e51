package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"portfolio-web/internal/auth"
	"portfolio-web/internal/feed"
	"portfolio-web/internal/tracker"
)

func newFeedCmd() *cobra.Command {
	var withFallback bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Fetch the configured feed once and print the extracted articles as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			items, err := newFeedService(cfg, logger).Recent(cmd.Context())
			source := feed.FromFeed
			if withFallback {
				items, source = feed.WithFallback(items, cfg.Feed.Fallback)
			} else if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"articles": items, "source": source})
		},
	}
	cmd.Flags().BoolVar(&withFallback, "fallback", false, "print the static list when the feed yields nothing")
	return cmd
}

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <file.yaml>",
		Short: "Replay a scroll trace through the section tracker and print each state change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			tr, err := tracker.LoadTrace(args[0])
			if err != nil {
				return err
			}
			steps := tracker.Replay(tr, cfg.TrackerOptions(), tracker.WithLogger(logger))
			return printSteps(cmd.OutOrStdout(), steps)
		},
	}
}

func printSteps(w io.Writer, steps []tracker.Step) error {
	for _, s := range steps {
		active := "-"
		if s.State.HasActive {
			active = s.State.Active
		}
		if _, err := fmt.Fprintf(w, "%8s  active=%-20s transitioning=%-5t hero=%t\n",
			s.At, active, s.State.Transitioning, s.State.HeroVisible); err != nil {
			return err
		}
	}
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for auth.admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
