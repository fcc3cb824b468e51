// Portfolio web service
// =====================
//
// Serves the writing feed shown on the portfolio site and carries the
// operator tooling around it:
//
//	server serve                 HTTP API (default)
//	server feed                  fetch the feed once and print the articles
//	server trace <file.yaml>     replay a scripted scroll session through the section tracker
//	server hash-password <pass>  print a bcrypt hash for auth.admin_password_hash
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-web/internal/config"
	"portfolio-web/internal/feed"
	"portfolio-web/internal/logging"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Portfolio site backend",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newFeedCmd(),
		newTraceCmd(),
		newHashPasswordCmd(),
	)
	return root
}

// setup loads config and builds the logger every subcommand shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newFeedService(cfg *config.Config, logger *zap.Logger) *feed.Service {
	fetcher := feed.NewFetcher(cfg.Feed.Timeout, cfg.Feed.UserAgent, cfg.Feed.MinInterval)
	cache := feed.NewCache(cfg.Feed.CacheTTL)
	return feed.NewService(cfg.Feed.URL, cfg.Feed.MaxItems, fetcher, cache, logger)
}
