// Command cobuy-server runs the per-merchant co-purchase recommender.
//
// With no subcommand it serves the HTTP API. The train, merchant and migrate
// subcommands operate on the configured backend directly, without a running
// server. Configuration is read from the environment (see internal/config).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/cobuy/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cobuy-server",
		Short:        "Per-merchant co-purchase recommender",
		Version:      config.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
	root.SetVersionTemplate("cobuy-server {{.Version}}\n")

	root.AddCommand(newTrainCmd())
	root.AddCommand(newMerchantCmd())
	root.AddCommand(newMigrateCmd())

	return root
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, err
	}

	return cfg, newLogger(cfg.LogLevel), nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("log_level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
