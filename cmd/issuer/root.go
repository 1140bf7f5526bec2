// cmd/issuer/root.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"narratives-mint/internal/infra/config"
	"narratives-mint/internal/infra/logging"
	"narratives-mint/internal/platform/di"
)

// app holds what the subcommands share. Config and logger are resolved in
// PersistentPreRunE; the container is built only by commands that touch the ledger.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "issuer",
		Short:         "Issue fungible assets on Solana.",
		Long:          `Creates a mint, its owner's holding account and the initial supply in one atomic transaction.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "overrides log.level")

	root.AddCommand(
		newIssueCmd(a),
		newBatchCmd(a),
		newKeygenCmd(a),
		newHoldingsCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) container(ctx context.Context) (*di.Container, error) {
	c, err := di.Build(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init container: %w", err)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
