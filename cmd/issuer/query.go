// cmd/issuer/query.go
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	issuance "narratives-mint/internal/domain/issuance"
)

func newHoldingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings <wallet>",
		Short: "List the non-zero token holdings of a wallet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			holdings, err := c.Reader.ListHoldings(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), holdings)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		mint  string
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Look up journaled issuances by mint or owner.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (mint == "") == (owner == "") {
				return errors.New("exactly one of --mint or --owner is required")
			}
			ctx := cmd.Context()
			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if c.History == nil {
				return fmt.Errorf("journal backend is %q; nothing to query", a.cfg.Journal.Backend)
			}
			if mint != "" {
				rec, err := c.History.GetByMint(ctx, mint)
				if errors.Is(err, issuance.ErrRecordNotFound) {
					return fmt.Errorf("no issuance recorded for mint %s", mint)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			}
			recs, err := c.History.ListByOwner(ctx, owner, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
	f := cmd.Flags()
	f.StringVar(&mint, "mint", "", "mint address")
	f.StringVar(&owner, "owner", "", "owner wallet address")
	f.IntVar(&limit, "limit", 50, "max records for --owner")
	return cmd
}
