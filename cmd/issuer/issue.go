// cmd/issuer/issue.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"narratives-mint/internal/application/usecase"
	issuance "narratives-mint/internal/domain/issuance"
)

func newIssueCmd(a *app) *cobra.Command {
	var in requestInput
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue one asset and mint its initial supply.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			payer, err := c.FeePayer(ctx)
			if err != nil {
				return fmt.Errorf("load fee payer: %w", err)
			}
			auth, err := c.MintAuthority(ctx)
			if err != nil {
				return err
			}
			req, err := in.toRequest(payer, auth)
			if err != nil {
				return err
			}

			rc, err := c.Issue.IssueAsset(ctx, req)
			if err != nil && !errors.Is(err, usecase.ErrPostConfirmation) {
				if se, ok := issuance.AsSubmitError(err); ok && se.Retryable() {
					a.logger.Warn("[issuer] issuance failed but may be retried", zap.String("kind", string(se.Kind)))
				}
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), newReceiptView(rc)); perr != nil {
				return perr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.Uint8VarP(&in.Decimals, "decimals", "d", 0, "decimal places of the asset")
	f.Uint64VarP(&in.Supply, "supply", "s", 0, "initial supply in whole units")
	f.StringVar(&in.Owner, "owner", "", "wallet receiving the initial supply (default: fee payer)")
	f.StringVar(&in.FreezeAuthority, "freeze-authority", "", "optional freeze authority address")
	f.StringVar(&in.Name, "name", "", "metadata name")
	f.StringVar(&in.Symbol, "symbol", "", "metadata symbol")
	f.StringVar(&in.URI, "uri", "", "metadata uri")
	f.StringVar(&in.MetadataFile, "metadata-file", "", "JSON document to publish when --uri is empty")
	f.BoolVar(&in.Mutable, "mutable", true, "whether the metadata can be updated later")
	f.StringVar(&in.Memo, "memo", "", "memo attached to the transaction")
	_ = cmd.MarkFlagRequired("supply")
	return cmd
}
