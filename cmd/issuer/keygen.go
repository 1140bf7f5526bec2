// cmd/issuer/keygen.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"narratives-mint/internal/infra/solana"
)

type keygenOptions struct {
	out         string
	force       bool
	prefix      string
	ignoreCase  bool
	workers     int
	maxAttempts uint64
	showSecret  bool
}

// newKeygenCmd generates a fee payer / mint authority wallet. The keypair is
// written in solana-keygen's JSON array format and the address is printed.
func newKeygenCmd(a *app) *cobra.Command {
	var o keygenOptions
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a Solana keypair file, optionally with a vanity address prefix.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, attempts, err := generateKey(cmd, o)
			if err != nil {
				return err
			}
			if err := writeKeypair(o.out, acc, o.force); err != nil {
				return err
			}
			a.logger.Info("[keygen] keypair written",
				zap.String("path", o.out),
				zap.String("address", acc.PublicKey.ToBase58()),
				zap.Uint64("attempts", attempts),
			)
			return printKey(cmd.OutOrStdout(), o, acc)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.out, "out", "o", "narratives-mint-authority.json", "keypair file to write")
	f.BoolVar(&o.force, "force", false, "overwrite an existing keypair file")
	f.StringVar(&o.prefix, "prefix", "", "required base58 address prefix")
	f.BoolVar(&o.ignoreCase, "ignore-case", false, "match the prefix case-insensitively")
	f.IntVar(&o.workers, "workers", runtime.NumCPU(), "parallel search workers for --prefix")
	f.Uint64Var(&o.maxAttempts, "max-attempts", 0, "give up after this many keys (0: unbounded)")
	f.BoolVar(&o.showSecret, "show-secret", false, "also print the base58 secret (SECRET_KEY format)")
	return cmd
}

func generateKey(cmd *cobra.Command, o keygenOptions) (types.Account, uint64, error) {
	if o.prefix == "" {
		return types.NewAccount(), 1, nil
	}
	match, err := solana.PrefixMatcher(o.prefix, o.ignoreCase)
	if err != nil {
		return types.Account{}, 0, err
	}
	res, err := solana.Search(cmd.Context(), solana.SearchOptions{
		Workers:     o.workers,
		MaxAttempts: o.maxAttempts,
		Match:       match,
	})
	if err != nil {
		if errors.Is(err, solana.ErrVanityExhausted) {
			return types.Account{}, res.Attempts, fmt.Errorf("no address with prefix %q after %d attempts", o.prefix, res.Attempts)
		}
		return types.Account{}, res.Attempts, err
	}
	return res.Account, res.Attempts, nil
}

func writeKeypair(path string, acc types.Account, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return solana.WriteKeypairFile(path, acc)
}

func printKey(w io.Writer, o keygenOptions, acc types.Account) error {
	fmt.Fprintln(w, "=== Narratives mint wallet ===")
	fmt.Fprintf(w, "address (base58): %s\n", acc.PublicKey.ToBase58())
	fmt.Fprintf(w, "keypair file:     %s\n", o.out)
	if o.showSecret {
		fmt.Fprintf(w, "secret (base58):  %s\n", solana.EncodeBase58Secret(acc))
	}
	fmt.Fprintln(w, "Keep the keypair file out of version control.")
	return nil
}
