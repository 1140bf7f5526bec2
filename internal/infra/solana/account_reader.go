// internal/infra/solana/account_reader.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blocto/solana-go-sdk/common"

	issuance "narratives-mint/internal/domain/issuance"
)

// AccountRPC is the subset of JSONRPCClient used by LedgerReader.
type AccountRPC interface {
	GetAccountExists(ctx context.Context, address string, commitment string) (bool, error)
	GetTokenAccountBalance(ctx context.Context, address string, commitment string) (uint64, error)
	GetTokenAccountsByOwner(ctx context.Context, owner string, programID string) (GetTokenAccountsByOwnerResult, error)
}

// LedgerReader implements issuance.AccountReader and lists token holdings of a wallet.
type LedgerReader struct {
	Client     AccountRPC
	Commitment string
}

var _ issuance.AccountReader = (*LedgerReader)(nil)

func NewLedgerReader(client AccountRPC, commitment string) *LedgerReader {
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	return &LedgerReader{Client: client, Commitment: commitment}
}

func (r *LedgerReader) AccountExists(ctx context.Context, address common.PublicKey) (bool, error) {
	if r == nil || r.Client == nil {
		return false, fmt.Errorf("ledger reader: client not configured")
	}
	return r.Client.GetAccountExists(ctx, address.ToBase58(), r.Commitment)
}

// TokenBalance returns the raw amount held by a token account; an absent account holds 0.
func (r *LedgerReader) TokenBalance(ctx context.Context, holding common.PublicKey) (uint64, error) {
	if r == nil || r.Client == nil {
		return 0, fmt.Errorf("ledger reader: client not configured")
	}
	amt, err := r.Client.GetTokenAccountBalance(ctx, holding.ToBase58(), r.Commitment)
	if errors.Is(err, ErrRPCAccountNotFound) {
		return 0, nil
	}
	return amt, err
}

// Holding is one non-empty token account of a wallet.
type Holding struct {
	Mint           string
	HoldingAccount string
	Amount         uint64
	Decimals       int
}

// ListHoldings returns the wallet's non-zero token accounts, one per mint in
// first-seen order. Amounts of duplicate accounts for a mint are summed.
func (r *LedgerReader) ListHoldings(ctx context.Context, walletAddress string) ([]Holding, error) {
	if r == nil || r.Client == nil {
		return nil, fmt.Errorf("ledger reader: client not configured")
	}
	addr := strings.TrimSpace(walletAddress)
	if addr == "" {
		return nil, fmt.Errorf("ledger reader: walletAddress is empty")
	}

	res, err := r.Client.GetTokenAccountsByOwner(ctx, addr, TokenProgramID.ToBase58())
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(res.Value))
	out := make([]Holding, 0, len(res.Value))
	for _, v := range res.Value {
		info := v.Account.Data.Parsed.Info
		mint := strings.TrimSpace(info.Mint)
		if mint == "" {
			continue
		}
		amt, err := strconv.ParseUint(strings.TrimSpace(info.TokenAmount.Amount), 10, 64)
		if err != nil || amt == 0 {
			continue
		}
		if i, ok := index[mint]; ok {
			out[i].Amount += amt
			continue
		}
		index[mint] = len(out)
		out = append(out, Holding{
			Mint:           mint,
			HoldingAccount: v.Pubkey,
			Amount:         amt,
			Decimals:       info.TokenAmount.Decimals,
		})
	}
	return out, nil
}

// ListOwnedTokenMints returns the mints the wallet holds a non-zero balance of.
func (r *LedgerReader) ListOwnedTokenMints(ctx context.Context, walletAddress string) ([]string, error) {
	hs, err := r.ListHoldings(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Mint)
	}
	return out, nil
}
