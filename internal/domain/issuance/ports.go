package issuance

import (
	"context"
	"errors"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

var (
	ErrAlreadyRecorded = errors.New("issuance: record already exists")
	ErrRecordNotFound  = errors.New("issuance: record not found")
)

// Transport is the network collaborator: anchors in, receipts out.
type Transport interface {
	LatestAnchor(ctx context.Context) (Anchor, error)
	SubmitAndConfirm(ctx context.Context, tx Transaction) (Receipt, error)
}

// BalanceOracle returns the rent-exempt minimum for an account size.
type BalanceOracle interface {
	MinimumExemptBalance(ctx context.Context, size uint64) (uint64, error)
}

// KeySource supplies the fee payer keypair.
type KeySource interface {
	FeePayer(ctx context.Context) (types.Account, error)
}

// AccountReader reads ledger state for the pre-check and the balance read-back.
type AccountReader interface {
	AccountExists(ctx context.Context, address common.PublicKey) (bool, error)
	TokenBalance(ctx context.Context, holding common.PublicKey) (uint64, error)
}

// Journal persists confirmed issuances.
type Journal interface {
	Record(ctx context.Context, rec Record) error
}

// History is a journal that can be queried back.
type History interface {
	Journal
	GetByMint(ctx context.Context, mint string) (Record, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]Record, error)
}

// MetadataPublisher stores the off-chain metadata document and returns its URI.
type MetadataPublisher interface {
	Publish(ctx context.Context, name string, document []byte) (string, error)
}

// Notifier announces a confirmed issuance.
type Notifier interface {
	NotifyIssued(ctx context.Context, rec Record) error
}
