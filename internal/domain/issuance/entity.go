// internal/domain/issuance/entity.go
package issuance

import (
	"errors"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Metaplex DataV2 limits (bytes).
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

var (
	ErrMissingFeePayer       = errors.New("issuance: fee payer keypair is empty")
	ErrInvalidMetadataName   = errors.New("issuance: invalid metadata name")
	ErrInvalidMetadataSymbol = errors.New("issuance: invalid metadata symbol")
	ErrInvalidMetadataURI    = errors.New("issuance: invalid metadata uri")
	ErrMemoTooLong           = errors.New("issuance: memo is too long")
)

// MaxMemoLength keeps the memo inside a single transaction packet.
const MaxMemoLength = 566

// Metadata is the descriptive record attached to the asset.
// When URI is empty and Document is set, the document is published off-chain
// first and the resulting URI is used.
type Metadata struct {
	Name     string
	Symbol   string
	URI      string
	Mutable  bool
	Document []byte
}

// Request is one issue_asset call.
type Request struct {
	FeePayer      types.Account
	Decimals      uint8
	InitialSupply uint64 // whole units

	// Optional. Defaults to the fee payer.
	MintAuthority *types.Account
	// Optional. Receives the holding account; defaults to the fee payer.
	Owner           *common.PublicKey
	FreezeAuthority *common.PublicKey

	Metadata *Metadata
	Memo     string
}

// Validate checks caller input. Ledger-side preconditions are not checked here.
func (r Request) Validate() error {
	if isZeroKey(r.FeePayer.PublicKey) || len(r.FeePayer.PrivateKey) == 0 {
		return ErrMissingFeePayer
	}
	if r.MintAuthority != nil && (isZeroKey(r.MintAuthority.PublicKey) || len(r.MintAuthority.PrivateKey) == 0) {
		return errors.New("issuance: mint authority keypair is empty")
	}
	if _, err := ToSmallestUnit(r.InitialSupply, r.Decimals); err != nil {
		return err
	}
	if len(r.Memo) > MaxMemoLength {
		return ErrMemoTooLong
	}
	if r.Metadata != nil {
		return r.Metadata.Validate()
	}
	return nil
}

// Validate checks the Metaplex length limits. An empty URI is allowed only
// when a Document will be published.
func (m Metadata) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidMetadataName
	}
	if len(strings.TrimSpace(m.Symbol)) > MaxSymbolLength {
		return ErrInvalidMetadataSymbol
	}
	uri := strings.TrimSpace(m.URI)
	if len(uri) > MaxURILength {
		return ErrInvalidMetadataURI
	}
	if uri == "" && len(m.Document) == 0 {
		return ErrInvalidMetadataURI
	}
	return nil
}

// MintAuthorityKey returns the key that signs InitializeMint/MintTo.
func (r Request) MintAuthorityKey() types.Account {
	if r.MintAuthority != nil {
		return *r.MintAuthority
	}
	return r.FeePayer
}

// HoldingOwner returns the wallet that owns the associated holding account.
func (r Request) HoldingOwner() common.PublicKey {
	if r.Owner != nil && !isZeroKey(*r.Owner) {
		return *r.Owner
	}
	return r.FeePayer.PublicKey
}

// AccountSpec describes an account created by the issuance.
type AccountSpec struct {
	Address         common.PublicKey
	Owner           common.PublicKey
	Size            uint64
	RequiredBalance uint64
}

// Anchor is a recent blockhash plus the last block height at which it is still accepted.
type Anchor struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

func (a Anchor) IsZero() bool { return strings.TrimSpace(a.Blockhash) == "" }

// Transaction is a fully assembled unit ready for submission.
// Signers[i] owns Raw.Signatures[i].
type Transaction struct {
	Instructions []types.Instruction
	FeePayer     common.PublicKey
	Anchor       Anchor
	Signers      []common.PublicKey
	Raw          types.Transaction
}

// Receipt is the ledger's proof of inclusion.
type Receipt struct {
	Signature          string
	Slot               uint64
	ConfirmationStatus string
}

// IssueReceipt is returned to the caller of issue_asset.
type IssueReceipt struct {
	Mint            common.PublicKey
	HoldingAccount  common.PublicKey
	MetadataAccount *common.PublicKey
	Amount          uint64 // smallest unit
	HoldingBalance  uint64
	MetadataURI     string
	Receipt         Receipt
}

// Record is what the journal stores for a confirmed issuance.
type Record struct {
	Mint           string
	HoldingAccount string
	Owner          string
	FeePayer       string
	Decimals       uint8
	Amount         uint64
	Signature      string
	Name           string
	Symbol         string
	URI            string
	IssuedAt       time.Time
}

// NewRecord builds a journal record from a request and its receipt.
func NewRecord(req Request, rc IssueReceipt, now time.Time) Record {
	rec := Record{
		Mint:           rc.Mint.ToBase58(),
		HoldingAccount: rc.HoldingAccount.ToBase58(),
		Owner:          req.HoldingOwner().ToBase58(),
		FeePayer:       req.FeePayer.PublicKey.ToBase58(),
		Decimals:       req.Decimals,
		Amount:         rc.Amount,
		Signature:      rc.Receipt.Signature,
		URI:            rc.MetadataURI,
		IssuedAt:       now.UTC(),
	}
	if req.Metadata != nil {
		rec.Name = strings.TrimSpace(req.Metadata.Name)
		rec.Symbol = strings.TrimSpace(req.Metadata.Symbol)
	}
	return rec
}

func isZeroKey(k common.PublicKey) bool {
	return k == common.PublicKey{}
}

// IssuancesTableDDL defines the journal table for the Postgres backend.
const IssuancesTableDDL = `
CREATE TABLE IF NOT EXISTS issuances (
  mint_address     TEXT        PRIMARY KEY,
  holding_account  TEXT        NOT NULL,
  owner            TEXT        NOT NULL,
  fee_payer        TEXT        NOT NULL,
  decimals         SMALLINT    NOT NULL,
  amount           NUMERIC(20) NOT NULL,
  tx_signature     TEXT        NOT NULL,
  name             TEXT,
  symbol           TEXT,
  uri              TEXT,
  issued_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),

  CONSTRAINT chk_issuances_mint_non_empty CHECK (char_length(trim(mint_address)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_issuances_owner     ON issuances(owner);
CREATE INDEX IF NOT EXISTS idx_issuances_issued_at ON issuances(issued_at);
`
