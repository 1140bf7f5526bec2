// internal/infra/solana/composer.go
package solana

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/compute_budget"
	"github.com/blocto/solana-go-sdk/program/memo"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	issuance "narratives-mint/internal/domain/issuance"
)

// Step names one logical instruction of an issuance.
type Step string

const (
	StepPriorityFee       Step = "set_compute_unit_price"
	StepCreateMintAccount Step = "create_mint_account"
	StepInitializeMint    Step = "initialize_mint"
	StepCreateHolding     Step = "create_holding_account"
	StepMintTo            Step = "mint_to"
	StepCreateMetadata    Step = "create_metadata"
	StepMemo              Step = "memo"
)

var (
	ErrComposeMissingKey     = errors.New("composer: required key is empty")
	ErrComposeZeroBalance    = errors.New("composer: mint account balance is zero")
	ErrComposeInvalidRequest = errors.New("composer: invalid metadata")
)

// MetadataParams is the Metaplex record attached after minting.
type MetadataParams struct {
	Name    string
	Symbol  string
	URI     string
	Mutable bool
}

// ComposeParams carries already-derived keys and amounts. Nothing here touches the network.
type ComposeParams struct {
	FeePayer        common.PublicKey
	Mint            common.PublicKey
	MintAuthority   common.PublicKey
	FreezeAuthority *common.PublicKey
	Owner           common.PublicKey

	Decimals    uint8
	Amount      uint64 // smallest unit
	MintBalance uint64 // rent-exempt lamports for the mint account

	// SkipHoldingAccount omits the create-holding-account step. MintTo still
	// targets the derived holding address; the ledger decides whether it exists.
	SkipHoldingAccount bool

	PriorityFeeMicroLamports uint64
	Metadata                 *MetadataParams
	Memo                     string
}

// Composition is the ordered instruction list plus the addresses it touches.
type Composition struct {
	Instructions    []types.Instruction
	Steps           []Step
	Mint            issuance.AccountSpec
	HoldingAccount  common.PublicKey
	MetadataAccount *common.PublicKey
}

// Index returns the instruction index of step, or issuance.NoInstruction.
func (c Composition) Index(step Step) int {
	for i, s := range c.Steps {
		if s == step {
			return i
		}
	}
	return issuance.NoInstruction
}

// StepAt names the instruction at index i.
func (c Composition) StepAt(i int) Step {
	if i < 0 || i >= len(c.Steps) {
		return ""
	}
	return c.Steps[i]
}

// Compose builds the issuance instructions in their fixed order:
// [priority fee], create mint account, initialize mint, [create holding account],
// mint to, [metadata], [memo].
func Compose(p ComposeParams) (Composition, error) {
	if err := p.validate(); err != nil {
		return Composition{}, err
	}

	holding, _, err := FindAssociatedHoldingAddress(p.Owner, p.Mint)
	if err != nil {
		return Composition{}, fmt.Errorf("composer: derive holding account: %w", err)
	}

	c := Composition{
		Instructions: make([]types.Instruction, 0, 7),
		Steps:        make([]Step, 0, 7),
		Mint: issuance.AccountSpec{
			Address:         p.Mint,
			Owner:           TokenProgramID,
			Size:            MintAccountSize,
			RequiredBalance: p.MintBalance,
		},
		HoldingAccount: holding,
	}
	add := func(step Step, ix types.Instruction) {
		c.Steps = append(c.Steps, step)
		c.Instructions = append(c.Instructions, ix)
	}

	if p.PriorityFeeMicroLamports > 0 {
		add(StepPriorityFee, compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{
			MicroLamports: p.PriorityFeeMicroLamports,
		}))
	}

	// 1) mint account, funded to the exempt balance and owned by the token program
	add(StepCreateMintAccount, system.CreateAccount(system.CreateAccountParam{
		From:     p.FeePayer,
		New:      p.Mint,
		Owner:    TokenProgramID,
		Lamports: p.MintBalance,
		Space:    MintAccountSize,
	}))

	// 2) asset descriptor
	add(StepInitializeMint, token.InitializeMint(token.InitializeMintParam{
		Decimals:   p.Decimals,
		Mint:       p.Mint,
		MintAuth:   p.MintAuthority,
		FreezeAuth: p.FreezeAuthority,
	}))

	// 3) owner's holding account; Create (not CreateIdempotent) fails the transaction if it exists
	if !p.SkipHoldingAccount {
		add(StepCreateHolding, associated_token_account.Create(associated_token_account.CreateParam{
			Funder:                 p.FeePayer,
			Owner:                  p.Owner,
			Mint:                   p.Mint,
			AssociatedTokenAccount: holding,
		}))
	}

	// 4) initial supply
	add(StepMintTo, token.MintTo(token.MintToParam{
		Mint:   p.Mint,
		To:     holding,
		Auth:   p.MintAuthority,
		Amount: p.Amount,
	}))

	// 5) metadata record
	if p.Metadata != nil {
		metadataPubkey, _, err := FindMetadataAddress(p.Mint)
		if err != nil {
			return Composition{}, fmt.Errorf("composer: derive metadata account: %w", err)
		}
		c.MetadataAccount = &metadataPubkey
		add(StepCreateMetadata, token_metadata.CreateMetadataAccountV3(
			token_metadata.CreateMetadataAccountV3Param{
				Metadata:                metadataPubkey,
				Mint:                    p.Mint,
				MintAuthority:           p.MintAuthority,
				UpdateAuthority:         p.MintAuthority,
				Payer:                   p.FeePayer,
				UpdateAuthorityIsSigner: true,
				IsMutable:               p.Metadata.Mutable,
				Data: token_metadata.DataV2{
					Name:                 strings.TrimSpace(p.Metadata.Name),
					Symbol:               strings.TrimSpace(p.Metadata.Symbol),
					Uri:                  strings.TrimSpace(p.Metadata.URI),
					SellerFeeBasisPoints: 0,
				},
				CollectionDetails: nil,
			},
		))
	}

	if m := strings.TrimSpace(p.Memo); m != "" {
		add(StepMemo, memo.BuildMemo(memo.BuildMemoParam{
			SignerPubkeys: []common.PublicKey{p.FeePayer},
			Memo:          []byte(m),
		}))
	}

	return c, nil
}

func (p ComposeParams) validate() error {
	zero := common.PublicKey{}
	for _, k := range []struct {
		name string
		key  common.PublicKey
	}{
		{"fee payer", p.FeePayer},
		{"mint", p.Mint},
		{"mint authority", p.MintAuthority},
		{"owner", p.Owner},
	} {
		if k.key == zero {
			return fmt.Errorf("%w: %s", ErrComposeMissingKey, k.name)
		}
	}
	if p.FreezeAuthority != nil && *p.FreezeAuthority == zero {
		return fmt.Errorf("%w: freeze authority", ErrComposeMissingKey)
	}
	if p.MintBalance == 0 {
		return ErrComposeZeroBalance
	}
	if _, err := issuance.Pow10(p.Decimals); err != nil {
		return err
	}
	if p.Metadata != nil {
		md := issuance.Metadata{Name: p.Metadata.Name, Symbol: p.Metadata.Symbol, URI: p.Metadata.URI}
		if err := md.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrComposeInvalidRequest, err)
		}
	}
	return nil
}
