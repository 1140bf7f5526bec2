// cmd/issuer/request.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	issuance "narratives-mint/internal/domain/issuance"
)

// requestInput is one issuance as given on the command line or in a batch file.
type requestInput struct {
	Decimals        uint8  `json:"decimals"`
	Supply          uint64 `json:"supply"`
	Owner           string `json:"owner,omitempty"`
	FreezeAuthority string `json:"freezeAuthority,omitempty"`
	Name            string `json:"name,omitempty"`
	Symbol          string `json:"symbol,omitempty"`
	URI             string `json:"uri,omitempty"`
	// MetadataFile is a JSON document published off-chain when URI is empty.
	MetadataFile string `json:"metadataFile,omitempty"`
	Mutable      bool   `json:"mutable,omitempty"`
	Memo         string `json:"memo,omitempty"`
}

func (s requestInput) toRequest(feePayer types.Account, mintAuthority *types.Account) (issuance.Request, error) {
	req := issuance.Request{
		FeePayer:      feePayer,
		MintAuthority: mintAuthority,
		Decimals:      s.Decimals,
		InitialSupply: s.Supply,
		Memo:          strings.TrimSpace(s.Memo),
	}

	var err error
	if req.Owner, err = parseOptionalPubkey("owner", s.Owner); err != nil {
		return issuance.Request{}, err
	}
	if req.FreezeAuthority, err = parseOptionalPubkey("freeze authority", s.FreezeAuthority); err != nil {
		return issuance.Request{}, err
	}

	if s.Name != "" || s.Symbol != "" || s.URI != "" || s.MetadataFile != "" {
		md := &issuance.Metadata{
			Name:    s.Name,
			Symbol:  s.Symbol,
			URI:     s.URI,
			Mutable: s.Mutable,
		}
		if s.MetadataFile != "" {
			doc, err := os.ReadFile(s.MetadataFile)
			if err != nil {
				return issuance.Request{}, fmt.Errorf("read metadata file: %w", err)
			}
			if !json.Valid(doc) {
				return issuance.Request{}, fmt.Errorf("metadata file %s is not valid JSON", s.MetadataFile)
			}
			md.Document = doc
		}
		req.Metadata = md
	}
	return req, nil
}

func parseOptionalPubkey(field, s string) (*common.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != common.PublicKeyLength {
		return nil, fmt.Errorf("invalid %s address %q", field, s)
	}
	pk := common.PublicKeyFromBytes(raw)
	return &pk, nil
}

func loadRequestFile(path string) ([]requestInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs []requestInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s contains no requests", path)
	}
	return inputs, nil
}

// receiptView is the printed form of an IssueReceipt.
type receiptView struct {
	Mint            string `json:"mint"`
	HoldingAccount  string `json:"holdingAccount"`
	MetadataAccount string `json:"metadataAccount,omitempty"`
	Amount          uint64 `json:"amount"`
	HoldingBalance  uint64 `json:"holdingBalance"`
	MetadataURI     string `json:"metadataUri,omitempty"`
	Signature       string `json:"signature"`
	Slot            uint64 `json:"slot"`
	Status          string `json:"status"`
}

func newReceiptView(rc issuance.IssueReceipt) receiptView {
	v := receiptView{
		Mint:           rc.Mint.ToBase58(),
		HoldingAccount: rc.HoldingAccount.ToBase58(),
		Amount:         rc.Amount,
		HoldingBalance: rc.HoldingBalance,
		MetadataURI:    rc.MetadataURI,
		Signature:      rc.Receipt.Signature,
		Slot:           rc.Receipt.Slot,
		Status:         rc.Receipt.ConfirmationStatus,
	}
	if rc.MetadataAccount != nil {
		v.MetadataAccount = rc.MetadataAccount.ToBase58()
	}
	return v
}
