// internal/infra/solana/assembler.go
package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	issuance "narratives-mint/internal/domain/issuance"
)

var (
	ErrNoInstructions = errors.New("assembler: no instructions")
	ErrEmptyAnchor    = errors.New("assembler: anchor blockhash is empty")
	ErrEmptyFeePayer  = errors.New("assembler: fee payer is empty")
)

// Assemble compiles instructions into a message citing anchor. Instruction
// order is preserved; blocto orders the account table with the fee payer first.
func Assemble(instructions []types.Instruction, feePayer common.PublicKey, anchor issuance.Anchor) (types.Message, error) {
	if len(instructions) == 0 {
		return types.Message{}, ErrNoInstructions
	}
	if feePayer == (common.PublicKey{}) {
		return types.Message{}, ErrEmptyFeePayer
	}
	if anchor.IsZero() {
		return types.Message{}, ErrEmptyAnchor
	}
	return types.NewMessage(types.NewMessageParam{
		FeePayer:        feePayer,
		RecentBlockhash: anchor.Blockhash,
		Instructions:    instructions,
	}), nil
}

// RequiredSigners returns the accounts that must sign msg, in signature-slot order.
func RequiredSigners(msg types.Message) []common.PublicKey {
	n := int(msg.Header.NumRequireSignatures)
	if n > len(msg.Accounts) {
		n = len(msg.Accounts)
	}
	out := make([]common.PublicKey, n)
	copy(out, msg.Accounts[:n])
	return out
}

// Sign assembles and signs in one step. Every required signer must be present
// in keys; the first missing one is reported as IncompleteSignatureSet.
// Keys that are not required are ignored.
func Sign(instructions []types.Instruction, feePayer common.PublicKey, anchor issuance.Anchor, keys ...types.Account) (issuance.Transaction, error) {
	msg, err := Assemble(instructions, feePayer, anchor)
	if err != nil {
		return issuance.Transaction{}, err
	}
	payload, err := msg.Serialize()
	if err != nil {
		return issuance.Transaction{}, fmt.Errorf("assembler: serialize message: %w", err)
	}

	byKey := make(map[common.PublicKey]types.Account, len(keys))
	for _, k := range keys {
		byKey[k.PublicKey] = k
	}

	signers := RequiredSigners(msg)
	sigs := make([]types.Signature, len(signers))
	for i, pk := range signers {
		acc, ok := byKey[pk]
		if !ok || len(acc.PrivateKey) != ed25519.PrivateKeySize {
			return issuance.Transaction{}, missingSigner(pk, "no private key supplied")
		}
		sigs[i] = ed25519.Sign(acc.PrivateKey, payload)
	}

	return issuance.Transaction{
		Instructions: instructions,
		FeePayer:     feePayer,
		Anchor:       anchor,
		Signers:      signers,
		Raw: types.Transaction{
			Signatures: sigs,
			Message:    msg,
		},
	}, nil
}

// VerifySignatures re-checks every signature slot against the serialized
// message. A transaction that fails here must never be submitted.
func VerifySignatures(tx issuance.Transaction) error {
	required := RequiredSigners(tx.Raw.Message)
	if len(required) == 0 {
		return issuance.NewSubmitError(issuance.KindIncompleteSignatureSet, "message requires no signers", nil)
	}
	payload, err := tx.Raw.Message.Serialize()
	if err != nil {
		return fmt.Errorf("assembler: serialize message: %w", err)
	}
	for i, pk := range required {
		if i >= len(tx.Raw.Signatures) {
			return missingSigner(pk, "signature slot missing")
		}
		sig := tx.Raw.Signatures[i]
		if len(sig) != ed25519.SignatureSize || isZeroSignature(sig) {
			return missingSigner(pk, "signature absent")
		}
		if !ed25519.Verify(ed25519.PublicKey(pk.Bytes()), payload, sig) {
			return missingSigner(pk, "signature does not verify")
		}
	}
	return nil
}

func missingSigner(pk common.PublicKey, detail string) *issuance.SubmitError {
	se := issuance.NewSubmitError(issuance.KindIncompleteSignatureSet, detail, nil)
	addr := pk
	se.Address = &addr
	return se
}

func isZeroSignature(sig []byte) bool {
	for _, b := range sig {
		if b != 0 {
			return false
		}
	}
	return true
}
