// internal/domain/issuance/errors.go
package issuance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
)

// Kind classifies a failed issuance so the caller can decide whether to retry.
type Kind string

const (
	KindOracleUnavailable      Kind = "OracleUnavailable"
	KindIncompleteSignatureSet Kind = "IncompleteSignatureSet"
	KindAnchorExpired          Kind = "AnchorExpired"
	KindInstructionRejected    Kind = "InstructionRejected"
	KindTransportError         Kind = "TransportError"
)

// Sentinels for errors.Is. A *SubmitError matches the sentinel of its Kind.
var (
	ErrOracleUnavailable      = errors.New("issuance: balance oracle unavailable")
	ErrIncompleteSignatureSet = errors.New("issuance: incomplete signature set")
	ErrAnchorExpired          = errors.New("issuance: anchor expired")
	ErrInstructionRejected    = errors.New("issuance: instruction rejected")
	ErrTransportError         = errors.New("issuance: transport error")
)

// NoInstruction marks a SubmitError that does not point at a specific instruction.
const NoInstruction = -1

// SubmitError is the structured failure surfaced by every stage of the pipeline.
type SubmitError struct {
	Kind   Kind
	Detail string

	// Address is the offending account, when known (missing signer, existing holding account).
	Address *common.PublicKey
	// InstructionIndex is the failed instruction's position, or NoInstruction.
	InstructionIndex int

	Err error
}

func NewSubmitError(kind Kind, detail string, err error) *SubmitError {
	return &SubmitError{Kind: kind, Detail: detail, InstructionIndex: NoInstruction, Err: err}
}

func (e *SubmitError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("issuance: ")
	b.WriteString(string(e.Kind))
	if e.InstructionIndex >= 0 {
		fmt.Fprintf(&b, " instruction=%d", e.InstructionIndex)
	}
	if e.Address != nil {
		fmt.Fprintf(&b, " address=%s", e.Address.ToBase58())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SubmitError) Unwrap() error { return e.Err }

func (e *SubmitError) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

// Retryable reports whether the whole flow may be retried from a fresh anchor.
// Rejected instructions and signature problems fail identically on retry.
func (e *SubmitError) Retryable() bool {
	switch e.Kind {
	case KindAnchorExpired, KindTransportError, KindOracleUnavailable:
		return true
	default:
		return false
	}
}

func sentinel(k Kind) error {
	switch k {
	case KindOracleUnavailable:
		return ErrOracleUnavailable
	case KindIncompleteSignatureSet:
		return ErrIncompleteSignatureSet
	case KindAnchorExpired:
		return ErrAnchorExpired
	case KindInstructionRejected:
		return ErrInstructionRejected
	case KindTransportError:
		return ErrTransportError
	}
	return nil
}

// AsSubmitError unwraps err into a *SubmitError.
func AsSubmitError(err error) (*SubmitError, bool) {
	var se *SubmitError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not a SubmitError.
func KindOf(err error) Kind {
	if se, ok := AsSubmitError(err); ok {
		return se.Kind
	}
	return ""
}
