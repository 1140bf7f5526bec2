// internal/infra/solana/transport.go
package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"go.uber.org/zap"

	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/logging"
)

// TransactionSender submits a signed transaction. *client.Client satisfies it.
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
}

// ChainReader is the read side the transport needs. *JSONRPCClient satisfies it.
type ChainReader interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (LatestBlockhash, error)
	GetBlockHeight(ctx context.Context, commitment string) (uint64, error)
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)
}

const (
	defaultPollInterval     = 500 * time.Millisecond
	maxConsecutivePollFails = 5
)

// Transport implements issuance.Transport on top of a Solana RPC node.
// It holds no per-issuance state and is safe for concurrent use.
type Transport struct {
	sender       TransactionSender
	reader       ChainReader
	commitment   string
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ issuance.Transport = (*Transport)(nil)

func NewTransport(sender TransactionSender, reader ChainReader, commitment string, pollInterval time.Duration, logger *zap.Logger) *Transport {
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		sender:       sender,
		reader:       reader,
		commitment:   commitment,
		pollInterval: pollInterval,
		logger:       logger.Named("transport"),
	}
}

// LatestAnchor fetches a fresh blockhash. Call it immediately before assembly.
func (t *Transport) LatestAnchor(ctx context.Context) (issuance.Anchor, error) {
	latest, err := t.reader.GetLatestBlockhash(ctx, t.commitment)
	if err != nil {
		return issuance.Anchor{}, issuance.NewSubmitError(issuance.KindTransportError, "getLatestBlockhash", err)
	}
	return issuance.Anchor{
		Blockhash:            latest.Blockhash,
		LastValidBlockHeight: latest.LastValidBlockHeight,
	}, nil
}

// SubmitAndConfirm sends tx once and blocks until the configured commitment is
// reached, the anchor expires, the ledger rejects it, or ctx is done.
// Once SendTransaction has returned, cancelling ctx does not recall the transaction.
func (t *Transport) SubmitAndConfirm(ctx context.Context, tx issuance.Transaction) (issuance.Receipt, error) {
	if tx.Anchor.LastValidBlockHeight > 0 {
		height, err := t.reader.GetBlockHeight(ctx, t.commitment)
		if err != nil {
			return issuance.Receipt{}, issuance.NewSubmitError(issuance.KindTransportError, "getBlockHeight", err)
		}
		if height > tx.Anchor.LastValidBlockHeight {
			return issuance.Receipt{}, anchorExpired(tx.Anchor, height)
		}
	}

	sig, err := t.sender.SendTransaction(ctx, tx.Raw)
	if err != nil {
		return issuance.Receipt{}, ClassifySendError(err)
	}

	t.logger.Info("[transport] submitted",
		zap.String("signature", logging.Mask(sig)),
		zap.String("anchor", logging.Mask(tx.Anchor.Blockhash)),
		zap.Int("instructions", len(tx.Instructions)),
	)

	return t.confirm(ctx, sig, tx.Anchor)
}

func (t *Transport) confirm(ctx context.Context, sig string, anchor issuance.Anchor) (issuance.Receipt, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	fails := 0
	for {
		st, height, err := t.poll(ctx, sig)
		if err != nil {
			fails++
			t.logger.Warn("[transport] status poll failed", zap.String("signature", logging.Mask(sig)), zap.Int("attempt", fails), zap.Error(err))
			if fails >= maxConsecutivePollFails {
				se := issuance.NewSubmitError(issuance.KindTransportError,
					"confirmation status unavailable; transaction "+sig+" may still land", err)
				return issuance.Receipt{}, se
			}
		} else {
			fails = 0
			switch {
			case st.Failed():
				return issuance.Receipt{}, instructionErrorFromStatus(st.Err)
			case st.Reached(t.commitment):
				return issuance.Receipt{
					Signature:          sig,
					Slot:               st.Slot,
					ConfirmationStatus: st.ConfirmationStatus,
				}, nil
			case st == nil && anchor.LastValidBlockHeight > 0 && height > anchor.LastValidBlockHeight:
				return issuance.Receipt{}, anchorExpired(anchor, height)
			}
		}

		select {
		case <-ctx.Done():
			return issuance.Receipt{}, issuance.NewSubmitError(issuance.KindTransportError,
				"confirmation wait aborted; transaction "+sig+" may still land", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (t *Transport) poll(ctx context.Context, sig string) (*SignatureStatus, uint64, error) {
	statuses, err := t.reader.GetSignatureStatuses(ctx, sig)
	if err != nil {
		return nil, 0, err
	}
	st := statuses[0]
	if st != nil {
		return st, 0, nil
	}
	height, err := t.reader.GetBlockHeight(ctx, t.commitment)
	if err != nil {
		return nil, 0, err
	}
	return nil, height, nil
}

func anchorExpired(a issuance.Anchor, height uint64) *issuance.SubmitError {
	return issuance.NewSubmitError(issuance.KindAnchorExpired,
		fmt.Sprintf("block height %d exceeded last valid height %d of %s", height, a.LastValidBlockHeight, logging.Mask(a.Blockhash)), nil)
}

var instructionIndexRe = regexp.MustCompile(`(?i)error processing instruction (\d+)`)

// ClassifySendError maps a sendTransaction failure (including preflight
// simulation failures) to the issuance taxonomy.
func ClassifySendError(err error) *issuance.SubmitError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return issuance.NewSubmitError(issuance.KindTransportError, "sendTransaction", err)
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "blockhash not found") ||
		strings.Contains(msg, "blockhashnotfound") ||
		strings.Contains(msg, "block height exceeded") {
		return issuance.NewSubmitError(issuance.KindAnchorExpired, "sendTransaction", err)
	}

	if m := instructionIndexRe.FindStringSubmatch(msg); m != nil {
		se := issuance.NewSubmitError(issuance.KindInstructionRejected, "sendTransaction", err)
		if idx, perr := strconv.Atoi(m[1]); perr == nil {
			se.InstructionIndex = idx
		}
		return se
	}

	if strings.Contains(msg, "simulation failed") ||
		strings.Contains(msg, "custom program error") ||
		strings.Contains(msg, "insufficient") ||
		strings.Contains(msg, "prior credit") ||
		strings.Contains(msg, "already in use") {
		return issuance.NewSubmitError(issuance.KindInstructionRejected, "sendTransaction", err)
	}

	return issuance.NewSubmitError(issuance.KindTransportError, "sendTransaction", err)
}

// instructionErrorFromStatus decodes a TransactionError such as
// {"InstructionError":[2,{"Custom":0}]}.
func instructionErrorFromStatus(raw json.RawMessage) *issuance.SubmitError {
	se := issuance.NewSubmitError(issuance.KindInstructionRejected, strings.TrimSpace(string(raw)), nil)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return se
	}
	ie, ok := obj["InstructionError"]
	if !ok {
		return se
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(ie, &pair); err != nil || len(pair) != 2 {
		return se
	}
	var idx int
	if err := json.Unmarshal(pair[0], &idx); err == nil {
		se.InstructionIndex = idx
	}

	var name string
	if err := json.Unmarshal(pair[1], &name); err == nil {
		se.Detail = name
		return se
	}
	var custom struct {
		Custom *uint32 `json:"Custom"`
	}
	if err := json.Unmarshal(pair[1], &custom); err == nil && custom.Custom != nil {
		se.Detail = fmt.Sprintf("custom program error: 0x%x", *custom.Custom)
		return se
	}
	se.Detail = string(pair[1])
	return se
}
