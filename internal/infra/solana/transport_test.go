package solana

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	issuance "narratives-mint/internal/domain/issuance"
)

type fakeSender struct {
	mu    sync.Mutex
	sig   string
	err   error
	calls int
}

func (f *fakeSender) SendTransaction(_ context.Context, _ types.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.sig, f.err
}

// scriptedReader replays statuses in order and repeats the last one.
type scriptedReader struct {
	mu       sync.Mutex
	height   uint64
	heights  []uint64
	statuses []*SignatureStatus
	statErr  error
	polls    int
}

func (r *scriptedReader) GetLatestBlockhash(context.Context, string) (LatestBlockhash, error) {
	return LatestBlockhash{Blockhash: testAnchor.Blockhash, LastValidBlockHeight: testAnchor.LastValidBlockHeight}, nil
}

func (r *scriptedReader) GetBlockHeight(context.Context, string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.heights) > 0 {
		h := r.heights[0]
		if len(r.heights) > 1 {
			r.heights = r.heights[1:]
		}
		return h, nil
	}
	return r.height, nil
}

func (r *scriptedReader) GetSignatureStatuses(_ context.Context, sigs ...string) ([]*SignatureStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	if r.statErr != nil {
		return nil, r.statErr
	}
	var st *SignatureStatus
	if len(r.statuses) > 0 {
		st = r.statuses[0]
		if len(r.statuses) > 1 {
			r.statuses = r.statuses[1:]
		}
	}
	return []*SignatureStatus{st}, nil
}

func signedTx(t *testing.T) issuance.Transaction {
	t.Helper()
	payer, mint := types.NewAccount(), types.NewAccount()
	c := composeFor(t, payer, mint)
	tx, err := Sign(c.Instructions, payer.PublicKey, testAnchor, payer, mint)
	require.NoError(t, err)
	return tx
}

func TestTransport_LatestAnchor(t *testing.T) {
	tr := NewTransport(&fakeSender{}, &scriptedReader{}, "", time.Millisecond, nil)
	a, err := tr.LatestAnchor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAnchor, a)
}

func TestTransport_ConfirmsAfterPending(t *testing.T) {
	sender := &fakeSender{sig: "5sig"}
	reader := &scriptedReader{
		height: 120,
		statuses: []*SignatureStatus{
			nil,
			{Slot: 9, ConfirmationStatus: CommitmentProcessed},
			{Slot: 10, ConfirmationStatus: CommitmentConfirmed},
		},
	}
	tr := NewTransport(sender, reader, CommitmentConfirmed, time.Millisecond, nil)

	rc, err := tr.SubmitAndConfirm(context.Background(), signedTx(t))
	require.NoError(t, err)
	assert.Equal(t, issuance.Receipt{Signature: "5sig", Slot: 10, ConfirmationStatus: CommitmentConfirmed}, rc)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, 3, reader.polls)
}

func TestTransport_ExpiredBeforeSendIsNotSubmitted(t *testing.T) {
	sender := &fakeSender{sig: "5sig"}
	reader := &scriptedReader{height: testAnchor.LastValidBlockHeight + 1}
	tr := NewTransport(sender, reader, CommitmentConfirmed, time.Millisecond, nil)

	_, err := tr.SubmitAndConfirm(context.Background(), signedTx(t))
	require.ErrorIs(t, err, issuance.ErrAnchorExpired)
	assert.Zero(t, sender.calls)
}

func TestTransport_ExpiresWhileWaiting(t *testing.T) {
	sender := &fakeSender{sig: "5sig"}
	reader := &scriptedReader{heights: []uint64{100, 200, 301}}
	tr := NewTransport(sender, reader, CommitmentConfirmed, time.Millisecond, nil)

	_, err := tr.SubmitAndConfirm(context.Background(), signedTx(t))
	require.ErrorIs(t, err, issuance.ErrAnchorExpired)
	se, ok := issuance.AsSubmitError(err)
	require.True(t, ok)
	assert.True(t, se.Retryable())
}

func TestTransport_FailedStatusNamesInstruction(t *testing.T) {
	reader := &scriptedReader{
		height:   100,
		statuses: []*SignatureStatus{{Slot: 3, Err: json.RawMessage(`{"InstructionError":[3,{"Custom":0}]}`), ConfirmationStatus: CommitmentConfirmed}},
	}
	tr := NewTransport(&fakeSender{sig: "5sig"}, reader, CommitmentConfirmed, time.Millisecond, nil)

	_, err := tr.SubmitAndConfirm(context.Background(), signedTx(t))
	require.ErrorIs(t, err, issuance.ErrInstructionRejected)
	se, _ := issuance.AsSubmitError(err)
	assert.Equal(t, 3, se.InstructionIndex)
	assert.Equal(t, "custom program error: 0x0", se.Detail)
}

func TestTransport_PollFailuresBecomeTransportError(t *testing.T) {
	reader := &scriptedReader{height: 100, statErr: errors.New("connection reset")}
	tr := NewTransport(&fakeSender{sig: "5sig"}, reader, CommitmentConfirmed, time.Millisecond, nil)

	_, err := tr.SubmitAndConfirm(context.Background(), signedTx(t))
	require.ErrorIs(t, err, issuance.ErrTransportError)
	assert.Contains(t, err.Error(), "may still land")
	assert.Equal(t, maxConsecutivePollFails, reader.polls)
}

func TestTransport_ContextCancelStopsWaiting(t *testing.T) {
	reader := &scriptedReader{height: 100}
	tr := NewTransport(&fakeSender{sig: "5sig"}, reader, CommitmentConfirmed, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.SubmitAndConfirm(ctx, signedTx(t))
	require.ErrorIs(t, err, issuance.ErrTransportError)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifySendError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		kind  issuance.Kind
		index int
	}{
		{"blockhash", errors.New("rpc error: Transaction simulation failed: Blockhash not found"), issuance.KindAnchorExpired, issuance.NoInstruction},
		{"instruction", errors.New("Transaction simulation failed: Error processing Instruction 2: custom program error: 0x0"), issuance.KindInstructionRejected, 2},
		{"no credit", errors.New("Attempt to debit an account but found no record of a prior credit."), issuance.KindInstructionRejected, issuance.NoInstruction},
		{"network", errors.New("dial tcp 127.0.0.1:8899: connect: connection refused"), issuance.KindTransportError, issuance.NoInstruction},
		{"ctx", context.Canceled, issuance.KindTransportError, issuance.NoInstruction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := ClassifySendError(tc.err)
			require.NotNil(t, se)
			assert.Equal(t, tc.kind, se.Kind)
			assert.Equal(t, tc.index, se.InstructionIndex)
			assert.ErrorIs(t, se, tc.err)
		})
	}
	assert.Nil(t, ClassifySendError(nil))
}

func TestInstructionErrorFromStatus(t *testing.T) {
	se := instructionErrorFromStatus(json.RawMessage(`{"InstructionError":[1,"InvalidAccountData"]}`))
	assert.Equal(t, 1, se.InstructionIndex)
	assert.Equal(t, "InvalidAccountData", se.Detail)

	se = instructionErrorFromStatus(json.RawMessage(`"AccountInUse"`))
	assert.Equal(t, issuance.NoInstruction, se.InstructionIndex)
	assert.Equal(t, `"AccountInUse"`, se.Detail)
}
