package usecase

import (
	"context"
	"encoding/binary"
	"maps"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/solana"
)

// memLedger is an in-memory ledger that applies a transaction's
// instructions all together or not at all.
type memLedger struct {
	mu sync.Mutex

	height   uint64
	window   uint64
	accounts map[common.PublicKey]bool
	balances map[common.PublicKey]uint64

	exemptBalance uint64
	oracleErr     error
	oracleCalls   int

	// staleAnchors makes the next n LatestAnchor calls hand out an anchor
	// that is already past its validity window.
	staleAnchors int
	anchorCalls  int
	submitted    []issuance.Transaction
	slot         uint64
}

func newMemLedger() *memLedger {
	return &memLedger{
		height:        1000,
		window:        150,
		accounts:      map[common.PublicKey]bool{},
		balances:      map[common.PublicKey]uint64{},
		exemptBalance: 1461600,
	}
}

func (l *memLedger) LatestAnchor(context.Context) (issuance.Anchor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anchorCalls++
	a := issuance.Anchor{
		Blockhash:            types.NewAccount().PublicKey.ToBase58(),
		LastValidBlockHeight: l.height + l.window,
	}
	if l.staleAnchors > 0 {
		l.staleAnchors--
		a.LastValidBlockHeight = l.height - 1
	}
	return a, nil
}

func (l *memLedger) SubmitAndConfirm(_ context.Context, tx issuance.Transaction) (issuance.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, tx)

	if tx.Anchor.LastValidBlockHeight < l.height {
		return issuance.Receipt{}, issuance.NewSubmitError(issuance.KindAnchorExpired, "blockhash not found", nil)
	}
	if err := solana.VerifySignatures(tx); err != nil {
		return issuance.Receipt{}, err
	}

	accounts := maps.Clone(l.accounts)
	balances := maps.Clone(l.balances)
	for i, ix := range tx.Instructions {
		reject := func(detail string) (issuance.Receipt, error) {
			se := issuance.NewSubmitError(issuance.KindInstructionRejected, detail, nil)
			se.InstructionIndex = i
			return issuance.Receipt{}, se
		}
		switch ix.ProgramID {
		case solana.SystemProgramID:
			addr := ix.Accounts[1].PubKey
			if accounts[addr] {
				return reject("account already in use")
			}
			accounts[addr] = true
		case solana.AssociatedTokenProgramID:
			addr := ix.Accounts[1].PubKey
			if accounts[addr] {
				return reject("custom program error: 0x0")
			}
			accounts[addr] = true
		case solana.TokenProgramID:
			if len(ix.Data) == 9 && ix.Data[0] == 7 {
				to := ix.Accounts[1].PubKey
				if !accounts[to] {
					return reject("invalid account data for instruction")
				}
				balances[to] += binary.LittleEndian.Uint64(ix.Data[1:])
			}
		}
	}

	l.accounts, l.balances = accounts, balances
	l.height++
	l.slot++
	sig := base58.Encode(tx.Raw.Signatures[0])
	return issuance.Receipt{Signature: sig, Slot: l.slot, ConfirmationStatus: "confirmed"}, nil
}

func (l *memLedger) MinimumExemptBalance(context.Context, uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.oracleCalls++
	if l.oracleErr != nil {
		return 0, l.oracleErr
	}
	return l.exemptBalance, nil
}

func (l *memLedger) AccountExists(_ context.Context, addr common.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[addr], nil
}

func (l *memLedger) TokenBalance(_ context.Context, holding common.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holding], nil
}

func (l *memLedger) snapshot() (map[common.PublicKey]bool, map[common.PublicKey]uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.accounts), maps.Clone(l.balances)
}

type memJournal struct {
	mu      sync.Mutex
	records []issuance.Record
	err     error
}

func (j *memJournal) Record(_ context.Context, rec issuance.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, rec)
	return nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []issuance.Record
	err  error
}

func (n *memNotifier) NotifyIssued(_ context.Context, rec issuance.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, rec)
	return n.err
}

type memPublisher struct {
	docs map[string][]byte
}

func (p *memPublisher) Publish(_ context.Context, name string, doc []byte) (string, error) {
	if p.docs == nil {
		p.docs = map[string][]byte{}
	}
	p.docs[name] = doc
	return "https://storage.googleapis.com/narratives-token-metadata/metadata/" + name + ".json", nil
}
