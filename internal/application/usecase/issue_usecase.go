// internal/application/usecase/issue_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/logging"
	"narratives-mint/internal/infra/metrics"
	"narratives-mint/internal/infra/solana"
)

// ErrPostConfirmation wraps journal/notifier failures that happen after the
// issuance is already on the ledger. The receipt is returned alongside it.
var ErrPostConfirmation = errors.New("issue: post-confirmation step failed")

var errUsecaseNotConfigured = errors.New("issue: usecase not configured")

// ============================================================
// Dependencies / options
// ============================================================

// IssueDeps are the collaborators of IssueUsecase. Transport and Oracle are
// required; everything else is optional.
type IssueDeps struct {
	Transport issuance.Transport
	Oracle    issuance.BalanceOracle
	Reader    issuance.AccountReader
	Journal   issuance.Journal
	Publisher issuance.MetadataPublisher
	Notifier  issuance.Notifier
	Metrics   *metrics.Issuance
	Logger    *zap.Logger
}

type IssueOptions struct {
	PriorityFeeMicroLamports uint64
	// PrecheckHoldingAccount rejects the request before signing when the
	// holding account already exists.
	PrecheckHoldingAccount bool
	// AnchorRefreshAttempts is how many times IssueAsset re-signs against a
	// fresh anchor after AnchorExpired. Zero leaves the decision to the caller.
	AnchorRefreshAttempts int
	ReadBackBalance       bool
	BatchConcurrency      int
}

// ============================================================
// IssueUsecase
// ============================================================

type IssueUsecase struct {
	deps IssueDeps
	opts IssueOptions
	log  *zap.Logger

	now        func() time.Time
	newMintKey func() types.Account
}

func NewIssueUsecase(deps IssueDeps, opts IssueOptions) (*IssueUsecase, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("%w: transport is nil", errUsecaseNotConfigured)
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("%w: balance oracle is nil", errUsecaseNotConfigured)
	}
	if opts.AnchorRefreshAttempts < 0 {
		opts.AnchorRefreshAttempts = 0
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueUsecase{
		deps:       deps,
		opts:       opts,
		log:        logger.Named("issue"),
		now:        time.Now,
		newMintKey: types.NewAccount,
	}, nil
}

// Prepared is a composed, not yet signed issuance. The same Prepared can be
// submitted again after AnchorExpired: instructions and signers stay fixed,
// only the anchor changes.
type Prepared struct {
	Request     issuance.Request
	MintKey     types.Account
	Composition solana.Composition
	MetadataURI string
	Amount      uint64
}

// Signers returns the keys that sign every submission of p.
func (p *Prepared) Signers() []types.Account {
	keys := []types.Account{p.Request.FeePayer, p.MintKey}
	if auth := p.Request.MintAuthorityKey(); auth.PublicKey != p.Request.FeePayer.PublicKey {
		keys = append(keys, auth)
	}
	return keys
}

// Prepare validates req, resolves the exempt balance and composes the
// instructions. Nothing is sent to the ledger.
func (u *IssueUsecase) Prepare(ctx context.Context, req issuance.Request) (*Prepared, error) {
	if u == nil {
		return nil, errUsecaseNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amount, err := issuance.ToSmallestUnit(req.InitialSupply, req.Decimals)
	if err != nil {
		return nil, err
	}
	if md := req.Metadata; md != nil && strings.TrimSpace(md.URI) == "" && u.deps.Publisher == nil {
		return nil, fmt.Errorf("%w: document given but no publisher configured", issuance.ErrInvalidMetadataURI)
	}

	balance, err := u.deps.Oracle.MinimumExemptBalance(ctx, solana.MintAccountSize)
	if err != nil {
		if _, ok := issuance.AsSubmitError(err); ok {
			return nil, err
		}
		return nil, issuance.NewSubmitError(issuance.KindOracleUnavailable, "mint account exempt balance", err)
	}

	mintKey := u.newMintKey()
	params := solana.ComposeParams{
		FeePayer:                 req.FeePayer.PublicKey,
		Mint:                     mintKey.PublicKey,
		MintAuthority:            req.MintAuthorityKey().PublicKey,
		FreezeAuthority:          req.FreezeAuthority,
		Owner:                    req.HoldingOwner(),
		Decimals:                 req.Decimals,
		Amount:                   amount,
		MintBalance:              balance,
		PriorityFeeMicroLamports: u.opts.PriorityFeeMicroLamports,
		Memo:                     req.Memo,
	}

	// metadata and memo follow the holding step, so its index is known before the uri is
	comp, err := solana.Compose(params)
	if err != nil {
		return nil, err
	}
	if err := u.precheckHolding(ctx, comp); err != nil {
		return nil, err
	}

	// the document is published last; every earlier failure leaves nothing off-chain
	uri, err := u.resolveMetadataURI(ctx, req.Metadata)
	if err != nil {
		return nil, err
	}
	if req.Metadata != nil {
		params.Metadata = &solana.MetadataParams{
			Name:    req.Metadata.Name,
			Symbol:  req.Metadata.Symbol,
			URI:     uri,
			Mutable: req.Metadata.Mutable,
		}
		if comp, err = solana.Compose(params); err != nil {
			return nil, err
		}
	}

	u.log.Debug("[issue] prepared",
		zap.String("mint", mintKey.PublicKey.ToBase58()),
		zap.String("holding", comp.HoldingAccount.ToBase58()),
		zap.Int("instructions", len(comp.Instructions)),
		zap.Uint64("amount", amount),
	)

	return &Prepared{
		Request:     req,
		MintKey:     mintKey,
		Composition: comp,
		MetadataURI: uri,
		Amount:      amount,
	}, nil
}

func (u *IssueUsecase) precheckHolding(ctx context.Context, comp solana.Composition) error {
	if !u.opts.PrecheckHoldingAccount || u.deps.Reader == nil {
		return nil
	}
	exists, err := u.deps.Reader.AccountExists(ctx, comp.HoldingAccount)
	if err != nil {
		return issuance.NewSubmitError(issuance.KindTransportError, "holding account precheck", err)
	}
	if !exists {
		return nil
	}
	se := issuance.NewSubmitError(issuance.KindInstructionRejected, string(solana.StepCreateHolding)+": holding account already exists", nil)
	se.InstructionIndex = comp.Index(solana.StepCreateHolding)
	holding := comp.HoldingAccount
	se.Address = &holding
	return se
}

func (u *IssueUsecase) resolveMetadataURI(ctx context.Context, md *issuance.Metadata) (string, error) {
	if md == nil {
		return "", nil
	}
	if uri := strings.TrimSpace(md.URI); uri != "" {
		return uri, nil
	}
	uri, err := u.deps.Publisher.Publish(ctx, md.Name, md.Document)
	if err != nil {
		return "", issuance.NewSubmitError(issuance.KindTransportError, "publish metadata document", err)
	}
	if len(uri) > issuance.MaxURILength {
		return "", fmt.Errorf("%w: published uri is %d bytes", issuance.ErrInvalidMetadataURI, len(uri))
	}
	u.log.Info("[issue] metadata published", zap.String("uri", uri))
	return uri, nil
}

// Submit signs p against a fresh anchor and waits for confirmation.
func (u *IssueUsecase) Submit(ctx context.Context, p *Prepared) (issuance.IssueReceipt, error) {
	if u == nil || p == nil {
		return issuance.IssueReceipt{}, errUsecaseNotConfigured
	}

	anchor, err := u.deps.Transport.LatestAnchor(ctx)
	if err != nil {
		return issuance.IssueReceipt{}, err
	}

	tx, err := solana.Sign(p.Composition.Instructions, p.Request.FeePayer.PublicKey, anchor, p.Signers()...)
	if err != nil {
		return issuance.IssueReceipt{}, err
	}
	if err := solana.VerifySignatures(tx); err != nil {
		return issuance.IssueReceipt{}, err
	}

	u.log.Info("[issue] submitting",
		zap.String("mint", p.MintKey.PublicKey.ToBase58()),
		zap.String("fee_payer", logging.Mask(p.Request.FeePayer.PublicKey.ToBase58())),
		zap.Int("signers", len(tx.Signers)),
		zap.Uint64("last_valid_block_height", anchor.LastValidBlockHeight),
	)

	rc, err := u.deps.Transport.SubmitAndConfirm(ctx, tx)
	if err != nil {
		return issuance.IssueReceipt{}, u.annotate(p, err)
	}

	return issuance.IssueReceipt{
		Mint:            p.MintKey.PublicKey,
		HoldingAccount:  p.Composition.HoldingAccount,
		MetadataAccount: p.Composition.MetadataAccount,
		Amount:          p.Amount,
		HoldingBalance:  p.Amount,
		MetadataURI:     p.MetadataURI,
		Receipt:         rc,
	}, nil
}

// annotate names the failed step of an InstructionRejected error.
func (u *IssueUsecase) annotate(p *Prepared, err error) error {
	se, ok := issuance.AsSubmitError(err)
	if !ok || se.Kind != issuance.KindInstructionRejected || se.InstructionIndex < 0 {
		return err
	}
	step := p.Composition.StepAt(se.InstructionIndex)
	if step == "" {
		return err
	}
	if !strings.HasPrefix(se.Detail, string(step)) {
		if se.Detail == "" {
			se.Detail = string(step)
		} else {
			se.Detail = string(step) + ": " + se.Detail
		}
	}
	if step == solana.StepCreateHolding && se.Address == nil {
		holding := p.Composition.HoldingAccount
		se.Address = &holding
	}
	return se
}

// IssueAsset runs the whole flow: prepare, sign, submit, confirm, then the
// journal and notifier. When the ledger part succeeded but a follow-up step
// failed, both the receipt and an ErrPostConfirmation error are returned.
func (u *IssueUsecase) IssueAsset(ctx context.Context, req issuance.Request) (issuance.IssueReceipt, error) {
	if u == nil {
		return issuance.IssueReceipt{}, errUsecaseNotConfigured
	}
	start := u.now()

	rc, err := u.issue(ctx, req)
	if err != nil && !errors.Is(err, ErrPostConfirmation) {
		u.deps.Metrics.ObserveIssuance(outcomeOf(err), u.now().Sub(start))
		u.log.Warn("[issue] failed", zap.String("kind", outcomeOf(err)), zap.Error(err))
		return issuance.IssueReceipt{}, err
	}

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = "post_confirmation"
	}
	u.deps.Metrics.ObserveIssuance(outcome, u.now().Sub(start))
	u.log.Info("[issue] issued",
		zap.String("mint", rc.Mint.ToBase58()),
		zap.String("holding", rc.HoldingAccount.ToBase58()),
		zap.Uint64("amount", rc.Amount),
		zap.String("signature", rc.Receipt.Signature),
		zap.String("status", rc.Receipt.ConfirmationStatus),
	)
	return rc, err
}

func (u *IssueUsecase) issue(ctx context.Context, req issuance.Request) (issuance.IssueReceipt, error) {
	p, err := u.Prepare(ctx, req)
	if err != nil {
		return issuance.IssueReceipt{}, err
	}

	var rc issuance.IssueReceipt
	for attempt := 0; ; attempt++ {
		rc, err = u.Submit(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, issuance.ErrAnchorExpired) || attempt >= u.opts.AnchorRefreshAttempts {
			return issuance.IssueReceipt{}, err
		}
		u.log.Warn("[issue] anchor expired, re-signing with a fresh anchor",
			zap.String("mint", p.MintKey.PublicKey.ToBase58()),
			zap.Int("attempt", attempt+1),
		)
	}

	if u.opts.ReadBackBalance && u.deps.Reader != nil {
		if bal, rerr := u.deps.Reader.TokenBalance(ctx, rc.HoldingAccount); rerr != nil {
			u.log.Warn("[issue] balance read-back failed", zap.String("holding", rc.HoldingAccount.ToBase58()), zap.Error(rerr))
		} else {
			rc.HoldingBalance = bal
		}
	}

	return rc, u.afterConfirm(ctx, req, rc)
}

func (u *IssueUsecase) afterConfirm(ctx context.Context, req issuance.Request, rc issuance.IssueReceipt) error {
	if u.deps.Journal == nil && u.deps.Notifier == nil {
		return nil
	}
	rec := issuance.NewRecord(req, rc, u.now())

	var errs []error
	if u.deps.Journal != nil {
		if err := u.deps.Journal.Record(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if u.deps.Notifier != nil {
		if err := u.deps.Notifier.NotifyIssued(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPostConfirmation, errors.Join(errs...))
}

func outcomeOf(err error) string {
	if k := issuance.KindOf(err); k != "" {
		return string(k)
	}
	return "invalid"
}

// ============================================================
// Batch
// ============================================================

// BatchResult is the outcome of one request of IssueBatch, at its input index.
type BatchResult struct {
	Index   int
	Receipt issuance.IssueReceipt
	Err     error
}

// IssueBatch issues every request independently with bounded concurrency.
// Each request is its own transaction; one failure does not affect the others.
func (u *IssueUsecase) IssueBatch(ctx context.Context, reqs []issuance.Request) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if u == nil {
		for i := range results {
			results[i] = BatchResult{Index: i, Err: errUsecaseNotConfigured}
		}
		return results
	}

	p := pool.New().WithMaxGoroutines(u.opts.BatchConcurrency)
	for i, req := range reqs {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Index: i, Err: issuance.NewSubmitError(issuance.KindTransportError, "batch cancelled", err)}
				return
			}
			rc, err := u.IssueAsset(ctx, req)
			results[i] = BatchResult{Index: i, Receipt: rc, Err: err}
		})
	}
	p.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, ErrPostConfirmation) {
			failed++
		}
	}
	u.log.Info("[issue] batch finished", zap.Int("requests", len(reqs)), zap.Int("failed", failed))
	return results
}
