// internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	pgrepo "narratives-mint/internal/adapters/out/db"
	fsrepo "narratives-mint/internal/adapters/out/firestore"
	gcsadapter "narratives-mint/internal/adapters/out/gcs"
	"narratives-mint/internal/adapters/out/mail"
	"narratives-mint/internal/application/usecase"
	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/arweave"
	"narratives-mint/internal/infra/config"
	"narratives-mint/internal/infra/metrics"
	"narratives-mint/internal/infra/solana"
)

// Container is the set of wired components cmd/issuer works with.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Issuance

	RPC       *solana.JSONRPCClient
	Reader    *solana.LedgerReader
	Oracle    *solana.RentOracle
	Transport *solana.Transport

	Keys          issuance.KeySource
	mintAuthority issuance.KeySource

	// History is nil when the journal backend is "none".
	History issuance.History

	Issue *usecase.IssueUsecase

	cleanup []func()
}

// Close releases clients in reverse order of creation.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
	c.cleanup = nil
}

// Build wires every component from cfg. On error, whatever was opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Container, err error) {
	if cfg == nil {
		return nil, errors.New("di: config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// ------------------------------------------------------------
	// metrics
	// ------------------------------------------------------------
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if c.Metrics, err = metrics.NewIssuance(c.Registry); err != nil {
		return nil, fmt.Errorf("di: metrics: %w", err)
	}

	// ------------------------------------------------------------
	// ledger
	// ------------------------------------------------------------
	sdk := client.NewClient(cfg.Solana.RPCURL)
	c.RPC = solana.NewJSONRPCClient(cfg.Solana.RPCURL, cfg.Solana.RequestTimeout)
	c.Reader = solana.NewLedgerReader(c.RPC, cfg.Solana.Commitment)
	c.Transport = solana.NewTransport(sdk, c.RPC, cfg.Solana.Commitment, cfg.Solana.PollInterval, logger)
	if c.Oracle, err = solana.NewRentOracle(sdk, cfg.Issuance.RentCacheEntries, cfg.Solana.RequestTimeout, c.Metrics, logger); err != nil {
		return nil, fmt.Errorf("di: rent oracle: %w", err)
	}
	c.cleanup = append(c.cleanup, c.Oracle.Close)

	// ------------------------------------------------------------
	// keys
	// ------------------------------------------------------------
	if c.Keys, err = c.keySource(ctx, cfg.Keys.SecretManagerName, cfg.Keys.Secret, cfg.Keys.KeypairFile); err != nil {
		return nil, err
	}
	if cfg.Keys.MintAuthoritySecretName != "" || cfg.Keys.MintAuthorityFile != "" {
		if c.mintAuthority, err = c.keySource(ctx, cfg.Keys.MintAuthoritySecretName, "", cfg.Keys.MintAuthorityFile); err != nil {
			return nil, err
		}
	}

	// ------------------------------------------------------------
	// journal / metadata / notify
	// ------------------------------------------------------------
	if c.History, err = c.buildHistory(ctx); err != nil {
		return nil, err
	}
	publisher, err := c.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	deps := usecase.IssueDeps{
		Transport: c.Transport,
		Oracle:    c.Oracle,
		Reader:    c.Reader,
		Publisher: publisher,
		Metrics:   c.Metrics,
		Logger:    logger,
	}
	if c.History != nil {
		deps.Journal = c.History
	}
	if cfg.NotifyEnabled() {
		deps.Notifier = mail.NewIssuanceNotifier(cfg.Notify.SendGridAPIKey, cfg.Notify.From, cfg.Notify.FromName, cfg.Notify.To, logger)
	}

	c.Issue, err = usecase.NewIssueUsecase(deps, usecase.IssueOptions{
		PriorityFeeMicroLamports: cfg.Solana.PriorityFeeMicroLamports,
		PrecheckHoldingAccount:   cfg.Issuance.PrecheckHoldingAccount,
		AnchorRefreshAttempts:    cfg.Issuance.AnchorRefreshAttempts,
		ReadBackBalance:          cfg.Issuance.ReadBackBalance,
		BatchConcurrency:         cfg.Issuance.BatchConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("di: issue usecase: %w", err)
	}

	logger.Info("[di] container ready",
		zap.String("rpc", cfg.Solana.RPCURL),
		zap.String("commitment", cfg.Solana.Commitment),
		zap.String("journal", cfg.Journal.Backend),
		zap.String("publisher", cfg.Metadata.Publisher),
		zap.Bool("notify", cfg.NotifyEnabled()),
	)
	return c, nil
}

// keySource picks Secret Manager, then secret text, then a keypair file.
// A source with nothing configured still builds; loading it reports ErrKeyNotConfigured.
func (c *Container) keySource(ctx context.Context, secretName, secretText, file string) (issuance.KeySource, error) {
	switch {
	case strings.TrimSpace(secretName) != "":
		name := solana.SecretVersionName(c.Config.GCP.ProjectID, secretName)
		src, err := solana.NewSecretManagerKeySource(ctx, name, c.Config.GCP.CredentialsFile, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("di: secret manager: %w", err)
		}
		c.cleanup = append(c.cleanup, func() { _ = src.Close() })
		return src, nil
	case strings.TrimSpace(secretText) != "":
		return solana.SecretKeySource{Secret: secretText}, nil
	default:
		return solana.FileKeySource{Path: file}, nil
	}
}

func (c *Container) clientOptions() []option.ClientOption {
	if f := strings.TrimSpace(c.Config.GCP.CredentialsFile); f != "" {
		return []option.ClientOption{option.WithCredentialsFile(f)}
	}
	return nil
}

func (c *Container) buildHistory(ctx context.Context) (issuance.History, error) {
	switch c.Config.Journal.Backend {
	case config.JournalPostgres:
		db, err := pgrepo.Open(ctx, c.Config.Journal.PostgresDSN, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("di: postgres: %w", err)
		}
		c.cleanup = append(c.cleanup, func() { _ = db.Close() })
		repo := pgrepo.NewIssuanceRepositoryPG(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("di: ensure schema: %w", err)
		}
		return repo, nil

	case config.JournalFirestore:
		fs, err := firestore.NewClient(ctx, c.Config.GCP.ProjectID, c.clientOptions()...)
		if err != nil {
			return nil, fmt.Errorf("di: firestore.NewClient: %w", err)
		}
		c.cleanup = append(c.cleanup, func() { _ = fs.Close() })
		return fsrepo.NewIssuanceRepositoryFS(fs, c.Config.Journal.FirestoreCollection), nil
	}
	return nil, nil
}

func (c *Container) buildPublisher(ctx context.Context) (issuance.MetadataPublisher, error) {
	md := c.Config.Metadata
	switch md.Publisher {
	case config.PublisherGCS:
		sc, err := storage.NewClient(ctx, c.clientOptions()...)
		if err != nil {
			return nil, fmt.Errorf("di: storage.NewClient: %w", err)
		}
		c.cleanup = append(c.cleanup, func() { _ = sc.Close() })
		return gcsadapter.NewMetadataPublisherGCS(sc, md.GCSBucket, md.GCSPublicBaseURL, c.Logger), nil

	case config.PublisherIrys:
		return arweave.NewHTTPUploader(md.ArweaveBaseURL, md.ArweaveAPIKey, md.UploadTimeout, c.Logger), nil
	}
	return nil, nil
}

// FeePayer loads the fee payer keypair.
func (c *Container) FeePayer(ctx context.Context) (types.Account, error) {
	return c.Keys.FeePayer(ctx)
}

// MintAuthority loads the designated mint authority, or returns nil when the
// fee payer acts as mint authority.
func (c *Container) MintAuthority(ctx context.Context) (*types.Account, error) {
	if c.mintAuthority == nil {
		return nil, nil
	}
	acc, err := c.mintAuthority.FeePayer(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint authority: %w", err)
	}
	return &acc, nil
}
