// internal/infra/solana/mint_authority.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	issuance "narratives-mint/internal/domain/issuance"
	"narratives-mint/internal/infra/logging"
)

var ErrSecretNotFound = errors.New("secret key source: secret not found")

// SecretAccessor is the Secret Manager call we need. *secretmanager.Client satisfies it.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretspb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretspb.AccessSecretVersionResponse, error)
}

// SecretManagerKeySource loads a keypair stored in GCP Secret Manager as a
// solana-keygen JSON array or base-58 text.
type SecretManagerKeySource struct {
	Accessor SecretAccessor
	// Name is the full version path: projects/<PROJECT>/secrets/<SECRET>/versions/latest
	Name   string
	Logger *zap.Logger

	closer func() error
}

var _ issuance.KeySource = (*SecretManagerKeySource)(nil)

// SecretVersionName expands a bare secret id into a version path.
// Full paths are returned unchanged.
func SecretVersionName(projectID, secret string) string {
	s := strings.TrimSpace(secret)
	if strings.HasPrefix(s, "projects/") {
		return s
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", strings.TrimSpace(projectID), s)
}

// NewSecretManagerKeySource dials Secret Manager. credentialsFile may be empty
// to use application default credentials.
func NewSecretManagerKeySource(ctx context.Context, name, credentialsFile string, logger *zap.Logger) (*SecretManagerKeySource, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecretManagerKeySource{
		Accessor: client,
		Name:     name,
		Logger:   logger.Named("mint-authority"),
		closer:   client.Close,
	}, nil
}

// FeePayer loads the keypair. The same source serves a designated mint authority.
func (s *SecretManagerKeySource) FeePayer(ctx context.Context) (types.Account, error) {
	return s.Load(ctx)
}

func (s *SecretManagerKeySource) Load(ctx context.Context) (types.Account, error) {
	if s == nil || s.Accessor == nil || strings.TrimSpace(s.Name) == "" {
		return types.Account{}, ErrKeyNotConfigured
	}

	resp, err := s.Accessor.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: s.Name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Account{}, fmt.Errorf("%w: %s", ErrSecretNotFound, s.Name)
		}
		return types.Account{}, fmt.Errorf("AccessSecretVersion: %w", err)
	}
	if resp == nil || resp.Payload == nil || len(resp.Payload.Data) == 0 {
		return types.Account{}, fmt.Errorf("%w: %s has no payload", ErrSecretNotFound, s.Name)
	}

	acc, err := ParseSecret(string(resp.Payload.Data))
	if err != nil {
		return types.Account{}, err
	}

	if s.Logger != nil {
		s.Logger.Info("[mint-authority] loaded keypair from Secret Manager",
			zap.String("secret", s.Name),
			zap.String("pubkey", logging.Mask(acc.PublicKey.ToBase58())),
		)
	}
	return acc, nil
}

func (s *SecretManagerKeySource) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
