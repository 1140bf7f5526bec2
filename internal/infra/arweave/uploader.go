// internal/infra/arweave/uploader.go
package arweave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	issuance "narratives-mint/internal/domain/issuance"
)

var ErrNotConfigured = errors.New("arweave: endpoint not configured")

// HTTPUploader posts metadata documents to an Irys uploader service, which
// bundles them onto Arweave and answers with the gateway URI.
type HTTPUploader struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

var _ issuance.MetadataPublisher = (*HTTPUploader)(nil)

func NewHTTPUploader(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPUploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPUploader{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		logger:  logger.Named("arweave"),
	}
}

// Publish uploads document and returns its permanent URI. name only labels the upload.
func (u *HTTPUploader) Publish(ctx context.Context, name string, document []byte) (string, error) {
	u.logger.Debug("[arweave] publish", zap.String("name", name), zap.Int("len", len(document)))
	return u.UploadJSON(ctx, document)
}

func (u *HTTPUploader) UploadJSON(ctx context.Context, metadataJSON []byte) (string, error) {
	if len(metadataJSON) == 0 {
		return "", fmt.Errorf("arweave: metadataJSON is empty")
	}
	if !json.Valid(metadataJSON) {
		return "", fmt.Errorf("arweave: metadataJSON is not valid JSON")
	}
	if u.baseURL == "" {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload/json", bytes.NewReader(metadataJSON))
	if err != nil {
		return "", fmt.Errorf("arweave: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Warn("[arweave] http request failed", zap.Error(err))
		return "", fmt.Errorf("arweave: upload metadata: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Warn("[arweave] upload failed", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return "", fmt.Errorf("arweave: upload metadata failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var res struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("arweave: decode upload response: %w", err)
	}
	if strings.TrimSpace(res.URI) == "" {
		return "", fmt.Errorf("arweave: upload response has empty uri")
	}

	u.logger.Info("[arweave] upload ok", zap.String("uri", res.URI))
	return res.URI, nil
}
