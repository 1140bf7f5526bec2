// internal/adapters/out/gcs/metadata_publisher_gcs.go
package gcs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	issuance "narratives-mint/internal/domain/issuance"
)

var ErrObjectExists = errors.New("gcs: object already exists")

const defaultPublicBaseURL = "https://storage.googleapis.com"

// ObjectSink writes one object. The storage-backed sink is the production one.
type ObjectSink interface {
	Put(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// StorageSink writes through a *storage.Client and never overwrites.
type StorageSink struct {
	Client *storage.Client
}

func (s StorageSink) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if s.Client == nil {
		return errors.New("gcs: nil storage client")
	}
	oh := s.Client.Bucket(bucket).Object(object).If(storage.Conditions{DoesNotExist: true})
	w := oh.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			return fmt.Errorf("%w: gs://%s/%s", ErrObjectExists, bucket, object)
		}
		return err
	}
	return nil
}

// MetadataPublisherGCS stores token metadata documents in a public bucket.
type MetadataPublisherGCS struct {
	Sink          ObjectSink
	Bucket        string
	PublicBaseURL string
	Prefix        string
	Logger        *zap.Logger
}

var _ issuance.MetadataPublisher = (*MetadataPublisherGCS)(nil)

func NewMetadataPublisherGCS(client *storage.Client, bucket, publicBaseURL string, logger *zap.Logger) *MetadataPublisherGCS {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = defaultPublicBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataPublisherGCS{
		Sink:          StorageSink{Client: client},
		Bucket:        strings.TrimSpace(bucket),
		PublicBaseURL: base,
		Prefix:        "metadata",
		Logger:        logger.Named("gcs"),
	}
}

// Publish writes document under a fresh object name and returns its public URL.
func (p *MetadataPublisherGCS) Publish(ctx context.Context, name string, document []byte) (string, error) {
	if p == nil || p.Sink == nil {
		return "", errors.New("gcs: publisher not configured")
	}
	if p.Bucket == "" {
		return "", errors.New("gcs: bucket is empty")
	}
	if len(document) == 0 || !json.Valid(document) {
		return "", errors.New("gcs: metadata document must be non-empty JSON")
	}

	object := p.objectPath(name)
	if err := p.Sink.Put(ctx, p.Bucket, object, "application/json", document); err != nil {
		return "", fmt.Errorf("gcs: put %s: %w", object, err)
	}

	uri := p.PublicURL(object)
	if p.Logger != nil {
		p.Logger.Info("[gcs] metadata published", zap.String("bucket", p.Bucket), zap.String("object", object))
	}
	return uri, nil
}

// PublicURL builds the public https URL of object.
func (p *MetadataPublisherGCS) PublicURL(object string) string {
	base := p.PublicBaseURL
	if base == "" {
		base = defaultPublicBaseURL
	}
	segs := strings.Split(object, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return base + "/" + p.Bucket + "/" + strings.Join(segs, "/")
}

func (p *MetadataPublisherGCS) objectPath(name string) string {
	seg := sanitizePathSegment(name)
	if seg == "" {
		seg = "token"
	}
	file := seg + "-" + newObjectID() + ".json"
	if pre := strings.Trim(strings.TrimSpace(p.Prefix), "/"); pre != "" {
		return pre + "/" + file
	}
	return file
}

// sanitizePathSegment removes separators and trims dots/spaces.
func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return strings.Trim(s, "._ ")
}

func newObjectID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
