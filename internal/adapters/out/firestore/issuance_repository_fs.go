// internal/adapters/out/firestore/issuance_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	issuance "narratives-mint/internal/domain/issuance"
)

const defaultIssuancesCollection = "issuances"

// IssuanceRepositoryFS journals confirmed issuances in Firestore, one document per mint.
type IssuanceRepositoryFS struct {
	Client     *firestore.Client
	Collection string
}

var _ issuance.History = (*IssuanceRepositoryFS)(nil)

func NewIssuanceRepositoryFS(client *firestore.Client, collection string) *IssuanceRepositoryFS {
	c := strings.TrimSpace(collection)
	if c == "" {
		c = defaultIssuancesCollection
	}
	return &IssuanceRepositoryFS{Client: client, Collection: c}
}

func (r *IssuanceRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(r.Collection)
}

func (r *IssuanceRepositoryFS) Record(ctx context.Context, rec issuance.Record) error {
	if r == nil || r.Client == nil {
		return errors.New("firestore client is nil")
	}
	mint := strings.TrimSpace(rec.Mint)
	if mint == "" {
		return errors.New("issuance_repository_fs: mint is empty")
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}

	if _, err := r.col().Doc(mint).Create(ctx, recordToDocData(rec)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: mint=%s", issuance.ErrAlreadyRecorded, mint)
		}
		return fmt.Errorf("issuance_repository_fs: create: %w", err)
	}
	return nil
}

func (r *IssuanceRepositoryFS) GetByMint(ctx context.Context, mint string) (issuance.Record, error) {
	if r == nil || r.Client == nil {
		return issuance.Record{}, errors.New("firestore client is nil")
	}
	snap, err := r.col().Doc(strings.TrimSpace(mint)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return issuance.Record{}, issuance.ErrRecordNotFound
		}
		return issuance.Record{}, err
	}
	return docDataToRecord(snap.Ref.ID, snap.Data())
}

// ListByOwner returns the owner's issuances, newest first.
func (r *IssuanceRepositoryFS) ListByOwner(ctx context.Context, owner string, limit int) ([]issuance.Record, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	it := r.col().
		Where("owner", "==", strings.TrimSpace(owner)).
		OrderBy("issuedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer it.Stop()

	var out []issuance.Record
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := docDataToRecord(snap.Ref.ID, snap.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// recordToDocData maps explicitly so no field is dropped silently.
// amount is a decimal string because Firestore integers are signed 64-bit.
func recordToDocData(rec issuance.Record) map[string]any {
	data := map[string]any{
		"holdingAccount": strings.TrimSpace(rec.HoldingAccount),
		"owner":          strings.TrimSpace(rec.Owner),
		"feePayer":       strings.TrimSpace(rec.FeePayer),
		"decimals":       int64(rec.Decimals),
		"amount":         strconv.FormatUint(rec.Amount, 10),
		"txSignature":    strings.TrimSpace(rec.Signature),
		"issuedAt":       rec.IssuedAt.UTC(),
	}
	if s := strings.TrimSpace(rec.Name); s != "" {
		data["name"] = s
	}
	if s := strings.TrimSpace(rec.Symbol); s != "" {
		data["symbol"] = s
	}
	if s := strings.TrimSpace(rec.URI); s != "" {
		data["uri"] = s
	}
	return data
}

func docDataToRecord(mint string, data map[string]any) (issuance.Record, error) {
	getStr := func(k string) string {
		if v, ok := data[k].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	rec := issuance.Record{
		Mint:           mint,
		HoldingAccount: getStr("holdingAccount"),
		Owner:          getStr("owner"),
		FeePayer:       getStr("feePayer"),
		Signature:      getStr("txSignature"),
		Name:           getStr("name"),
		Symbol:         getStr("symbol"),
		URI:            getStr("uri"),
	}
	if v, ok := data["decimals"].(int64); ok {
		rec.Decimals = uint8(v)
	}
	if s := getStr("amount"); s != "" {
		amt, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return issuance.Record{}, fmt.Errorf("issuance_repository_fs: parse amount %q: %w", s, err)
		}
		rec.Amount = amt
	}
	if t, ok := data["issuedAt"].(time.Time); ok {
		rec.IssuedAt = t.UTC()
	}
	return rec, nil
}
