// internal/adapters/out/db/issuance_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	issuance "narratives-mint/internal/domain/issuance"
)

// IssuanceRepositoryPG journals confirmed issuances in PostgreSQL.
type IssuanceRepositoryPG struct {
	DB *sql.DB
}

var _ issuance.History = (*IssuanceRepositoryPG)(nil)

func NewIssuanceRepositoryPG(db *sql.DB) *IssuanceRepositoryPG {
	return &IssuanceRepositoryPG{DB: db}
}

// EnsureSchema creates the issuances table and its indexes when missing.
func (r *IssuanceRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, issuance.IssuancesTableDDL); err != nil {
		return fmt.Errorf("issuance_repository_pg: ensure schema: %w", err)
	}
	return nil
}

func (r *IssuanceRepositoryPG) Record(ctx context.Context, rec issuance.Record) error {
	if r == nil || r.DB == nil {
		return errors.New("issuance_repository_pg: nil db")
	}
	if strings.TrimSpace(rec.Mint) == "" {
		return errors.New("issuance_repository_pg: mint is empty")
	}
	issuedAt := rec.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO issuances (
  mint_address, holding_account, owner, fee_payer, decimals, amount,
  tx_signature, name, symbol, uri, issued_at
) VALUES (
  $1, $2, $3, $4, $5, $6::numeric,
  $7, $8, $9, $10, $11
)`
	_, err := r.DB.ExecContext(ctx, q,
		strings.TrimSpace(rec.Mint),
		strings.TrimSpace(rec.HoldingAccount),
		strings.TrimSpace(rec.Owner),
		strings.TrimSpace(rec.FeePayer),
		int16(rec.Decimals),
		strconv.FormatUint(rec.Amount, 10),
		strings.TrimSpace(rec.Signature),
		nullIfEmpty(rec.Name),
		nullIfEmpty(rec.Symbol),
		nullIfEmpty(rec.URI),
		issuedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: mint=%s", issuance.ErrAlreadyRecorded, rec.Mint)
		}
		return fmt.Errorf("issuance_repository_pg: insert: %w", err)
	}
	return nil
}

const issuanceColumns = `
  mint_address, holding_account, owner, fee_payer, decimals, amount::text,
  tx_signature, name, symbol, uri, issued_at`

func (r *IssuanceRepositoryPG) GetByMint(ctx context.Context, mint string) (issuance.Record, error) {
	q := `SELECT` + issuanceColumns + `
FROM issuances
WHERE mint_address = $1`
	rec, err := scanIssuance(r.DB.QueryRowContext(ctx, q, strings.TrimSpace(mint)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issuance.Record{}, issuance.ErrRecordNotFound
		}
		return issuance.Record{}, err
	}
	return rec, nil
}

// ListByOwner returns the owner's issuances, newest first.
func (r *IssuanceRepositoryPG) ListByOwner(ctx context.Context, owner string, limit int) ([]issuance.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT` + issuanceColumns + `
FROM issuances
WHERE owner = $1
ORDER BY issued_at DESC, mint_address
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, q, strings.TrimSpace(owner), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []issuance.Record
	for rows.Next() {
		rec, err := scanIssuance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanIssuance(s RowScanner) (issuance.Record, error) {
	var (
		rec               issuance.Record
		decimals          int16
		amount            string
		name, symbol, uri sql.NullString
	)
	if err := s.Scan(
		&rec.Mint, &rec.HoldingAccount, &rec.Owner, &rec.FeePayer, &decimals, &amount,
		&rec.Signature, &name, &symbol, &uri, &rec.IssuedAt,
	); err != nil {
		return issuance.Record{}, err
	}
	amt, err := strconv.ParseUint(strings.TrimSpace(amount), 10, 64)
	if err != nil {
		return issuance.Record{}, fmt.Errorf("issuance_repository_pg: parse amount %q: %w", amount, err)
	}
	rec.Amount = amt
	rec.Decimals = uint8(decimals)
	rec.Name = name.String
	rec.Symbol = symbol.String
	rec.URI = uri.String
	rec.IssuedAt = rec.IssuedAt.UTC()
	return rec, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.TrimSpace(s)
}
