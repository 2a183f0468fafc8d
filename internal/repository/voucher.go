package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/christianyoga13/vego/internal/domain/voucher"
)

const (
	listCatalogSQL = `SELECT code, discount_percentage, description, valid_until
		FROM voucher_catalog ORDER BY code`

	findCatalogSQL = `SELECT code, discount_percentage, description, valid_until
		FROM voucher_catalog WHERE code = UPPER($1)`

	upsertCatalogSQL = `INSERT INTO voucher_catalog (code, discount_percentage, description, valid_until)
		VALUES (UPPER($1), $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			discount_percentage = EXCLUDED.discount_percentage,
			description = EXCLUDED.description,
			valid_until = EXCLUDED.valid_until`

	claimVoucherSQL = `INSERT INTO user_vouchers (user_id, code, discount_percentage, description, claimed_at)
		VALUES ($1, $2, $3, $4, $5)`

	listClaimedSQL = `SELECT code, discount_percentage, description, claimed_at
		FROM user_vouchers WHERE user_id = $1 ORDER BY claimed_at DESC, code`

	findClaimedSQL = `SELECT code, discount_percentage, description, claimed_at
		FROM user_vouchers WHERE user_id = $1 AND code = UPPER($2)`

	deleteClaimedSQL = `DELETE FROM user_vouchers WHERE user_id = $1 AND code = UPPER($2)`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// ListCatalog returns all catalog vouchers ordered by code.
func (r *VoucherRepository) ListCatalog(ctx context.Context) ([]voucher.CatalogVoucher, error) {
	rows, err := r.pool.Query(ctx, listCatalogSQL)
	if err != nil {
		return nil, fmt.Errorf("listing voucher catalog: %w", err)
	}
	return pgx.CollectRows(rows, scanCatalogVoucher)
}

// FindCatalog looks up a catalog voucher (case-insensitive).
func (r *VoucherRepository) FindCatalog(ctx context.Context, code string) (*voucher.CatalogVoucher, error) {
	rows, err := r.pool.Query(ctx, findCatalogSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding catalog voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanCatalogVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("finding catalog voucher %q: %w", code, err)
	}
	return &v, nil
}

// UpsertCatalog inserts or replaces a catalog voucher.
func (r *VoucherRepository) UpsertCatalog(ctx context.Context, v voucher.CatalogVoucher) error {
	_, err := r.pool.Exec(ctx, upsertCatalogSQL, v.Code, v.DiscountPercentage, v.Description, v.ValidUntil)
	if err != nil {
		return fmt.Errorf("upserting catalog voucher %q: %w", v.Code, err)
	}
	return nil
}

// Claim stores a claimed voucher. A second claim of the same code returns
// voucher.ErrAlreadyClaimed.
func (r *VoucherRepository) Claim(ctx context.Context, userID string, v voucher.Voucher) error {
	_, err := r.pool.Exec(ctx, claimVoucherSQL, userID, v.Code, v.DiscountPercentage, v.Description, v.ClaimedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return voucher.ErrAlreadyClaimed
		}
		return fmt.Errorf("claiming voucher %q: %w", v.Code, err)
	}
	return nil
}

// ListClaimed returns the user's unused vouchers, most recent first.
func (r *VoucherRepository) ListClaimed(ctx context.Context, userID string) ([]voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, listClaimedSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing claimed vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanClaimedVoucher)
}

// FindClaimed looks up one of the user's vouchers.
func (r *VoucherRepository) FindClaimed(ctx context.Context, userID, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, findClaimedSQL, userID, code)
	if err != nil {
		return nil, fmt.Errorf("finding claimed voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanClaimedVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("finding claimed voucher %q: %w", code, err)
	}
	return &v, nil
}

// Delete removes one of the user's vouchers.
func (r *VoucherRepository) Delete(ctx context.Context, userID, code string) error {
	tag, err := r.pool.Exec(ctx, deleteClaimedSQL, userID, code)
	if err != nil {
		return fmt.Errorf("deleting claimed voucher %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrVoucherNotFound
	}
	return nil
}

func scanCatalogVoucher(row pgx.CollectableRow) (voucher.CatalogVoucher, error) {
	var (
		v          voucher.CatalogVoucher
		percentage int32
		validUntil *time.Time
	)
	err := row.Scan(&v.Code, &percentage, &v.Description, &validUntil)
	v.DiscountPercentage = int(percentage)
	v.ValidUntil = validUntil
	return v, err
}

func scanClaimedVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		code       string
		percentage int32
		desc       string
		claimedAt  time.Time
	)
	err := row.Scan(&code, &percentage, &desc, &claimedAt)
	v := voucher.New(code, int(percentage))
	v.Description = desc
	v.ClaimedAt = claimedAt
	return v, err
}
