// Package voucher models promotional vouchers: a catalog of claimable
// promotions and the per-user set of claimed, single-use vouchers.
package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/christianyoga13/vego/internal/domain/pricing"
)

var (
	// ErrVoucherNotFound is returned when a code is neither in the catalog nor
	// claimed by the user.
	ErrVoucherNotFound = errors.New("voucher not found")
	// ErrAlreadyClaimed is returned when the user already holds the code.
	ErrAlreadyClaimed = errors.New("voucher already claimed")
	// ErrVoucherExpired is returned when a catalog voucher is past its validity.
	ErrVoucherExpired = errors.New("voucher expired")
)

// Voucher is a claimed voucher. A zero DiscountPercentage marks a
// non-monetary benefit such as free shipping.
type Voucher struct {
	Code               string
	DiscountPercentage int
	Description        string
	ClaimedAt          time.Time
}

// New returns a Voucher with a normalized code and a percentage clamped to
// [0, 100].
func New(code string, percentage int) Voucher {
	return Voucher{
		Code:               NormalizeCode(code),
		DiscountPercentage: pricing.ClampPercentage(percentage),
	}
}

// CatalogVoucher is a promotion users can claim.
type CatalogVoucher struct {
	Code               string
	DiscountPercentage int
	Description        string
	ValidUntil         *time.Time
}

// Expired reports whether the voucher can no longer be claimed at now.
func (c *CatalogVoucher) Expired(now time.Time) bool {
	return c.ValidUntil != nil && now.After(*c.ValidUntil)
}

// NormalizeCode trims and upper-cases a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository stores the voucher catalog and claimed vouchers.
type Repository interface {
	ListCatalog(ctx context.Context) ([]CatalogVoucher, error)
	FindCatalog(ctx context.Context, code string) (*CatalogVoucher, error)
	UpsertCatalog(ctx context.Context, v CatalogVoucher) error
	// Claim stores v for the user. Returns ErrAlreadyClaimed on duplicates.
	Claim(ctx context.Context, userID string, v Voucher) error
	ListClaimed(ctx context.Context, userID string) ([]Voucher, error)
	FindClaimed(ctx context.Context, userID, code string) (*Voucher, error)
	// Delete discards one of the user's vouchers. Returns ErrVoucherNotFound
	// when the user holds no such voucher.
	Delete(ctx context.Context, userID, code string) error
}
