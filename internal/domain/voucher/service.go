package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Service implements catalog browsing, claiming and checkout selection.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a voucher Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Catalog lists the claimable vouchers.
func (s *Service) Catalog(ctx context.Context) ([]CatalogVoucher, error) {
	vs, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	return vs, nil
}

// Claim copies a catalog voucher into the user's set.
func (s *Service) Claim(ctx context.Context, userID, code string) (*Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrVoucherNotFound
	}

	cv, err := s.repo.FindCatalog(ctx, code)
	if err != nil {
		if errors.Is(err, ErrVoucherNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, errors.Wrap(err, "lookup catalog voucher")
	}

	now := s.now()
	if cv.Expired(now) {
		return nil, ErrVoucherExpired
	}

	v := New(cv.Code, cv.DiscountPercentage)
	v.Description = cv.Description
	v.ClaimedAt = now

	if err := s.repo.Claim(ctx, userID, v); err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, ErrAlreadyClaimed
		}
		return nil, errors.Wrap(err, "claim voucher")
	}
	return &v, nil
}

// Claimed lists the user's vouchers.
func (s *Service) Claimed(ctx context.Context, userID string) ([]Voucher, error) {
	vs, err := s.repo.ListClaimed(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list claimed vouchers")
	}
	return vs, nil
}

// Delete discards a claimed voucher without using it.
func (s *Service) Delete(ctx context.Context, userID, code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return ErrVoucherNotFound
	}
	if err := s.repo.Delete(ctx, userID, code); err != nil {
		if errors.Is(err, ErrVoucherNotFound) {
			return ErrVoucherNotFound
		}
		return errors.Wrap(err, "delete voucher")
	}
	return nil
}

// Select resolves the voucher to apply at checkout. An empty code selects
// no voucher and returns (nil, nil).
func (s *Service) Select(ctx context.Context, userID, code string) (*Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	v, err := s.repo.FindClaimed(ctx, userID, code)
	if err != nil {
		if errors.Is(err, ErrVoucherNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, errors.Wrap(err, "lookup claimed voucher")
	}
	return v, nil
}
