// Package notification stores user-facing notifications derived from
// checkout events.
package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

// Notification is a message shown to a user.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
}

// Repository persists notifications.
type Repository interface {
	// Create stores n. Creating the same ID twice is a no-op.
	Create(ctx context.Context, n Notification) error
	// List returns the user's notifications newest first.
	List(ctx context.Context, userID string, limit int) ([]Notification, error)
}

// Service builds and lists notifications.
type Service struct {
	repo Repository
}

// NewService creates a notification Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// namespace derives stable notification IDs from checkout IDs so that
// redelivered events do not produce duplicates.
var namespace = uuid.MustParse("6f1c3f5e-8a52-4b83-9c1e-2f0d7f4b9a10")

// FromCheckout builds the "order paid" notification for e.
func FromCheckout(e checkout.Event) Notification {
	return Notification{
		ID:        uuid.NewSHA1(namespace, []byte(e.CheckoutID)).String(),
		UserID:    e.UserID,
		Title:     "Order paid",
		Body:      "Your order of " + e.FinalTotal.StringFixed(2) + " has been paid.",
		CreatedAt: e.CompletedAt,
	}
}

// HandleCheckoutCompleted stores the notification for a completed checkout.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, e checkout.Event) error {
	if e.UserID == "" {
		return errors.New("event without user")
	}
	if err := s.repo.Create(ctx, FromCheckout(e)); err != nil {
		return errors.Wrap(err, "create notification")
	}
	return nil
}

// List returns up to 50 of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := s.repo.List(ctx, userID, 50)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return ns, nil
}
