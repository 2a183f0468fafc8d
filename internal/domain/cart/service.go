package cart

import (
	"context"
	"fmt"

	"github.com/christianyoga13/vego/internal/domain/restaurant"
)

// Service implements cart operations on top of a Store, pricing new lines
// from the restaurant catalog rather than trusting the client.
type Service struct {
	store       Store
	restaurants restaurant.Repository
}

// NewService creates a cart Service.
func NewService(store Store, restaurants restaurant.Repository) *Service {
	return &Service{store: store, restaurants: restaurants}
}

// Get returns the current cart snapshot.
func (s *Service) Get(ctx context.Context, key Key) (*Cart, error) {
	c, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// Add puts one unit of the named menu item into the cart.
func (s *Service) Add(ctx context.Context, key Key, name string) (*Cart, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	r, err := s.restaurants.GetByID(ctx, key.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	item, err := r.FindMenuItem(name)
	if err != nil {
		return nil, err
	}

	if err := s.store.Increment(ctx, key, item.Name, item.Price); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	return s.Get(ctx, key)
}

// SetQuantity sets the quantity of a line; n <= 0 removes the line.
func (s *Service) SetQuantity(ctx context.Context, key Key, name string, n int) (*Cart, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if n > MaxQuantity {
		return nil, ErrQuantityTooLarge
	}
	if err := s.store.SetQuantity(ctx, key, name, n); err != nil {
		return nil, fmt.Errorf("set quantity: %w", err)
	}
	return s.Get(ctx, key)
}

// Remove deletes a line from the cart.
func (s *Service) Remove(ctx context.Context, key Key, name string) (*Cart, error) {
	if err := s.store.Remove(ctx, key, name); err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}
	return s.Get(ctx, key)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, key Key) error {
	if err := s.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Settle removes the lines paid by checkoutID from the cart.
func (s *Service) Settle(ctx context.Context, key Key, checkoutID string, paid []Item) error {
	if err := s.store.Settle(ctx, key, checkoutID, paid); err != nil {
		return fmt.Errorf("settle cart: %w", err)
	}
	return nil
}

// Watch streams cart snapshots until ctx is done.
func (s *Service) Watch(ctx context.Context, key Key) (<-chan Cart, error) {
	return s.store.Watch(ctx, key)
}
