// Package restaurant defines the restaurant catalog and its menus.
package restaurant

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a restaurant does not exist.
	ErrNotFound = errors.New("restaurant not found")
	// ErrMenuItemExists is returned when a menu already has an item with the
	// same name.
	ErrMenuItemExists = errors.New("menu item already exists")
)

// MenuItemNotFoundError indicates a requested dish is not on the menu.
type MenuItemNotFoundError struct {
	RestaurantID string
	Name         string
}

func (e *MenuItemNotFoundError) Error() string {
	return "menu item " + e.Name + " not found in restaurant " + e.RestaurantID
}

// Restaurant is a catalog entry with its menu.
type Restaurant struct {
	ID        string
	Name      string
	OwnerID   string
	Latitude  float64
	Longitude float64
	ImageURL  string
	Menu      []MenuItem
	CreatedAt time.Time
}

// MenuItem is a dish offered by a restaurant.
type MenuItem struct {
	Name     string
	Price    decimal.Decimal
	ImageURL string
}

// FindMenuItem returns the menu item with the given name.
func (r *Restaurant) FindMenuItem(name string) (MenuItem, error) {
	for _, m := range r.Menu {
		if m.Name == name {
			return m, nil
		}
	}
	return MenuItem{}, &MenuItemNotFoundError{RestaurantID: r.ID, Name: name}
}

// ListOptions controls the order of List.
type ListOptions struct {
	// Near orders restaurants by distance from the point, closest first.
	// Without it restaurants are ordered by name.
	Near *Point
}

// Repository defines persistence operations for the restaurant catalog.
type Repository interface {
	List(ctx context.Context, opts ListOptions) ([]Restaurant, error)
	GetByID(ctx context.Context, id string) (*Restaurant, error)
	Create(ctx context.Context, r *Restaurant) error
	AddMenuItem(ctx context.Context, restaurantID string, item MenuItem) error
	Delete(ctx context.Context, id string) error
}
