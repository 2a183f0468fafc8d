package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/christianyoga13/vego/internal/domain/restaurant"
)

const (
	listRestaurantsSQL = `SELECT id, name, owner_id, latitude, longitude, image_url, created_at
		FROM restaurants ORDER BY name, id`

	// Haversine distance in km from ($1, $2), matching restaurant.Distance.
	listRestaurantsNearSQL = `SELECT id, name, owner_id, latitude, longitude, image_url, created_at
		FROM restaurants
		ORDER BY 2 * 6371 * asin(sqrt(least(1,
			power(sin(radians(latitude - $1) / 2), 2) +
			cos(radians($1)) * cos(radians(latitude)) * power(sin(radians(longitude - $2) / 2), 2)
		))), name, id`

	getRestaurantSQL = `SELECT id, name, owner_id, latitude, longitude, image_url, created_at
		FROM restaurants WHERE id = $1`

	listMenuItemsSQL = `SELECT restaurant_id, name, price, image_url
		FROM menu_items WHERE restaurant_id = ANY($1) ORDER BY restaurant_id, position, name`

	insertRestaurantSQL = `INSERT INTO restaurants (id, name, owner_id, latitude, longitude, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertMenuItemSQL = `INSERT INTO menu_items (restaurant_id, name, price, image_url, position)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position), -1) + 1 FROM menu_items WHERE restaurant_id = $1))`

	deleteRestaurantSQL = `DELETE FROM restaurants WHERE id = $1`
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository backed by PostgreSQL.
type RestaurantRepository struct {
	pool *pgxpool.Pool
}

// NewRestaurantRepository returns a RestaurantRepository that uses the given pool.
func NewRestaurantRepository(pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{pool: pool}
}

// List returns every restaurant with its menu, ordered by name or, with
// opts.Near, by distance.
func (r *RestaurantRepository) List(ctx context.Context, opts restaurant.ListOptions) ([]restaurant.Restaurant, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if p := opts.Near; p != nil {
		rows, err = r.pool.Query(ctx, listRestaurantsNearSQL, p.Lat, p.Lng)
	} else {
		rows, err = r.pool.Query(ctx, listRestaurantsSQL)
	}
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	rs, err := pgx.CollectRows(rows, scanRestaurant)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	if err := r.attachMenus(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// GetByID returns a restaurant and its menu.
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}
	res, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, restaurant.ErrNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}

	rs := []restaurant.Restaurant{res}
	if err := r.attachMenus(ctx, rs); err != nil {
		return nil, err
	}
	return &rs[0], nil
}

// Create inserts a restaurant together with its initial menu.
func (r *RestaurantRepository) Create(ctx context.Context, res *restaurant.Restaurant) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRestaurantSQL,
			res.ID, res.Name, res.OwnerID, res.Latitude, res.Longitude, res.ImageURL, res.CreatedAt,
		); err != nil {
			return fmt.Errorf("creating restaurant %q: %w", res.ID, err)
		}

		rows := make([][]any, len(res.Menu))
		for i, m := range res.Menu {
			rows[i] = []any{res.ID, m.Name, m.Price, m.ImageURL, i}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"menu_items"},
			[]string{"restaurant_id", "name", "price", "image_url", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return restaurant.ErrMenuItemExists
			}
			return fmt.Errorf("creating menu for %q: %w", res.ID, err)
		}
		return nil
	})
}

// AddMenuItem appends item to the restaurant's menu.
func (r *RestaurantRepository) AddMenuItem(ctx context.Context, restaurantID string, item restaurant.MenuItem) error {
	_, err := r.pool.Exec(ctx, insertMenuItemSQL, restaurantID, item.Name, item.Price, item.ImageURL)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return restaurant.ErrMenuItemExists
	case isForeignKeyViolation(err):
		return restaurant.ErrNotFound
	default:
		return fmt.Errorf("adding menu item to %q: %w", restaurantID, err)
	}
}

// Delete removes a restaurant and, by cascade, its menu.
func (r *RestaurantRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteRestaurantSQL, id)
	if err != nil {
		return fmt.Errorf("deleting restaurant %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return restaurant.ErrNotFound
	}
	return nil
}

func (r *RestaurantRepository) attachMenus(ctx context.Context, rs []restaurant.Restaurant) error {
	if len(rs) == 0 {
		return nil
	}
	ids := make([]string, len(rs))
	index := make(map[string]int, len(rs))
	for i, res := range rs {
		ids[i] = res.ID
		index[res.ID] = i
	}

	rows, err := r.pool.Query(ctx, listMenuItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing menu items: %w", err)
	}
	var (
		restaurantID string
		item         restaurant.MenuItem
	)
	_, err = pgx.ForEachRow(rows, []any{&restaurantID, &item.Name, &item.Price, &item.ImageURL}, func() error {
		i := index[restaurantID]
		rs[i].Menu = append(rs[i].Menu, item)
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing menu items: %w", err)
	}
	return nil
}

func scanRestaurant(row pgx.CollectableRow) (restaurant.Restaurant, error) {
	var res restaurant.Restaurant
	err := row.Scan(
		&res.ID, &res.Name, &res.OwnerID, &res.Latitude, &res.Longitude, &res.ImageURL, &res.CreatedAt,
	)
	return res, err
}
