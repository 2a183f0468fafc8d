package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/restaurant"
)

var (
	errNegativePrice      = errors.New("price must not be negative")
	errIncompletePosition = errors.New("lat and lng must be given together")
	errInvalidPosition    = errors.New("lat or lng out of range")
)

type menuItemRequest struct {
	Name     string          `validate:"required,max=200"`
	Price    decimal.Decimal `validate:"-"`
	ImageURL string          `validate:"omitempty,url"`
}

func (m *menuItemRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			m.Name, err = d.Str()
		case "price":
			m.Price, err = decodeMoney(d)
		case "image_url":
			m.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (m *menuItemRequest) item() (restaurant.MenuItem, error) {
	if m.Price.IsNegative() {
		return restaurant.MenuItem{}, &badRequestError{err: errNegativePrice}
	}
	return restaurant.MenuItem{Name: m.Name, Price: m.Price, ImageURL: m.ImageURL}, nil
}

type createRestaurantRequest struct {
	Name      string            `validate:"required,max=200"`
	Latitude  float64           `validate:"latitude"`
	Longitude float64           `validate:"longitude"`
	ImageURL  string            `validate:"omitempty,url"`
	Menu      []menuItemRequest `validate:"dive"`
}

func (c *createRestaurantRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "latitude":
			c.Latitude, err = d.Float64()
		case "longitude":
			c.Longitude, err = d.Float64()
		case "image_url":
			c.ImageURL, err = d.Str()
		case "menu":
			err = d.Arr(func(d *jx.Decoder) error {
				var m menuItemRequest
				if err := m.Decode(d); err != nil {
					return err
				}
				c.Menu = append(c.Menu, m)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func encodeRestaurant(e *jx.Encoder, r restaurant.Restaurant) {
	e.ObjStart()
	restaurantFields(e, r)
	e.ObjEnd()
}

func restaurantFields(e *jx.Encoder, r restaurant.Restaurant) {
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("name")
	e.Str(r.Name)
	e.FieldStart("latitude")
	e.Float64(r.Latitude)
	e.FieldStart("longitude")
	e.Float64(r.Longitude)
	e.FieldStart("image_url")
	e.Str(r.ImageURL)
	e.FieldStart("menu")
	e.ArrStart()
	for _, m := range r.Menu {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(m.Name)
		e.FieldStart("price")
		money(e, m.Price)
		e.FieldStart("image_url")
		e.Str(m.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	timestamp(e, r.CreatedAt)
}

// parseNear reads the optional lat and lng query parameters. Both or
// neither must be given.
func parseNear(r *http.Request) (*restaurant.Point, error) {
	q := r.URL.Query()
	lat, lng := q.Get("lat"), q.Get("lng")
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, &badRequestError{err: errIncompletePosition}
	}

	var (
		p   restaurant.Point
		err error
	)
	if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
		return nil, &badRequestError{err: err}
	}
	if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
		return nil, &badRequestError{err: err}
	}
	if !p.Valid() {
		return nil, &badRequestError{err: errInvalidPosition}
	}
	return &p, nil
}

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	near, err := parseNear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Restaurants.List(r.Context(), restaurant.ListOptions{Near: near})
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, rs := range list {
		e.ObjStart()
		restaurantFields(&e, rs)
		if near != nil {
			d := restaurant.Distance(*near, rs.Location())
			e.FieldStart("distance_km")
			e.Float64(math.Round(d*100) / 100)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Restaurants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeRestaurant(&e, *rs)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) createRestaurant(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createRestaurantRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rs := restaurant.Restaurant{
		ID:        uuid.NewString(),
		Name:      req.Name,
		OwnerID:   sess.UserID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		ImageURL:  req.ImageURL,
		CreatedAt: h.now().UTC(),
	}
	for i := range req.Menu {
		item, err := req.Menu[i].item()
		if err != nil {
			writeError(w, r, err)
			return
		}
		rs.Menu = append(rs.Menu, item)
	}

	if err := h.Restaurants.Create(r.Context(), &rs); err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeRestaurant(&e, rs)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) addMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := req.item()
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Restaurants.AddMenuItem(r.Context(), id, item); err != nil {
		writeError(w, r, err)
		return
	}
	h.getRestaurant(w, r)
}

func (h *Handler) deleteRestaurant(w http.ResponseWriter, r *http.Request) {
	if err := h.Restaurants.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
