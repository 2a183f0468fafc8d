package restaurant

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 position in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether p is a real coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Location returns the position of the restaurant.
func (r *Restaurant) Location() Point {
	return Point{Lat: r.Latitude, Lng: r.Longitude}
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(math.Min(1, h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
