package geo

import (
	"fmt"
	"math"
	"strconv"
)

// Coordinate is a WGS 84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate as "lat,lng", the form the places API
// expects for its location parameter.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Valid reports whether the coordinate lies on the globe.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Bounds is a lat/lng bounding box.
type Bounds struct {
	SouthWest Coordinate `json:"southWest"`
	NorthEast Coordinate `json:"northEast"`
}

// NewBounds returns the degenerate box holding only c.
func NewBounds(c Coordinate) Bounds {
	return Bounds{SouthWest: c, NorthEast: c}
}

// Extend grows the box to include c.
func (b Bounds) Extend(c Coordinate) Bounds {
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, c.Lat)
	b.SouthWest.Lng = math.Min(b.SouthWest.Lng, c.Lng)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, c.Lat)
	b.NorthEast.Lng = math.Max(b.NorthEast.Lng, c.Lng)
	return b
}

// Contains reports whether c lies inside the box, edges included.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lng >= b.SouthWest.Lng && c.Lng <= b.NorthEast.Lng
}

// Center is the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

func (b Bounds) String() string {
	return fmt.Sprintf("bounds(%s|%s)", b.SouthWest, b.NorthEast)
}
