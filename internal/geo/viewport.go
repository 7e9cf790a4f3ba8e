package geo

import "math"

const (
	// DefaultZoom is the street-level zoom the map uses after a zip search
	// and whenever the fitted bounds collapse to a single point.
	DefaultZoom = 14
	MaxZoom     = 21

	tileSize = 256
)

// Viewport is the visible map region.
type Viewport struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
	Bounds Bounds     `json:"bounds"`
}

// Size is the map canvas in pixels.
type Size struct {
	Width  int
	Height int
}

// FitViewport returns the viewport enclosing every point plus center on a
// canvas of the given size. It is a pure function of its inputs.
func FitViewport(points []Coordinate, center Coordinate, size Size) Viewport {
	b := NewBounds(center)
	for _, p := range points {
		b = b.Extend(p)
	}
	return Viewport{
		Center: b.Center(),
		Zoom:   zoomForBounds(b, size),
		Bounds: b,
	}
}

// zoomForBounds picks the largest Web Mercator zoom level at which b fits
// inside size.
func zoomForBounds(b Bounds, size Size) int {
	latFraction := (mercatorLat(b.NorthEast.Lat) - mercatorLat(b.SouthWest.Lat)) / math.Pi
	lngFraction := (b.NorthEast.Lng - b.SouthWest.Lng) / 360

	zoom := MaxZoom
	fitted := false
	if latFraction > 0 && size.Height > 0 {
		zoom = minInt(zoom, levelFor(size.Height, latFraction))
		fitted = true
	}
	if lngFraction > 0 && size.Width > 0 {
		zoom = minInt(zoom, levelFor(size.Width, lngFraction))
		fitted = true
	}
	if !fitted {
		return DefaultZoom
	}
	if zoom < 0 {
		return 0
	}
	return zoom
}

func levelFor(px int, fraction float64) int {
	return int(math.Floor(math.Log2(float64(px) / tileSize / fraction)))
}

func mercatorLat(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	radX2 := math.Log((1+sin)/(1-sin)) / 2
	return math.Max(math.Min(radX2, math.Pi), -math.Pi) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
