package places

import "github.com/ruralcare/carenav/internal/geo"

// SearchFilter is the user-editable search narrowing. A zero RadiusMiles
// selects the default radius and an empty Specialist the default keyword.
type SearchFilter struct {
	Specialist  string  `json:"specialist"`
	RadiusMiles float64 `json:"radiusMiles"`
}

// Facility is a health-relevant place returned by nearby search.
type Facility struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Location   geo.Coordinate `json:"location"`
	Address    string         `json:"address"`
	Rating     *float64       `json:"rating,omitempty"`
	Categories []string       `json:"categories"`
}

// apiResponse is the raw nearby search response.
type apiResponse struct {
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Results      []apiPlace `json:"results"`
}

type apiPlace struct {
	PlaceID  string      `json:"place_id"`
	Name     string      `json:"name"`
	Vicinity string      `json:"vicinity"`
	Rating   *float64    `json:"rating"`
	Geometry apiGeometry `json:"geometry"`
	Types    []string    `json:"types"`
}

type apiGeometry struct {
	Location apiLatLng `json:"location"`
}

type apiLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
