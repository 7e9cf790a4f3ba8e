package geocode

// apiResponse is the raw response from the Geocoding API.
type apiResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	FormattedAddress string      `json:"formatted_address"`
	Geometry         apiGeometry `json:"geometry"`
}

type apiGeometry struct {
	Location apiLatLng `json:"location"`
}

type apiLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
