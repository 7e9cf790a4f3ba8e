package places

import (
	"context"
	"strconv"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/metrics"
)

const (
	MetersPerMile       = 1609.34
	DefaultRadiusMeters = 20000.0
	DefaultKeyword      = "health"
)

// healthCategories is the fixed post-filter applied to every response.
var healthCategories = map[string]struct{}{
	"hospital": {},
	"doctor":   {},
	"health":   {},
}

// Searcher finds health facilities around a point. DirectClient and
// MapsClient are the two transport bindings of the same operation.
type Searcher interface {
	Search(ctx context.Context, center geo.Coordinate, filter SearchFilter) ([]Facility, error)
}

// Request is the provider-independent nearby search request.
type Request struct {
	Location     geo.Coordinate
	RadiusMeters float64
	Keyword      string
}

// BuildRequest applies the radius and keyword defaults. The radius is
// miles * 1609.34 with no rounding.
func BuildRequest(center geo.Coordinate, filter SearchFilter) Request {
	radius := DefaultRadiusMeters
	if filter.RadiusMiles > 0 {
		radius = filter.RadiusMiles * MetersPerMile
	}
	keyword := filter.Specialist
	if keyword == "" {
		keyword = DefaultKeyword
	}
	return Request{
		Location:     center,
		RadiusMeters: radius,
		Keyword:      keyword,
	}
}

// RadiusParam is the radius as transmitted on the wire.
func (r Request) RadiusParam() string {
	return strconv.FormatFloat(r.RadiusMeters, 'f', -1, 64)
}

// IsHealthRelated reports whether categories intersects
// {hospital, doctor, health}.
func IsHealthRelated(categories []string) bool {
	for _, c := range categories {
		if _, ok := healthCategories[c]; ok {
			return true
		}
	}
	return false
}

// FilterHealth keeps only health-related facilities, preserving order.
func FilterHealth(all []Facility) []Facility {
	kept := make([]Facility, 0, len(all))
	for _, f := range all {
		if IsHealthRelated(f.Categories) {
			kept = append(kept, f)
			metrics.FacilitiesFiltered.WithLabelValues("kept").Inc()
			continue
		}
		metrics.FacilitiesFiltered.WithLabelValues("dropped").Inc()
	}
	return kept
}

// finish is the shared tail of both bindings: post-filter, then NO_RESULTS
// when nothing survives.
func finish(raw []Facility, req Request) ([]Facility, error) {
	facilities := FilterHealth(raw)
	if len(facilities) == 0 {
		return nil, apperrors.NewNoResultsError("keyword: " + req.Keyword + ", radius: " + req.RadiusParam())
	}
	return facilities, nil
}
