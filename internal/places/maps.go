package places

import (
	"context"
	"math"
	"net/http"
	"time"

	"googlemaps.github.io/maps"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/metrics"
)

// MapsClient issues nearby search through the Google Maps Go client. The
// library encodes radius as whole metres, so the request radius is rounded
// to the nearest metre on this binding only.
type MapsClient struct {
	client *maps.Client
	logger logger.Logger
}

var _ Searcher = (*MapsClient)(nil)

// NewMapsClient builds the library client. baseURL may be empty to use the
// library's default host.
func NewMapsClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) (*MapsClient, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, apperrors.NewTransportError("maps client", err)
	}
	return &MapsClient{
		client: client,
		logger: log.With(map[string]interface{}{"component": "places", "transport": "maps"}),
	}, nil
}

func (c *MapsClient) Search(ctx context.Context, center geo.Coordinate, filter SearchFilter) ([]Facility, error) {
	req := BuildRequest(center, filter)

	start := time.Now()
	facilities, err := c.search(ctx, req)
	metrics.ProviderLatency.WithLabelValues("nearby_search", "maps").Observe(time.Since(start).Seconds())
	metrics.ProviderRequests.WithLabelValues("nearby_search", "maps", outcome(err)).Inc()

	if err != nil {
		return nil, err
	}
	c.logger.Info("nearby search completed", map[string]interface{}{
		"keyword":     req.Keyword,
		"radius":      req.RadiusMeters,
		"resultCount": len(facilities),
	})
	return facilities, nil
}

func (c *MapsClient) search(ctx context.Context, req Request) ([]Facility, error) {
	resp, err := c.client.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: req.Location.Lat, Lng: req.Location.Lng},
		Radius:   uint(math.Round(req.RadiusMeters)),
		Keyword:  req.Keyword,
	})
	if err != nil {
		c.logger.Warn("nearby search request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewTransportError("nearby search", err)
	}

	raw := make([]Facility, 0, len(resp.Results))
	for _, r := range resp.Results {
		raw = append(raw, convertLibraryResult(r))
	}
	return finish(raw, req)
}

func convertLibraryResult(r maps.PlacesSearchResult) Facility {
	f := Facility{
		ID:         r.PlaceID,
		Name:       r.Name,
		Location:   geo.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Address:    r.Vicinity,
		Categories: r.Types,
	}
	// the library reports a missing rating as zero
	if r.Rating > 0 {
		rating := float64(r.Rating)
		f.Rating = &rating
	}
	return f
}
