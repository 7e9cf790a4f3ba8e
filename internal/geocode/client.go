package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/ruralcare/carenav/internal/errors"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/metrics"
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// Resolver turns free-form postal code text into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (geo.Coordinate, error)
}

// Client calls the Google Geocoding API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Resolver = (*Client)(nil)

func NewClient(endpoint, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With(map[string]interface{}{"component": "geocode"}),
	}
}

// Resolve geocodes zip as a literal address query. It returns a NOT_FOUND
// error when the provider has no match and TRANSPORT_ERROR for network or
// provider failures. Results are never cached.
func (c *Client) Resolve(ctx context.Context, zip string) (geo.Coordinate, error) {
	start := time.Now()
	coord, err := c.resolve(ctx, zip)
	metrics.ProviderLatency.WithLabelValues("geocode", "direct").Observe(time.Since(start).Seconds())
	metrics.ProviderRequests.WithLabelValues("geocode", "direct", string(outcome(err))).Inc()
	return coord, err
}

func (c *Client) resolve(ctx context.Context, zip string) (geo.Coordinate, error) {
	reqURL, err := c.buildURL(zip)
	if err != nil {
		return geo.Coordinate{}, apperrors.NewTransportError("geocode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return geo.Coordinate{}, apperrors.NewTransportError("geocode", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("geocode request failed", map[string]interface{}{"error": err.Error()})
		return geo.Coordinate{}, apperrors.NewTransportError("geocode", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, apperrors.NewTransportError("geocode", fmt.Errorf("status %d", resp.StatusCode))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return geo.Coordinate{}, apperrors.NewTransportError("geocode", fmt.Errorf("decode response: %w", err))
	}

	switch apiResp.Status {
	case statusOK, statusZeroResults, "":
	default:
		return geo.Coordinate{}, apperrors.NewTransportError("geocode",
			fmt.Errorf("provider status %s: %s", apiResp.Status, apiResp.ErrorMessage))
	}

	if len(apiResp.Results) == 0 {
		c.logger.Info("zip code not found", map[string]interface{}{"zip": zip})
		return geo.Coordinate{}, apperrors.NewNotFoundError("zip: " + zip)
	}

	loc := apiResp.Results[0].Geometry.Location
	coord := geo.Coordinate{Lat: loc.Lat, Lng: loc.Lng}
	if !coord.Valid() {
		return geo.Coordinate{}, apperrors.NewTransportError("geocode",
			fmt.Errorf("provider returned coordinate off the globe: %s", coord))
	}
	c.logger.Debug("zip code resolved", map[string]interface{}{
		"zip":     zip,
		"address": apiResp.Results[0].FormattedAddress,
		"lat":     coord.Lat,
		"lng":     coord.Lng,
	})
	return coord, nil
}

func (c *Client) buildURL(zip string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse geocode endpoint: %w", err)
	}
	params := u.Query()
	params.Set("address", zip)
	params.Set("key", c.apiKey)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func outcome(err error) apperrors.ErrorCode {
	if err == nil {
		return "OK"
	}
	return apperrors.CodeOf(err)
}
