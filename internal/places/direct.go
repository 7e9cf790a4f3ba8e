package places

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

// DirectClient calls the nearby search endpoint over plain HTTP.
type DirectClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Searcher = (*DirectClient)(nil)

func NewDirectClient(endpoint, apiKey string, timeout time.Duration, log logger.Logger) *DirectClient {
	return &DirectClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With(map[string]interface{}{"component": "places", "transport": "direct"}),
	}
}

func (c *DirectClient) Search(ctx context.Context, center geo.Coordinate, filter SearchFilter) ([]Facility, error) {
	req := BuildRequest(center, filter)

	start := time.Now()
	facilities, err := c.search(ctx, req)
	metrics.ProviderLatency.WithLabelValues("nearby_search", "direct").Observe(time.Since(start).Seconds())
	metrics.ProviderRequests.WithLabelValues("nearby_search", "direct", outcome(err)).Inc()

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

func (c *DirectClient) search(ctx context.Context, req Request) ([]Facility, error) {
	searchURL, err := c.buildURL(req)
	if err != nil {
		return nil, apperrors.NewTransportError("nearby search", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, apperrors.NewTransportError("nearby search", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("nearby search request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewTransportError("nearby search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewTransportError("nearby search", fmt.Errorf("status %d", resp.StatusCode))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperrors.NewTransportError("nearby search", fmt.Errorf("decode response: %w", err))
	}

	switch apiResp.Status {
	case statusOK, statusZeroResults, "":
	default:
		return nil, apperrors.NewTransportError("nearby search",
			fmt.Errorf("provider status %s: %s", apiResp.Status, apiResp.ErrorMessage))
	}

	raw := make([]Facility, 0, len(apiResp.Results))
	for _, p := range apiResp.Results {
		raw = append(raw, convertPlace(p))
	}
	return finish(raw, req)
}

func (c *DirectClient) buildURL(req Request) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse nearby search endpoint: %w", err)
	}
	params := u.Query()
	params.Set("location", req.Location.String())
	params.Set("radius", req.RadiusParam())
	params.Set("keyword", req.Keyword)
	params.Set("key", c.apiKey)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func convertPlace(p apiPlace) Facility {
	return Facility{
		ID:         p.PlaceID,
		Name:       p.Name,
		Location:   geo.Coordinate{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		Address:    p.Vicinity,
		Rating:     p.Rating,
		Categories: p.Types,
	}
}

func outcome(err error) string {
	if err == nil {
		return "OK"
	}
	return string(apperrors.CodeOf(err))
}
