package finder

import (
	"fmt"

	"github.com/ruralcare/carenav/internal/config"
	"github.com/ruralcare/carenav/internal/geo"
	"github.com/ruralcare/carenav/internal/geocode"
	"github.com/ruralcare/carenav/internal/logger"
	"github.com/ruralcare/carenav/internal/places"
)

// NewDeps builds the geocoder and the searcher configured for each search
// path. Paths on the maps transport share one library client.
func NewDeps(cfg *config.Config, log logger.Logger) (Deps, error) {
	timeout := config.GetDuration(cfg.Google.Timeout)

	var mapsClient *places.MapsClient
	searcherFor := func(path, transport string) (places.Searcher, error) {
		if transport != config.TransportMaps {
			return places.NewDirectClient(cfg.Google.NearbySearchURL, cfg.Google.APIKey, timeout, log), nil
		}
		if mapsClient == nil {
			c, err := places.NewMapsClient(cfg.Google.MapsBaseURL, cfg.Google.APIKey, timeout, log)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			mapsClient = c
		}
		return mapsClient, nil
	}

	zipSearcher, err := searcherFor("zip search", cfg.Places.ZipSearchTransport)
	if err != nil {
		return Deps{}, err
	}
	filterSearcher, err := searcherFor("filter search", cfg.Places.FilterSearchTransport)
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Resolver:       geocode.NewClient(cfg.Google.GeocodeURL, cfg.Google.APIKey, timeout, log),
		ZipSearcher:    zipSearcher,
		FilterSearcher: filterSearcher,
		MapSize:        geo.Size{Width: cfg.Map.WidthPx, Height: cfg.Map.HeightPx},
		DefaultCenter:  geo.Coordinate{Lat: cfg.Map.DefaultLat, Lng: cfg.Map.DefaultLng},
		DefaultZoom:    cfg.Map.DefaultZoom,
	}, nil
}
