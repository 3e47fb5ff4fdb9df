// README: Distance estimation: Distance Matrix first, haversine fallback.
package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"

	"cabdesk/internal/geo"
	"cabdesk/internal/types"
)

const (
	// MethodRouted marks estimates obtained from the routing provider.
	MethodRouted = "routed"
	// MethodHaversine marks estimates computed from the great-circle distance.
	MethodHaversine = "haversine"

	// haversineMinutesPerKm assumes a 30 km/h average urban speed.
	haversineMinutesPerKm = 2.0

	defaultTimeout = 5 * time.Second
)

// Endpoint is one side of a trip: a free-text address, optionally with
// caller-supplied coordinates. When coordinates are present they win over
// geocoding the address.
type Endpoint struct {
	Address string
	Coords  *types.Point
}

// Estimate is the result of a distance computation.
type Estimate struct {
	DistanceKm float64
	EtaMinutes float64
	Method     string
	Origin     types.Point
	Dest       types.Point
}

// Router computes a routed driving distance between two coordinate pairs.
type Router interface {
	Route(ctx context.Context, origin, dest types.Point) (distanceKm float64, duration time.Duration, err error)
}

// RouteService handles interactions with the Google Distance Matrix API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route returns the driving distance and duration between origin and dest.
func (s *RouteService) Route(ctx context.Context, origin, dest types.Point) (float64, time.Duration, error) {
	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", origin.Lat, origin.Lng)},
		Destinations: []string{fmt.Sprintf("%f,%f", dest.Lat, dest.Lng)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("distance matrix api error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, 0, errors.New("distance matrix: empty response")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, 0, fmt.Errorf("distance matrix element status %s", el.Status)
	}
	return float64(el.Distance.Meters) / 1000.0, el.Duration, nil
}

// DistanceService resolves endpoints and estimates trip distance and ETA.
// The routing provider is optional; when it is absent or fails the service
// degrades to geocode+haversine and never surfaces the routing error.
type DistanceService struct {
	geocoder Geocoder
	router   Router
	timeout  time.Duration
	log      *slog.Logger
}

func NewDistanceService(geocoder Geocoder, router Router, timeout time.Duration, log *slog.Logger) *DistanceService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &DistanceService{geocoder: geocoder, router: router, timeout: timeout, log: log}
}

// Resolve returns the coordinates of an endpoint. Caller-supplied coordinates
// take precedence; otherwise the address is geocoded. A geocoding failure is
// fatal to the caller.
func (s *DistanceService) Resolve(ctx context.Context, e Endpoint) (types.Point, error) {
	if e.Coords != nil {
		return *e.Coords, nil
	}
	if s.geocoder == nil {
		return types.Point{}, fmt.Errorf("%w: no geocoder configured for %q", ErrAddressNotFound, e.Address)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.geocoder.Geocode(ctx, e.Address)
}

// Estimate computes distance and ETA between two endpoints. It tries the
// routing provider first and falls back to the haversine distance with a
// fixed 30 km/h urban-speed heuristic.
func (s *DistanceService) Estimate(ctx context.Context, origin, dest Endpoint) (Estimate, error) {
	from, err := s.Resolve(ctx, origin)
	if err != nil {
		return Estimate{}, err
	}
	to, err := s.Resolve(ctx, dest)
	if err != nil {
		return Estimate{}, err
	}

	if s.router != nil {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		km, dur, rerr := s.router.Route(rctx, from, to)
		cancel()
		if rerr == nil {
			return Estimate{
				DistanceKm: km,
				EtaMinutes: dur.Minutes(),
				Method:     MethodRouted,
				Origin:     from,
				Dest:       to,
			}, nil
		}
		s.log.Warn("routed distance failed, falling back to haversine", "error", rerr)
	}

	km := geo.HaversineKm(from, to)
	return Estimate{
		DistanceKm: km,
		EtaMinutes: km * haversineMinutesPerKm,
		Method:     MethodHaversine,
		Origin:     from,
		Dest:       to,
	}, nil
}
