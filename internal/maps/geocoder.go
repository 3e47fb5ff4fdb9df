// README: Address geocoding backed by the Google Geocoding API.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"cabdesk/internal/types"
)

// ErrAddressNotFound is returned when an address yields no usable coordinates.
// Callers treat it as fatal; there is no fallback for an unknown address.
var ErrAddressNotFound = errors.New("address not found")

// Geocoder resolves free-text addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// GeocodeService handles interactions with the Google Geocoding API.
type GeocodeService struct {
	client *maps.Client
}

// NewGeocodeService creates a GeocodeService with the given API key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// Geocode returns the coordinates of the first geocoding result.
// Zero results map to ErrAddressNotFound.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return types.Point{}, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}
	loc := results[0].Geometry.Location
	if loc.Lat == 0 && loc.Lng == 0 {
		return types.Point{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
