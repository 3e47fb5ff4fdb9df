// README: Live driver geo index backed by Redis GEO.
package matching

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cabdesk/internal/types"
)

const driverGeoKey = "dispatch:drivers"

// Store keeps a best-effort geo set of driver positions for the ops nearby
// view. Postgres stays authoritative for matching decisions.
type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID.String(),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *Store) RemoveDriver(ctx context.Context, driverID types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, driverID.String()).Err()
}

// Nearby returns drivers within radiusKm of p, closest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	results, err := s.redis.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]NearbyDriver, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, NearbyDriver{
			ID:         types.ID(id),
			DistanceKm: r.Dist,
			Position:   types.Point{Lat: r.Latitude, Lng: r.Longitude},
		})
	}
	return out, nil
}
