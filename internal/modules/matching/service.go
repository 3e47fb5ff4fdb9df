// README: Matching service picks the nearest eligible driver for a pickup.
package matching

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"cabdesk/internal/geo"
	"cabdesk/internal/modules/driver"
	"cabdesk/internal/types"
)

// ETA heuristic when no routing backend is involved: two minutes per
// straight-line kilometre, never below two minutes.
const (
	etaMinutesPerKm = 2.0
	etaFloorMinutes = 2.0
)

// CandidateSource lists drivers with their latest positions.
type CandidateSource interface {
	ListWithPositions(ctx context.Context) ([]driver.Candidate, error)
}

type Service struct {
	drivers CandidateSource
	store   *Store
	log     *slog.Logger
	now     func() time.Time
	randFn  func() float64
}

// NewService wires the matcher. store may be nil when no Redis index is
// configured; the nearby view then returns ErrNoDriverAvailable.
func NewService(drivers CandidateSource, store *Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		drivers: drivers,
		store:   store,
		log:     log,
		now:     time.Now,
		randFn:  rand.Float64,
	}
}

// ListEligible returns the drivers that can take a trip right now, in
// driver-id order.
func (s *Service) ListEligible(ctx context.Context) ([]driver.Candidate, error) {
	all, err := s.drivers.ListWithPositions(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []driver.Candidate
	for _, c := range all {
		if c.EligibleForImmediate(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindNearest picks the eligible driver closest to the pickup point by
// straight-line distance. Equidistant candidates keep the first in scan
// order, which is driver-id order from the store.
func (s *Service) FindNearest(ctx context.Context, pickup types.Point) (*Match, error) {
	eligible, err := s.ListEligible(ctx)
	if err != nil {
		return nil, err
	}
	best := nearestOf(eligible, pickup)
	if best == nil {
		return nil, ErrNoDriverAvailable
	}
	s.log.Info("driver matched",
		"driver_id", best.Driver.ID, "distance_km", best.DistanceKm, "eta_min", best.EtaMinutes)
	return best, nil
}

// FindForPickup matches a trip to a driver. When the pickup point is unknown
// or no candidate position can be used, it degrades to the first eligible
// driver with a simulated ETA instead of failing; it only errors when no
// driver is eligible at all.
func (s *Service) FindForPickup(ctx context.Context, pickup *types.Point, immediate bool) (*Match, error) {
	eligible, err := s.ListEligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoDriverAvailable
	}
	if pickup != nil {
		if m := nearestOf(eligible, *pickup); m != nil {
			s.log.Info("driver matched",
				"driver_id", m.Driver.ID, "distance_km", m.DistanceKm, "eta_min", m.EtaMinutes)
			return m, nil
		}
	}

	c := eligible[0]
	m := &Match{
		Driver:     c.Driver,
		EtaMinutes: s.SimulatedEta(immediate),
		Simulated:  true,
	}
	if pt, err := c.Pos.Point(); err == nil {
		m.Position = pt
	}
	s.log.Info("driver matched without pickup point",
		"driver_id", m.Driver.ID, "eta_min", m.EtaMinutes)
	return m, nil
}

func nearestOf(eligible []driver.Candidate, pickup types.Point) *Match {
	var best *Match
	for i := range eligible {
		c := &eligible[i]
		pt, err := c.Pos.Point()
		if err != nil {
			continue
		}
		km := geo.HaversineKm(pt, pickup)
		if best == nil || km < best.DistanceKm {
			best = &Match{
				Driver:     c.Driver,
				Position:   pt,
				DistanceKm: km,
				EtaMinutes: etaFromKm(km),
			}
		}
	}
	return best
}

// SimulatedEta returns a plausible arrival time for assignments where no
// position is known, such as manual dispatch of a named driver. Immediate
// pickups get 5 to 10 minutes, scheduled ones 10 to 20.
func (s *Service) SimulatedEta(immediate bool) float64 {
	if immediate {
		return math.Floor(5 + s.randFn()*5)
	}
	return math.Floor(10 + s.randFn()*10)
}

// Nearby serves the live ops view from the Redis geo index.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]NearbyDriver, error) {
	if s.store == nil {
		return nil, ErrNoDriverAvailable
	}
	return s.store.Nearby(ctx, p, radiusKm, limit)
}

func etaFromKm(km float64) float64 {
	eta := math.Round(km * etaMinutesPerKm)
	if eta < etaFloorMinutes {
		return etaFloorMinutes
	}
	return eta
}
