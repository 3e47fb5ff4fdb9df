// README: Driver service: position ingestion, state changes, penalties.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cabdesk/internal/types"
)

// Penalty durations. Manual penalties come from an operator action, automatic
// ones from a driver rejecting or timing out on an assignment.
const (
	ManualPenalty    = 5 * time.Minute
	AutomaticPenalty = 20 * time.Minute
)

// GeoIndex mirrors driver positions into a live geo set for the ops
// dashboard. Index failures must not block position ingestion.
type GeoIndex interface {
	UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point) error
	RemoveDriver(ctx context.Context, driverID types.ID) error
}

type Service struct {
	store *Store
	geo   GeoIndex
	log   *slog.Logger
	now   func() time.Time
}

// NewService wires the driver service. geo may be nil when no live index is
// configured.
func NewService(store *Store, geo GeoIndex, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, geo: geo, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, d *Driver) error {
	return s.store.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Driver, error) {
	return s.store.List(ctx)
}

// SavePosition validates and stores a coordinate report, then mirrors it to
// the geo index. The Postgres row is the source of truth; a failed mirror is
// logged and swallowed.
func (s *Service) SavePosition(ctx context.Context, driverID types.ID, lat, lng string) (*Position, error) {
	p := &Position{DriverID: driverID, Lat: lat, Lng: lng}
	pt, err := p.Point()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetByID(ctx, driverID); err != nil {
		return nil, err
	}
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert position: %w", err)
	}
	p.RecordedAt = s.now()

	if s.geo != nil {
		if err := s.geo.UpdateDriverLocation(ctx, driverID, pt); err != nil {
			s.log.Warn("geo index update failed", "driver_id", driverID, "err", err)
		}
	}
	return p, nil
}

func (s *Service) GetPosition(ctx context.Context, driverID types.ID) (*Position, error) {
	return s.store.GetPosition(ctx, driverID)
}

// SetState moves a driver to an explicit operational state. Leaving the pool
// also drops the driver from the geo index.
func (s *Service) SetState(ctx context.Context, id types.ID, state int) error {
	if _, ok := stateNames[state]; !ok {
		return ErrUnknownState
	}
	if err := s.store.SetState(ctx, id, state); err != nil {
		return err
	}
	if s.geo != nil && state == StateOutOfService {
		if err := s.geo.RemoveDriver(ctx, id); err != nil {
			s.log.Warn("geo index remove failed", "driver_id", id, "err", err)
		}
	}
	return nil
}

// Penalize bars the driver from matching for a fixed window: 5 minutes for a
// manual (operator) penalty, 20 for an automatic one.
func (s *Service) Penalize(ctx context.Context, id types.ID, manual bool) (time.Time, error) {
	d := AutomaticPenalty
	if manual {
		d = ManualPenalty
	}
	until := s.now().Add(d)
	if err := s.store.SetPenalty(ctx, id, until); err != nil {
		return time.Time{}, err
	}
	s.log.Info("driver penalized",
		"driver_id", id, "manual", manual, "until", until.Format(time.RFC3339))
	return until, nil
}

// PenaltyStatus reports whether a penalty is currently in force and when it
// ends.
func (s *Service) PenaltyStatus(ctx context.Context, id types.ID) (bool, *time.Time, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	if d.LastPenaltyUntil == nil {
		return false, nil, nil
	}
	return !d.LastPenaltyUntil.Before(s.now()), d.LastPenaltyUntil, nil
}
