// README: Trip service: creation with fare and auto-assignment, updates, reads.
package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cabdesk/internal/maps"
	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/types"
)

const notifyTimeout = 10 * time.Second

// TripStore is the persistence surface the service needs. Implemented by
// *Store; faked in tests.
type TripStore interface {
	Create(ctx context.Context, t *Trip) error
	GetByID(ctx context.Context, id types.ID) (*Trip, error)
	Update(ctx context.Context, t *Trip) error
	ListByDriver(ctx context.Context, driverID types.ID) ([]Trip, error)
	List(ctx context.Context, limit int) ([]Trip, error)
	SoftDelete(ctx context.Context, id types.ID) error
	FindOrphans(ctx context.Context, olderThan time.Time) ([]Trip, error)
	CountOrphans(ctx context.Context, olderThan time.Time) (int, error)
	AssignDriver(ctx context.Context, tripID, driverID types.ID, etaMinutes *float64) (bool, error)
}

// FareQuoter prices a trip.
type FareQuoter interface {
	CalculatePrice(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error)
}

// Matcher selects a driver for a pickup point.
type Matcher interface {
	FindForPickup(ctx context.Context, pickup *types.Point, immediate bool) (*matching.Match, error)
}

// DriverDirectory resolves and reserves drivers.
type DriverDirectory interface {
	GetByID(ctx context.Context, id types.ID) (*driver.Driver, error)
	Reserve(ctx context.Context, id types.ID) (bool, error)
	Release(ctx context.Context, id types.ID) error
}

// ClientDirectory checks that a client exists.
type ClientDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// Notifier delivers the trip-assigned push. Failures are logged and
// swallowed by the service.
type Notifier interface {
	TripAssigned(ctx context.Context, d driver.Driver, t *Trip) error
}

type Deps struct {
	Store    TripStore
	Fares    FareQuoter
	Matcher  Matcher
	Drivers  DriverDirectory
	Clients  ClientDirectory
	Notifier Notifier
	// OrphanAge is how long a reserved trip may sit without a driver before
	// the reconciler picks it up.
	OrphanAge time.Duration
	Log       *slog.Logger
}

type Service struct {
	store     TripStore
	fares     FareQuoter
	matcher   Matcher
	drivers   DriverDirectory
	clients   ClientDirectory
	notifier  Notifier
	orphanAge time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.OrphanAge <= 0 {
		d.OrphanAge = 45 * time.Minute
	}
	return &Service{
		store:     d.Store,
		fares:     d.Fares,
		matcher:   d.Matcher,
		drivers:   d.Drivers,
		clients:   d.Clients,
		notifier:  d.Notifier,
		orphanAge: d.OrphanAge,
		log:       d.Log,
		now:       time.Now,
	}
}

type CreateCommand struct {
	ClientID       types.ID
	DriverID       *types.ID
	AdminID        types.ID
	PickupAddress  string
	DropoffAddress string
	PickupCoords   *types.Point
	DropoffCoords  *types.Point
	IsImmediate    bool
	PaymentMethod  string
	ServiceType    string
	Zone           string
	// Price is the caller-supplied fallback, used only when the fare engine
	// cannot produce a quote.
	Price *types.Money
	Notes string
}

// Create builds and persists a trip: validate references, quote the fare,
// auto-assign the nearest driver for immediate trips, then notify the
// assigned driver asynchronously.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.ClientID == 0 || cmd.PickupAddress == "" || cmd.DropoffAddress == "" {
		return nil, ErrBadRequest
	}
	ok, err := s.clients.Exists(ctx, cmd.ClientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("client %d: %w", cmd.ClientID, ErrNotFound)
	}

	var assigned *driver.Driver
	if cmd.DriverID != nil {
		d, err := s.drivers.GetByID(ctx, *cmd.DriverID)
		if err != nil {
			return nil, fmt.Errorf("driver %d: %w", *cmd.DriverID, err)
		}
		assigned = d
	}

	t := &Trip{
		ClientID:       cmd.ClientID,
		AdminID:        cmd.AdminID,
		PickupAddress:  cmd.PickupAddress,
		DropoffAddress: cmd.DropoffAddress,
		PickupCoords:   cmd.PickupCoords,
		DropoffCoords:  cmd.DropoffCoords,
		State:          StateReserved,
		IsImmediate:    cmd.IsImmediate,
		PaymentMethod:  cmd.PaymentMethod,
		ServiceType:    cmd.ServiceType,
		Notes:          cmd.Notes,
	}

	s.applyQuote(ctx, t, cmd)

	// Immediate trips without an explicit driver get the nearest eligible
	// one. This is the only place a matching failure aborts the request.
	if assigned == nil && cmd.IsImmediate {
		m, err := s.matcher.FindForPickup(ctx, t.PickupCoords, true)
		if err != nil {
			if errors.Is(err, matching.ErrNoDriverAvailable) {
				return nil, ErrNoDriverAvailable
			}
			return nil, err
		}
		reserved, err := s.drivers.Reserve(ctx, m.Driver.ID)
		if err != nil {
			return nil, err
		}
		if !reserved {
			// Lost the driver to a concurrent assignment.
			return nil, ErrNoDriverAvailable
		}
		assigned = &m.Driver
		eta := m.EtaMinutes
		t.EtaMinutes = &eta
	}

	if assigned != nil {
		id := assigned.ID
		t.DriverID = &id
		t.State = StateAssigned
	}

	if err := s.store.Create(ctx, t); err != nil {
		if t.DriverID != nil && cmd.DriverID == nil {
			// Hand the reserved driver back on a failed insert.
			if rerr := s.drivers.Release(ctx, *t.DriverID); rerr != nil {
				s.log.Warn("driver release failed", "driver_id", *t.DriverID, "err", rerr)
			}
		}
		return nil, err
	}

	s.log.Info("trip created",
		"trip_id", t.ID, "client_id", t.ClientID, "state", StateName(t.State),
		"immediate", t.IsImmediate)

	if assigned != nil {
		s.notifyAssigned(*assigned, t)
	}
	return t, nil
}

// applyQuote prices the trip and fills in resolved coordinates. A failed
// quote degrades to the caller-supplied price; it never aborts creation.
func (s *Service) applyQuote(ctx context.Context, t *Trip, cmd CreateCommand) {
	q, err := s.fares.CalculatePrice(ctx, pricing.QuoteRequest{
		Origin:      maps.Endpoint{Address: cmd.PickupAddress, Coords: cmd.PickupCoords},
		Destination: maps.Endpoint{Address: cmd.DropoffAddress, Coords: cmd.DropoffCoords},
		ServiceType: cmd.ServiceType,
		Zone:        cmd.Zone,
	})
	if err != nil {
		s.log.Warn("fare quote failed, keeping caller price",
			"client_id", cmd.ClientID, "err", err)
		t.Price = cmd.Price
		return
	}
	price := q.Price
	t.Price = &price
	// Caller-supplied coordinates win over geocoded ones.
	if t.PickupCoords == nil {
		origin := q.Origin
		t.PickupCoords = &origin
	}
	if t.DropoffCoords == nil {
		dest := q.Dest
		t.DropoffCoords = &dest
	}
}

type UpdateCommand struct {
	PickupAddress  *string
	DropoffAddress *string
	PickupCoords   *types.Point
	DropoffCoords  *types.Point
	DriverID       *types.ID
	State          *int
	PaymentMethod  *string
	Price          *types.Money
	Notes          *string
}

// Update merges the present patch fields into the trip. State transitions
// are not validated here; dispatch operators correct records freely.
func (s *Service) Update(ctx context.Context, id types.ID, cmd UpdateCommand) (*Trip, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.PickupAddress != nil {
		t.PickupAddress = *cmd.PickupAddress
	}
	if cmd.DropoffAddress != nil {
		t.DropoffAddress = *cmd.DropoffAddress
	}
	if cmd.PickupCoords != nil {
		t.PickupCoords = cmd.PickupCoords
	}
	if cmd.DropoffCoords != nil {
		t.DropoffCoords = cmd.DropoffCoords
	}
	if cmd.DriverID != nil {
		if _, err := s.drivers.GetByID(ctx, *cmd.DriverID); err != nil {
			return nil, fmt.Errorf("driver %d: %w", *cmd.DriverID, err)
		}
		t.DriverID = cmd.DriverID
	}
	if cmd.State != nil {
		if _, ok := stateNames[*cmd.State]; !ok {
			return nil, ErrBadRequest
		}
		t.State = *cmd.State
	}
	if cmd.PaymentMethod != nil {
		t.PaymentMethod = *cmd.PaymentMethod
	}
	if cmd.Price != nil {
		t.Price = cmd.Price
	}
	if cmd.Notes != nil {
		t.Notes = *cmd.Notes
	}

	// A trip with a driver can never sit below assigned.
	if t.DriverID != nil && t.State < StateAssigned {
		t.State = StateAssigned
	}

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]Trip, error) {
	return s.store.ListByDriver(ctx, driverID)
}

func (s *Service) List(ctx context.Context, limit int) ([]Trip, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) Delete(ctx context.Context, id types.ID) error {
	return s.store.SoftDelete(ctx, id)
}

// notifyAssigned pushes the assignment to the driver in the background. The
// trip is already committed; delivery failures only get logged.
func (s *Service) notifyAssigned(d driver.Driver, t *Trip) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.TripAssigned(ctx, d, t); err != nil {
			s.log.Warn("assignment notification failed",
				"trip_id", t.ID, "driver_id", d.ID, "err", err)
		}
	}()
}
