// README: Trip store backed by PostgreSQL; assignment uses a conditional update.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cabdesk/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Trip) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (
			client_id, driver_id, admin_id,
			pickup_address, dropoff_address,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			state, is_immediate, payment_method, service_type,
			price, currency, eta_minutes, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, NOW()
		)
		RETURNING id, created_at`,
		int64(t.ClientID),
		idPtr(t.DriverID),
		nullID(t.AdminID),
		t.PickupAddress,
		t.DropoffAddress,
		latPtr(t.PickupCoords), lngPtr(t.PickupCoords),
		latPtr(t.DropoffCoords), lngPtr(t.DropoffCoords),
		t.State,
		t.IsImmediate,
		t.PaymentMethod,
		t.ServiceType,
		amountPtr(t.Price),
		currencyOf(t.Price),
		t.EtaMinutes,
		t.Notes,
	)
	return row.Scan(&t.ID, &t.CreatedAt)
}

func (s *Store) GetByID(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, selectTrip+`
		WHERE id = $1 AND deleted_at IS NULL`, int64(id),
	)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, t *Trip) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET driver_id = $1,
		    pickup_address = $2,
		    dropoff_address = $3,
		    pickup_lat = $4, pickup_lng = $5,
		    dropoff_lat = $6, dropoff_lng = $7,
		    state = $8,
		    is_immediate = $9,
		    payment_method = $10,
		    service_type = $11,
		    price = $12,
		    currency = $13,
		    eta_minutes = $14,
		    notes = $15,
		    updated_at = NOW()
		WHERE id = $16 AND deleted_at IS NULL`,
		idPtr(t.DriverID),
		t.PickupAddress,
		t.DropoffAddress,
		latPtr(t.PickupCoords), lngPtr(t.PickupCoords),
		latPtr(t.DropoffCoords), lngPtr(t.DropoffCoords),
		t.State,
		t.IsImmediate,
		t.PaymentMethod,
		t.ServiceType,
		amountPtr(t.Price),
		currencyOf(t.Price),
		t.EtaMinutes,
		t.Notes,
		int64(t.ID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]Trip, error) {
	rows, err := s.db.Query(ctx, selectTrip+`
		WHERE driver_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, int64(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) List(ctx context.Context, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, selectTrip+`
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) SoftDelete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		int64(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOrphans returns reserved trips without a driver created before the
// cutoff, oldest first so long-waiting clients are rescued first.
func (s *Store) FindOrphans(ctx context.Context, olderThan time.Time) ([]Trip, error) {
	rows, err := s.db.Query(ctx, selectTrip+`
		WHERE state = $1
		  AND driver_id IS NULL
		  AND created_at < $2
		  AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		StateReserved, olderThan,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) CountOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM trips
		WHERE state = $1
		  AND driver_id IS NULL
		  AND created_at < $2
		  AND deleted_at IS NULL`,
		StateReserved, olderThan,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AssignDriver attaches a driver to a reserved, unassigned trip. The state
// and driver checks in the WHERE clause make concurrent assignments of the
// same trip lose cleanly.
func (s *Store) AssignDriver(ctx context.Context, tripID, driverID types.ID, etaMinutes *float64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET driver_id = $2,
		    state = $3,
		    eta_minutes = COALESCE($4, eta_minutes),
		    updated_at = NOW()
		WHERE id = $1
		  AND driver_id IS NULL
		  AND state = $5
		  AND deleted_at IS NULL`,
		int64(tripID), int64(driverID), StateAssigned, etaMinutes, StateReserved,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const selectTrip = `
	SELECT id, client_id, driver_id, admin_id,
	       pickup_address, dropoff_address,
	       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	       state, is_immediate, payment_method, service_type,
	       price, currency, eta_minutes, notes,
	       created_at, updated_at, deleted_at
	FROM trips`

func scanTrip(row interface{ Scan(dest ...any) error }) (*Trip, error) {
	var t Trip
	var driverID, adminID sql.NullInt64
	var pickupLat, pickupLng, dropoffLat, dropoffLng sql.NullFloat64
	var paymentMethod, serviceType, notes, currency sql.NullString
	var price sql.NullInt64
	var eta sql.NullFloat64
	var updatedAt, deletedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.ClientID, &driverID, &adminID,
		&t.PickupAddress, &t.DropoffAddress,
		&pickupLat, &pickupLng, &dropoffLat, &dropoffLng,
		&t.State, &t.IsImmediate, &paymentMethod, &serviceType,
		&price, &currency, &eta, &notes,
		&t.CreatedAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.Int64)
		t.DriverID = &d
	}
	t.AdminID = types.ID(adminID.Int64)
	if pickupLat.Valid && pickupLng.Valid {
		t.PickupCoords = &types.Point{Lat: pickupLat.Float64, Lng: pickupLng.Float64}
	}
	if dropoffLat.Valid && dropoffLng.Valid {
		t.DropoffCoords = &types.Point{Lat: dropoffLat.Float64, Lng: dropoffLng.Float64}
	}
	t.PaymentMethod = paymentMethod.String
	t.ServiceType = serviceType.String
	t.Notes = notes.String
	if price.Valid {
		m := types.Money{Amount: price.Int64, Currency: currency.String}
		t.Price = &m
	}
	if eta.Valid {
		t.EtaMinutes = &eta.Float64
	}
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}

func scanTrips(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Trip, error) {
	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func idPtr(v *types.ID) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func nullID(id types.ID) *int64 {
	if id == 0 {
		return nil
	}
	v := int64(id)
	return &v
}

func latPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func lngPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}

func amountPtr(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	return &m.Amount
}

func currencyOf(m *types.Money) *string {
	if m == nil {
		return nil
	}
	return &m.Currency
}
