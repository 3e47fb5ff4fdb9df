// README: Driver store backed by PostgreSQL.
package driver

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

func (s *Store) Create(ctx context.Context, d *Driver) error {
	if d.State == 0 {
		d.State = StateOutOfService
	}
	if d.AccountStatus == "" {
		d.AccountStatus = AccountActive
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO drivers (
			company_id, name, phone, email, license_plate, account_status, state,
			active_for_immediate, active_for_scheduled, logged_in, push_token, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, created_at`,
		nullID(d.CompanyID), d.Name, d.Phone, d.Email, d.LicensePlate,
		d.AccountStatus, d.State,
		d.ActiveForImmediate, d.ActiveForScheduled, d.LoggedIn, d.PushToken,
	)
	return row.Scan(&d.ID, &d.CreatedAt)
}

func (s *Store) GetByID(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, company_id, name, phone, email, license_plate, account_status, state,
		       active_for_immediate, active_for_scheduled, logged_in,
		       push_token, last_penalty_until, created_at, updated_at
		FROM drivers
		WHERE id = $1`, int64(id),
	)
	d, err := scanDriver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) List(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, company_id, name, phone, email, license_plate, account_status, state,
		       active_for_immediate, active_for_scheduled, logged_in,
		       push_token, last_penalty_until, created_at, updated_at
		FROM drivers
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListWithPositions returns all drivers joined with their latest reported
// position, ordered by driver id. Matching iterates this slice, so the
// ordering doubles as the tie-break for equidistant candidates.
func (s *Store) ListWithPositions(ctx context.Context) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.id, d.company_id, d.name, d.phone, d.email, d.license_plate,
		       d.account_status, d.state,
		       d.active_for_immediate, d.active_for_scheduled, d.logged_in,
		       d.push_token, d.last_penalty_until, d.created_at, d.updated_at,
		       p.lat, p.lng, p.recorded_at
		FROM drivers d
		LEFT JOIN driver_positions p ON p.driver_id = d.id
		ORDER BY d.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var companyID sql.NullInt64
		var phone, email, plate, pushToken sql.NullString
		var penaltyUntil, updatedAt sql.NullTime
		var lat, lng sql.NullString
		var recordedAt sql.NullTime

		err := rows.Scan(
			&c.Driver.ID, &companyID, &c.Driver.Name, &phone, &email, &plate,
			&c.Driver.AccountStatus, &c.Driver.State,
			&c.Driver.ActiveForImmediate, &c.Driver.ActiveForScheduled, &c.Driver.LoggedIn,
			&pushToken, &penaltyUntil,
			&c.Driver.CreatedAt, &updatedAt,
			&lat, &lng, &recordedAt,
		)
		if err != nil {
			return nil, err
		}
		c.Driver.CompanyID = types.ID(companyID.Int64)
		c.Driver.Phone = phone.String
		c.Driver.Email = email.String
		c.Driver.LicensePlate = plate.String
		c.Driver.PushToken = pushToken.String
		c.Driver.LastPenaltyUntil = toTimePtr(penaltyUntil)
		c.Driver.UpdatedAt = toTimePtr(updatedAt)
		if lat.Valid && lng.Valid {
			c.Pos = &Position{
				DriverID:   c.Driver.ID,
				Lat:        lat.String,
				Lng:        lng.String,
				RecordedAt: recordedAt.Time,
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertPosition stores the latest position for a driver, replacing any
// previous report.
func (s *Store) UpsertPosition(ctx context.Context, p *Position) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_positions (driver_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (driver_id)
		DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, recorded_at = NOW()`,
		int64(p.DriverID), p.Lat, p.Lng,
	)
	return err
}

func (s *Store) GetPosition(ctx context.Context, driverID types.ID) (*Position, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, lat, lng, recorded_at
		FROM driver_positions
		WHERE driver_id = $1`, int64(driverID),
	)
	var p Position
	err := row.Scan(&p.DriverID, &p.Lat, &p.Lng, &p.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPenalty advances the driver's penalty expiry. The expiry is only ever
// pushed forward, so overlapping penalties keep the later deadline.
func (s *Store) SetPenalty(ctx context.Context, id types.ID, until time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET last_penalty_until = GREATEST(COALESCE(last_penalty_until, $2), $2),
		    updated_at = NOW()
		WHERE id = $1`,
		int64(id), until,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, id types.ID, state int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET state = $2, updated_at = NOW() WHERE id = $1`,
		int64(id), state,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reserve flips an available driver to busy. The state check in the WHERE
// clause makes concurrent assignments of the same driver lose cleanly.
func (s *Store) Reserve(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND account_status = 'active' AND state = $3`,
		int64(id), StateBusy, StateAvailable,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns a busy driver to the available pool.
func (s *Store) Release(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = $3`,
		int64(id), StateAvailable, StateBusy,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAvailable
	}
	return nil
}

func scanDriver(row interface{ Scan(dest ...any) error }) (*Driver, error) {
	var d Driver
	var companyID sql.NullInt64
	var phone, email, plate, pushToken sql.NullString
	var penaltyUntil, updatedAt sql.NullTime

	err := row.Scan(
		&d.ID, &companyID, &d.Name, &phone, &email, &plate, &d.AccountStatus, &d.State,
		&d.ActiveForImmediate, &d.ActiveForScheduled, &d.LoggedIn,
		&pushToken, &penaltyUntil, &d.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.CompanyID = types.ID(companyID.Int64)
	d.Phone = phone.String
	d.Email = email.String
	d.LicensePlate = plate.String
	d.PushToken = pushToken.String
	d.LastPenaltyUntil = toTimePtr(penaltyUntil)
	d.UpdatedAt = toTimePtr(updatedAt)
	return &d, nil
}

func nullID(id types.ID) *int64 {
	if id == 0 {
		return nil
	}
	v := int64(id)
	return &v
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
