// README: Tariff and holiday store backed by PostgreSQL.
package pricing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cabdesk/internal/types"
)

var ErrNotFound = errors.New("pricing: not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Tariff) error {
	cond, err := marshalConditions(t.Conditions)
	if err != nil {
		return err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO tariffs (
			name, description, per_km, base_fee, currency,
			active, valid_from, valid_to, conditions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at`,
		t.Name,
		t.Description,
		t.PerKm.Amount,
		t.BaseFee.Amount,
		t.PerKm.Currency,
		t.Active,
		t.ValidFrom,
		t.ValidTo,
		cond,
	)
	return row.Scan(&t.ID, &t.CreatedAt)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Tariff, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, per_km, base_fee, currency,
		       active, valid_from, valid_to, conditions, created_at, updated_at
		FROM tariffs
		WHERE id = $1`, int64(id),
	)
	t, err := scanTariff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListActive returns active tariffs ordered by id. The fare engine scans
// them in this order and takes the first match, so the ordering is part of
// the pricing contract.
func (s *Store) ListActive(ctx context.Context) ([]Tariff, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, per_km, base_fee, currency,
		       active, valid_from, valid_to, conditions, created_at, updated_at
		FROM tariffs
		WHERE active
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) List(ctx context.Context) ([]Tariff, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, per_km, base_fee, currency,
		       active, valid_from, valid_to, conditions, created_at, updated_at
		FROM tariffs
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, t *Tariff) error {
	cond, err := marshalConditions(t.Conditions)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE tariffs
		SET name = $1,
		    description = $2,
		    per_km = $3,
		    base_fee = $4,
		    currency = $5,
		    active = $6,
		    valid_from = $7,
		    valid_to = $8,
		    conditions = $9,
		    updated_at = NOW()
		WHERE id = $10`,
		t.Name,
		t.Description,
		t.PerKm.Amount,
		t.BaseFee.Amount,
		t.PerKm.Currency,
		t.Active,
		t.ValidFrom,
		t.ValidTo,
		cond,
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

// Deactivate retires a tariff without deleting its row.
func (s *Store) Deactivate(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tariffs SET active = false, updated_at = NOW() WHERE id = $1`,
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

func (s *Store) IsHoliday(ctx context.Context, day time.Time) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM holidays
			WHERE date = $1::date AND active
		)`, day,
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateHoliday(ctx context.Context, h *Holiday) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO holidays (date, name, description, active, created_at)
		VALUES ($1::date, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		h.Date,
		h.Name,
		h.Description,
		h.Active,
	)
	return row.Scan(&h.ID, &h.CreatedAt)
}

func (s *Store) ListHolidays(ctx context.Context) ([]Holiday, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, date, name, description, active, created_at, updated_at
		FROM holidays
		ORDER BY date`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		var desc sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &desc, &h.Active, &h.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		h.Description = desc.String
		h.UpdatedAt = toTimePtr(updatedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) DeleteHoliday(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE holidays SET active = false, updated_at = NOW() WHERE id = $1`,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTariff(row rowScanner) (*Tariff, error) {
	var t Tariff
	var desc sql.NullString
	var currency string
	var validFrom, validTo, updatedAt sql.NullTime
	var cond []byte

	err := row.Scan(
		&t.ID, &t.Name, &desc, &t.PerKm.Amount, &t.BaseFee.Amount, &currency,
		&t.Active, &validFrom, &validTo, &cond, &t.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = desc.String
	t.PerKm.Currency = currency
	t.BaseFee.Currency = currency
	t.ValidFrom = toTimePtr(validFrom)
	t.ValidTo = toTimePtr(validTo)
	t.UpdatedAt = toTimePtr(updatedAt)
	if len(cond) > 0 {
		var c Conditions
		if err := json.Unmarshal(cond, &c); err != nil {
			return nil, err
		}
		t.Conditions = &c
	}
	return &t, nil
}

func marshalConditions(c *Conditions) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
