// README: Client store backed by PostgreSQL.
package client

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"cabdesk/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, c *Client) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO clients (name, phone, email, active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		c.Name, c.Phone, c.Email, c.Active,
	)
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (s *Store) GetByID(ctx context.Context, id types.ID) (*Client, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, email, active, created_at, updated_at
		FROM clients
		WHERE id = $1`, int64(id),
	)
	var c Client
	var phone, email sql.NullString
	var updatedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &phone, &email, &c.Active, &c.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	c.Email = email.String
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}

// Exists is the reference check trip creation relies on.
func (s *Store) Exists(ctx context.Context, id types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND active)`, int64(id),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) List(ctx context.Context) ([]Client, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, email, active, created_at, updated_at
		FROM clients
		ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		var phone, email sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &c.Active, &c.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.Email = email.String
		if updatedAt.Valid {
			c.UpdatedAt = &updatedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
