// README: Client records, only what trip dispatch needs.
package client

import (
	"errors"
	"time"

	"cabdesk/internal/types"
)

var ErrNotFound = errors.New("client: not found")

type Client struct {
	ID        types.ID   `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
