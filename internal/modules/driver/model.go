// README: Driver profile, operational state, and position reports.
package driver

import (
	"errors"
	"strconv"
	"time"

	"cabdesk/internal/types"
)

// Operational states. A driver can only be matched while Available.
const (
	StateAvailable    = 10
	StateBusy         = 20
	StateOutOfService = 30
)

var stateNames = map[int]string{
	StateAvailable:    "available",
	StateBusy:         "busy",
	StateOutOfService: "out_of_service",
}

// StateName returns a readable label for a state code.
func StateName(state int) string {
	if n, ok := stateNames[state]; ok {
		return n
	}
	return "unknown"
}

var (
	ErrNotFound      = errors.New("driver: not found")
	ErrNotAvailable  = errors.New("driver: not available")
	ErrInvalidCoords = errors.New("driver: invalid coordinates")
	ErrUnknownState  = errors.New("driver: unknown state")
)

// Account statuses.
const (
	AccountActive  = "active"
	AccountBlocked = "blocked"
	AccountDeleted = "deleted"
)

type Driver struct {
	ID                 types.ID   `json:"id"`
	CompanyID          types.ID   `json:"company_id,omitempty"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone,omitempty"`
	Email              string     `json:"email,omitempty"`
	LicensePlate       string     `json:"license_plate,omitempty"`
	AccountStatus      string     `json:"account_status"`
	State              int        `json:"state"`
	ActiveForImmediate bool       `json:"active_for_immediate"`
	ActiveForScheduled bool       `json:"active_for_scheduled"`
	LoggedIn           bool       `json:"logged_in"`
	PushToken          string     `json:"-"`
	LastPenaltyUntil   *time.Time `json:"last_penalty_until,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// Position is the latest reported location of a driver. Coordinates travel
// as strings end to end; Point parses them on demand.
type Position struct {
	DriverID   types.ID  `json:"driver_id"`
	Lat        string    `json:"lat"`
	Lng        string    `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Point parses the stored coordinate strings.
func (p *Position) Point() (types.Point, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return types.Point{}, ErrInvalidCoords
	}
	lng, err := strconv.ParseFloat(p.Lng, 64)
	if err != nil {
		return types.Point{}, ErrInvalidCoords
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return types.Point{}, ErrInvalidCoords
	}
	return types.Point{Lat: lat, Lng: lng}, nil
}

// Candidate pairs a driver with their latest position for matching. Pos is
// nil when the driver has never reported one.
type Candidate struct {
	Driver Driver
	Pos    *Position
}

// EligibleForImmediate reports whether the driver can take a trip right now:
// active account, available state, opted in to immediate dispatch, logged in,
// a registered plate, a usable position, and no penalty still in force.
func (c *Candidate) EligibleForImmediate(now time.Time) bool {
	d := &c.Driver
	if d.AccountStatus != AccountActive || d.State != StateAvailable {
		return false
	}
	if !d.ActiveForImmediate || !d.LoggedIn || d.LicensePlate == "" {
		return false
	}
	if c.Pos == nil {
		return false
	}
	if _, err := c.Pos.Point(); err != nil {
		return false
	}
	if d.LastPenaltyUntil != nil && !d.LastPenaltyUntil.Before(now) {
		return false
	}
	return true
}
