// README: Trip aggregate and state definitions.
package trip

import (
	"errors"
	"time"

	"cabdesk/internal/types"
)

// Trip states. The numeric domain is ordered by trip progress; Cancelled
// sits outside the progression and is reachable from any non-terminal state.
const (
	StateReserved   = 7  // no driver yet
	StateAssigned   = 10 // driver attached, not yet confirmed
	StateConfirmed  = 15
	StateEnRoute    = 20
	StateAtDoor     = 25
	StateWithClient = 30
	StateCompleted  = 40
	StateCancelled  = 90
)

var stateNames = map[int]string{
	StateReserved:   "reserved",
	StateAssigned:   "assigned",
	StateConfirmed:  "confirmed",
	StateEnRoute:    "en_route",
	StateAtDoor:     "at_door",
	StateWithClient: "with_client",
	StateCompleted:  "completed",
	StateCancelled:  "cancelled",
}

// StateName returns a readable label for a state code.
func StateName(state int) string {
	if n, ok := stateNames[state]; ok {
		return n
	}
	return "unknown"
}

// StateValue is one entry of the state enum listing.
type StateValue struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// States lists the state enum in progression order.
func States() []StateValue {
	codes := []int{
		StateReserved, StateAssigned, StateConfirmed, StateEnRoute,
		StateAtDoor, StateWithClient, StateCompleted, StateCancelled,
	}
	out := make([]StateValue, len(codes))
	for i, c := range codes {
		out[i] = StateValue{Code: c, Name: stateNames[c]}
	}
	return out
}

// IsTerminal reports whether no further progress is possible from state.
func IsTerminal(state int) bool {
	return state == StateCompleted || state == StateCancelled
}

var (
	ErrNotFound          = errors.New("trip: not found")
	ErrBadRequest        = errors.New("trip: bad request")
	ErrNoDriverAvailable = errors.New("trip: no driver available for immediate service")
	ErrAlreadyAssigned   = errors.New("trip: driver already assigned")
)

type Trip struct {
	ID             types.ID     `json:"id"`
	ClientID       types.ID     `json:"client_id"`
	DriverID       *types.ID    `json:"driver_id,omitempty"`
	AdminID        types.ID     `json:"admin_id,omitempty"`
	PickupAddress  string       `json:"pickup_address"`
	DropoffAddress string       `json:"dropoff_address"`
	PickupCoords   *types.Point `json:"pickup_coords,omitempty"`
	DropoffCoords  *types.Point `json:"dropoff_coords,omitempty"`
	State          int          `json:"state"`
	IsImmediate    bool         `json:"is_immediate"`
	PaymentMethod  string       `json:"payment_method,omitempty"`
	ServiceType    string       `json:"service_type,omitempty"`
	Price          *types.Money `json:"price,omitempty"`
	EtaMinutes     *float64     `json:"eta_minutes,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      *time.Time   `json:"updated_at,omitempty"`
	DeletedAt      *time.Time   `json:"-"`
}
