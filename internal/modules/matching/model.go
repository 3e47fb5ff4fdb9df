// README: Matching results and the live nearby view.
package matching

import (
	"errors"

	"cabdesk/internal/modules/driver"
	"cabdesk/internal/types"
)

// ErrNoDriverAvailable means no eligible driver could be matched.
var ErrNoDriverAvailable = errors.New("matching: no driver available")

// Match is a selected driver together with the distance and ETA to the
// pickup point. Simulated is set when the ETA was generated rather than
// derived from a reported position.
type Match struct {
	Driver     driver.Driver `json:"driver"`
	Position   types.Point   `json:"position"`
	DistanceKm float64       `json:"distance_km"`
	EtaMinutes float64       `json:"eta_minutes"`
	Simulated  bool          `json:"simulated,omitempty"`
}

// NearbyDriver is an entry from the live geo index, used by the ops view.
type NearbyDriver struct {
	ID         types.ID    `json:"id"`
	DistanceKm float64     `json:"distance_km"`
	Position   types.Point `json:"position"`
}
