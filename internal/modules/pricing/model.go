// README: Tariff and holiday definitions plus the condition predicate.
package pricing

import (
	"time"

	"cabdesk/internal/types"
)

// Tariff is a conditional price formula: per-km rate plus base fee, gated by
// the predicate in Conditions. A tariff without a conditions object never
// matches any quote.
type Tariff struct {
	ID          types.ID    `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	PerKm       types.Money `json:"per_km"`
	BaseFee     types.Money `json:"base_fee"`
	Active      bool        `json:"active"`
	ValidFrom   *time.Time  `json:"valid_from,omitempty"`
	ValidTo     *time.Time  `json:"valid_to,omitempty"`
	Conditions  *Conditions `json:"conditions,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// Conditions is the structured predicate stored as JSON alongside each
// tariff. Every present field must hold for the tariff to apply; absent
// fields are not checked.
type Conditions struct {
	// Weekdays allowed, ISO numbering 1=Monday..7=Sunday.
	Weekdays []int `json:"weekdays,omitempty"`
	// TimeStart and TimeEnd bound the time of day, "HH:MM" 24h, inclusive on
	// both ends. Both must be set for the window to be checked; windows do
	// not cross midnight.
	TimeStart string `json:"time_start,omitempty"`
	TimeEnd   string `json:"time_end,omitempty"`
	// Holiday, when set, must equal the holiday flag of the quoted date.
	Holiday *bool `json:"holiday,omitempty"`
	// SpecialZone requires the quote to name a zone.
	SpecialZone bool `json:"special_zone,omitempty"`
	// ServiceTypes allowed, e.g. "normal", "premium".
	ServiceTypes []string `json:"service_types,omitempty"`
	// MinKm and MaxKm bound the trip distance, both inclusive.
	MinKm *float64 `json:"min_km,omitempty"`
	MaxKm *float64 `json:"max_km,omitempty"`
}

// Holiday marks a calendar day the fare engine treats as festive.
type Holiday struct {
	ID          types.ID   `json:"id"`
	Date        time.Time  `json:"date"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Query is the tuple a tariff is evaluated against.
type Query struct {
	Weekday     int    // ISO 1=Monday..7=Sunday
	Time        string // "HH:MM" 24h
	IsHoliday   bool
	ServiceType string
	Zone        string
	DistanceKm  float64
}

// Matches reports whether every condition the tariff declares holds for q.
func (t *Tariff) Matches(q Query) bool {
	c := t.Conditions
	if c == nil {
		return false
	}
	if len(c.Weekdays) > 0 && !containsInt(c.Weekdays, q.Weekday) {
		return false
	}
	if c.TimeStart != "" && c.TimeEnd != "" {
		// Lexicographic compare is correct for zero-padded "HH:MM".
		if q.Time < c.TimeStart || q.Time > c.TimeEnd {
			return false
		}
	}
	if c.Holiday != nil && *c.Holiday != q.IsHoliday {
		return false
	}
	if len(c.ServiceTypes) > 0 && !containsString(c.ServiceTypes, q.ServiceType) {
		return false
	}
	if c.SpecialZone && q.Zone == "" {
		return false
	}
	if c.MinKm != nil && q.DistanceKm < *c.MinKm {
		return false
	}
	if c.MaxKm != nil && q.DistanceKm > *c.MaxKm {
		return false
	}
	return true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
