// README: Common money value object used across modules.
package types

import "fmt"

// Money is a fixed-point amount in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Float returns the amount in major units. Only the final fare arithmetic
// should work in floating point.
func (m Money) Float() float64 {
	return float64(m.Amount) / 100.0
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Float(), m.Currency)
}
