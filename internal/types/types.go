// README: Shared identifier and coordinate types used across modules.
package types

import "fmt"

// ID is a database identifier. Cross-module references are carried as IDs and
// resolved through stores, never as live object pointers.
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
