package driver

import (
	"testing"
	"time"

	"cabdesk/internal/types"
)

func TestPosition_Point(t *testing.T) {
	tests := []struct {
		name    string
		lat     string
		lng     string
		want    types.Point
		wantErr bool
	}{
		{"valid", "40.4167", "-3.7033", types.Point{Lat: 40.4167, Lng: -3.7033}, false},
		{"zero is valid", "0", "0", types.Point{}, false},
		{"garbage lat", "north", "-3.7", types.Point{}, true},
		{"garbage lng", "40.4", "west", types.Point{}, true},
		{"empty", "", "", types.Point{}, true},
		{"lat out of range", "91.0", "0", types.Point{}, true},
		{"lng out of range", "0", "181.0", types.Point{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Position{Lat: tt.lat, Lng: tt.lng}
			got, err := p.Point()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Point() error = nil, want ErrInvalidCoords")
				}
				return
			}
			if err != nil {
				t.Fatalf("Point() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Point() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func eligibleDriver() Driver {
	return Driver{
		ID:                 1,
		Name:               "test",
		LicensePlate:       "1234-ABC",
		AccountStatus:      AccountActive,
		State:              StateAvailable,
		ActiveForImmediate: true,
		LoggedIn:           true,
	}
}

func TestCandidate_EligibleForImmediate(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	pos := &Position{Lat: "40.4", Lng: "-3.7", RecordedAt: now}

	tests := []struct {
		name   string
		mutate func(*Candidate)
		want   bool
	}{
		{"all checks pass", func(c *Candidate) {}, true},
		{"blocked account", func(c *Candidate) { c.Driver.AccountStatus = AccountBlocked }, false},
		{"deleted account", func(c *Candidate) { c.Driver.AccountStatus = AccountDeleted }, false},
		{"busy driver", func(c *Candidate) { c.Driver.State = StateBusy }, false},
		{"out of service", func(c *Candidate) { c.Driver.State = StateOutOfService }, false},
		{"not opted in to immediate", func(c *Candidate) { c.Driver.ActiveForImmediate = false }, false},
		{"logged out", func(c *Candidate) { c.Driver.LoggedIn = false }, false},
		{"no license plate", func(c *Candidate) { c.Driver.LicensePlate = "" }, false},
		{"no position reported", func(c *Candidate) { c.Pos = nil }, false},
		{"unparseable position", func(c *Candidate) { c.Pos = &Position{Lat: "x", Lng: "y"} }, false},
		{"penalty still in force", func(c *Candidate) { c.Driver.LastPenaltyUntil = &future }, false},
		{"penalty at exact expiry still blocks", func(c *Candidate) { c.Driver.LastPenaltyUntil = &now }, false},
		{"penalty expired", func(c *Candidate) { c.Driver.LastPenaltyUntil = &past }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{Driver: eligibleDriver(), Pos: pos}
			tt.mutate(&c)
			if got := c.EligibleForImmediate(now); got != tt.want {
				t.Errorf("EligibleForImmediate() = %v, want %v", got, tt.want)
			}
		})
	}
}
