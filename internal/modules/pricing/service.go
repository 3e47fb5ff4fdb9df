// README: Fare engine: distance estimate plus first-matching-tariff pricing.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"cabdesk/internal/maps"
	"cabdesk/internal/types"
)

const defaultCurrency = "EUR"

// ErrNoTariff is returned when no active tariff matches the quote.
var ErrNoTariff = errors.New("pricing: no tariff matches")

// TariffSource supplies the tariff catalogue the engine scans.
type TariffSource interface {
	ListActive(ctx context.Context) ([]Tariff, error)
	IsHoliday(ctx context.Context, day time.Time) (bool, error)
}

// Distancer resolves a trip's endpoints into a distance and ETA.
type Distancer interface {
	Estimate(ctx context.Context, origin, dest maps.Endpoint) (maps.Estimate, error)
}

// QuoteRequest describes the trip to price. Date and Time default to the
// current moment when omitted.
type QuoteRequest struct {
	Origin      maps.Endpoint
	Destination maps.Endpoint
	Date        *time.Time
	Time        string // "HH:MM" 24h
	ServiceType string
	Zone        string
}

// Quote is a priced trip, including the inputs the tariff was selected on.
type Quote struct {
	Price      types.Money `json:"price"`
	TariffID   types.ID    `json:"tariff_id"`
	TariffName string      `json:"tariff_name"`
	PerKm      types.Money `json:"per_km"`
	BaseFee    types.Money `json:"base_fee"`

	DistanceKm float64     `json:"distance_km"`
	EtaMinutes float64     `json:"eta_minutes"`
	Method     string      `json:"method"`
	Origin     types.Point `json:"origin"`
	Dest       types.Point `json:"destination"`

	Weekday     int    `json:"weekday"`
	Time        string `json:"time"`
	IsHoliday   bool   `json:"is_holiday"`
	ServiceType string `json:"service_type,omitempty"`
	Zone        string `json:"zone,omitempty"`
}

type Service struct {
	tariffs  TariffSource
	distance Distancer
	log      *slog.Logger
	now      func() time.Time
}

func NewService(tariffs TariffSource, distance Distancer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tariffs:  tariffs,
		distance: distance,
		log:      log,
		now:      time.Now,
	}
}

// CalculatePrice estimates the trip distance, scans active tariffs in id
// order, and prices the trip with the first one whose conditions hold.
func (s *Service) CalculatePrice(ctx context.Context, req QuoteRequest) (*Quote, error) {
	est, err := s.distance.Estimate(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("estimate distance: %w", err)
	}

	date := s.now()
	if req.Date != nil {
		date = *req.Date
	}
	hhmm := req.Time
	if hhmm == "" {
		hhmm = s.now().Format("15:04")
	}

	holiday, err := s.tariffs.IsHoliday(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("holiday lookup: %w", err)
	}

	q := Query{
		Weekday:     isoWeekday(date),
		Time:        hhmm,
		IsHoliday:   holiday,
		ServiceType: req.ServiceType,
		Zone:        req.Zone,
		DistanceKm:  est.DistanceKm,
	}

	tariffs, err := s.tariffs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}

	for i := range tariffs {
		t := &tariffs[i]
		if !t.Matches(q) {
			continue
		}
		return &Quote{
			Price:       price(t, est.DistanceKm),
			TariffID:    t.ID,
			TariffName:  t.Name,
			PerKm:       t.PerKm,
			BaseFee:     t.BaseFee,
			DistanceKm:  est.DistanceKm,
			EtaMinutes:  est.EtaMinutes,
			Method:      est.Method,
			Origin:      est.Origin,
			Dest:        est.Dest,
			Weekday:     q.Weekday,
			Time:        q.Time,
			IsHoliday:   q.IsHoliday,
			ServiceType: q.ServiceType,
			Zone:        q.Zone,
		}, nil
	}

	s.log.Warn("no tariff matched",
		"weekday", q.Weekday, "time", q.Time, "holiday", q.IsHoliday,
		"service_type", q.ServiceType, "zone", q.Zone, "distance_km", q.DistanceKm)
	return nil, ErrNoTariff
}

// price computes base + per_km*km and rounds the total up to the next
// multiple of 5 cents. The epsilon keeps exact multiples from being bumped
// a step by float error.
func price(t *Tariff, km float64) types.Money {
	rawCents := float64(t.BaseFee.Amount) + float64(t.PerKm.Amount)*km
	cents := int64(math.Ceil(rawCents/5-1e-9)) * 5
	cur := t.PerKm.Currency
	if cur == "" {
		cur = defaultCurrency
	}
	return types.Money{Amount: cents, Currency: cur}
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1,
// Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
