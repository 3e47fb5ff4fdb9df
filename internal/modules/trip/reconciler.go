// README: Orphaned-trip reconciliation loop and the hourly orphan monitor.
package trip

import (
	"context"
	"time"

	"cabdesk/internal/types"
)

// Reconciliation outcomes.
const (
	OutcomeAssigned = "assigned"
	OutcomeFailed   = "failed"
)

// Result is the outcome for one orphan.
type Result struct {
	TripID     types.ID  `json:"trip_id"`
	Outcome    string    `json:"outcome"`
	DriverID   *types.ID `json:"driver_id,omitempty"`
	EtaMinutes *float64  `json:"eta_minutes,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Report summarises one reconciliation pass.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Assigned   int       `json:"assigned"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"results"`
}

// ReconcileOrphans rescues reserved trips that have waited past the orphan
// threshold. Orphans are handled oldest first and strictly sequentially so
// two of them cannot grab the same nearest driver.
func (s *Service) ReconcileOrphans(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: s.now()}
	cutoff := report.StartedAt.Add(-s.orphanAge)

	orphans, err := s.store.FindOrphans(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report.Processed = len(orphans)

	for i := range orphans {
		t := &orphans[i]
		res := s.reconcileOne(ctx, t)
		if res.Outcome == OutcomeAssigned {
			report.Assigned++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = s.now()
	s.log.Info("orphan reconciliation finished",
		"processed", report.Processed, "assigned", report.Assigned, "failed", report.Failed)
	return report, nil
}

func (s *Service) reconcileOne(ctx context.Context, t *Trip) Result {
	res := Result{TripID: t.ID}

	m, err := s.matcher.FindForPickup(ctx, t.PickupCoords, t.IsImmediate)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res
	}

	reserved, err := s.drivers.Reserve(ctx, m.Driver.ID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res
	}
	if !reserved {
		res.Outcome = OutcomeFailed
		res.Reason = "driver no longer available"
		return res
	}

	eta := m.EtaMinutes
	ok, err := s.store.AssignDriver(ctx, t.ID, m.Driver.ID, &eta)
	if err != nil || !ok {
		// Trip changed under us; the driver goes back to the pool.
		if rerr := s.drivers.Release(ctx, m.Driver.ID); rerr != nil {
			s.log.Warn("driver release failed", "driver_id", m.Driver.ID, "err", rerr)
		}
		res.Outcome = OutcomeFailed
		if err != nil {
			res.Reason = err.Error()
		} else {
			res.Reason = "trip no longer assignable"
		}
		return res
	}

	id := m.Driver.ID
	t.DriverID = &id
	t.State = StateAssigned
	t.EtaMinutes = &eta
	s.notifyAssigned(m.Driver, t)

	res.Outcome = OutcomeAssigned
	res.DriverID = &id
	res.EtaMinutes = &eta
	return res
}

// RunReconciler runs ReconcileOrphans on a fixed interval until ctx is
// cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 45 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileOrphans(ctx); err != nil {
				s.log.Error("orphan reconciliation failed", "err", err)
			}
		}
	}
}

// RunMonitor periodically logs the orphan backlog. It never mutates state.
func (s *Service) RunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-s.orphanAge)
			n, err := s.store.CountOrphans(ctx, cutoff)
			if err != nil {
				s.log.Error("orphan count failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Warn("orphan trips waiting", "count", n)
			} else {
				s.log.Info("no orphan trips")
			}
		}
	}
}
