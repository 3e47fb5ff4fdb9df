package trip

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/types"
)

type fakeStore struct {
	mu    sync.Mutex
	seq   int64
	trips map[types.ID]*Trip
}

func newFakeStore() *fakeStore {
	return &fakeStore{trips: map[types.ID]*Trip{}}
}

func (f *fakeStore) Create(ctx context.Context, t *Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t.ID = types.ID(f.seq)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	f.trips[t.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id types.ID) (*Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok || t.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, t *Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trips[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	f.trips[t.ID] = &cp
	return nil
}

func (f *fakeStore) ListByDriver(ctx context.Context, driverID types.ID) ([]Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Trip
	for _, t := range f.trips {
		if t.DriverID != nil && *t.DriverID == driverID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) List(ctx context.Context, limit int) ([]Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Trip
	for _, t := range f.trips {
		if t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok || t.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	return nil
}

func (f *fakeStore) FindOrphans(ctx context.Context, olderThan time.Time) ([]Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Trip
	for _, t := range f.trips {
		if t.State == StateReserved && t.DriverID == nil && t.DeletedAt == nil && t.CreatedAt.Before(olderThan) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CountOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	orphans, _ := f.FindOrphans(ctx, olderThan)
	return len(orphans), nil
}

func (f *fakeStore) AssignDriver(ctx context.Context, tripID, driverID types.ID, eta *float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[tripID]
	if !ok || t.DeletedAt != nil || t.DriverID != nil || t.State != StateReserved {
		return false, nil
	}
	id := driverID
	t.DriverID = &id
	t.State = StateAssigned
	t.EtaMinutes = eta
	return true, nil
}

type fakeFares struct {
	quote *pricing.Quote
	err   error
}

func (f *fakeFares) CalculatePrice(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.quote
	return &cp, nil
}

type fakeMatcher struct {
	mu      sync.Mutex
	matches []*matching.Match
	errs    []error
	calls   int
}

func (f *fakeMatcher) FindForPickup(ctx context.Context, pickup *types.Point, immediate bool) (*matching.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.matches) {
		m := *f.matches[i]
		return &m, nil
	}
	return nil, matching.ErrNoDriverAvailable
}

type fakeDrivers struct {
	mu        sync.Mutex
	drivers   map[types.ID]*driver.Driver
	reserveNo map[types.ID]bool
	reserved  []types.ID
	released  []types.ID
}

func newFakeDrivers(ds ...driver.Driver) *fakeDrivers {
	f := &fakeDrivers{drivers: map[types.ID]*driver.Driver{}, reserveNo: map[types.ID]bool{}}
	for i := range ds {
		d := ds[i]
		f.drivers[d.ID] = &d
	}
	return f
}

func (f *fakeDrivers) GetByID(ctx context.Context, id types.ID) (*driver.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDrivers) Reserve(ctx context.Context, id types.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveNo[id] {
		return false, nil
	}
	f.reserved = append(f.reserved, id)
	return true, nil
}

func (f *fakeDrivers) Release(ctx context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return nil
}

type fakeClients struct{ ids map[types.ID]bool }

func (f *fakeClients) Exists(ctx context.Context, id types.ID) (bool, error) {
	return f.ids[id], nil
}

type fakeNotifier struct{ ch chan types.ID }

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan types.ID, 16)}
}

func (f *fakeNotifier) TripAssigned(ctx context.Context, d driver.Driver, t *Trip) error {
	f.ch <- t.ID
	return nil
}

func eur(cents int64) types.Money {
	return types.Money{Amount: cents, Currency: "EUR"}
}

func testQuote() *pricing.Quote {
	return &pricing.Quote{
		Price:      eur(875),
		TariffID:   1,
		TariffName: "standard",
		DistanceKm: 3.0,
		EtaMinutes: 6,
		Method:     "routed",
		Origin:     types.Point{Lat: 40.4168, Lng: -3.7038},
		Dest:       types.Point{Lat: 40.45, Lng: -3.69},
	}
}

func testMatch(id int64, eta float64) *matching.Match {
	return &matching.Match{
		Driver:     driver.Driver{ID: types.ID(id), Name: "d", PushToken: "tok"},
		Position:   types.Point{Lat: 40.42, Lng: -3.70},
		DistanceKm: 2.0,
		EtaMinutes: eta,
	}
}

type testEnv struct {
	store    *fakeStore
	fares    *fakeFares
	matcher  *fakeMatcher
	drivers  *fakeDrivers
	clients  *fakeClients
	notifier *fakeNotifier
	svc      *Service
}

func newTestEnv() *testEnv {
	e := &testEnv{
		store:    newFakeStore(),
		fares:    &fakeFares{quote: testQuote()},
		matcher:  &fakeMatcher{},
		drivers:  newFakeDrivers(driver.Driver{ID: 10, Name: "manual"}),
		clients:  &fakeClients{ids: map[types.ID]bool{1: true}},
		notifier: newFakeNotifier(),
	}
	e.svc = NewService(Deps{
		Store:    e.store,
		Fares:    e.fares,
		Matcher:  e.matcher,
		Drivers:  e.drivers,
		Clients:  e.clients,
		Notifier: e.notifier,
	})
	return e
}

func baseCommand() CreateCommand {
	return CreateCommand{
		ClientID:       1,
		PickupAddress:  "Calle Mayor 1, Madrid",
		DropoffAddress: "Gran Via 20, Madrid",
		IsImmediate:    true,
		PaymentMethod:  "cash",
	}
}

func waitNotify(t *testing.T, n *fakeNotifier) types.ID {
	t.Helper()
	select {
	case id := <-n.ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("no assignment notification received")
		return 0
	}
}

func TestCreate_ImmediateAutoAssign(t *testing.T) {
	e := newTestEnv()
	e.matcher.matches = []*matching.Match{testMatch(7, 4)}

	got, err := e.svc.Create(context.Background(), baseCommand())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.State != StateAssigned {
		t.Errorf("state = %s, want assigned", StateName(got.State))
	}
	if got.DriverID == nil || *got.DriverID != 7 {
		t.Fatalf("driver = %v, want 7", got.DriverID)
	}
	if got.EtaMinutes == nil || *got.EtaMinutes != 4 {
		t.Errorf("eta = %v, want 4", got.EtaMinutes)
	}
	if got.Price == nil || got.Price.Amount != 875 {
		t.Errorf("price = %v, want 875 cents from quote", got.Price)
	}
	if got.PickupCoords == nil || got.PickupCoords.Lat != 40.4168 {
		t.Errorf("pickup coords = %v, want geocoded origin", got.PickupCoords)
	}
	if len(e.drivers.reserved) != 1 || e.drivers.reserved[0] != 7 {
		t.Errorf("reserved = %v, want [7]", e.drivers.reserved)
	}
	if id := waitNotify(t, e.notifier); id != got.ID {
		t.Errorf("notified trip %d, want %d", id, got.ID)
	}
}

func TestCreate_ImmediateNoDriver(t *testing.T) {
	e := newTestEnv()
	// matcher has no matches configured and returns ErrNoDriverAvailable

	_, err := e.svc.Create(context.Background(), baseCommand())
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("error = %v, want ErrNoDriverAvailable", err)
	}
	if len(e.store.trips) != 0 {
		t.Errorf("trip persisted despite failed match")
	}
}

func TestCreate_ReservationLost(t *testing.T) {
	e := newTestEnv()
	e.matcher.matches = []*matching.Match{testMatch(7, 4)}
	e.drivers.reserveNo[7] = true

	_, err := e.svc.Create(context.Background(), baseCommand())
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("error = %v, want ErrNoDriverAvailable when reservation lost", err)
	}
	if len(e.store.trips) != 0 {
		t.Errorf("trip persisted despite lost reservation")
	}
}

func TestCreate_QuoteFailureKeepsCallerPrice(t *testing.T) {
	e := newTestEnv()
	e.fares.err = pricing.ErrNoTariff
	e.matcher.matches = []*matching.Match{testMatch(7, 4)}

	cmd := baseCommand()
	fallback := eur(1200)
	cmd.Price = &fallback

	got, err := e.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Create() error = %v (quote failure must not abort)", err)
	}
	if got.Price == nil || got.Price.Amount != 1200 {
		t.Errorf("price = %v, want caller fallback 1200", got.Price)
	}
}

func TestCreate_ScheduledStaysReserved(t *testing.T) {
	e := newTestEnv()

	cmd := baseCommand()
	cmd.IsImmediate = false
	got, err := e.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.State != StateReserved || got.DriverID != nil {
		t.Errorf("state = %s driver = %v, want reserved with no driver",
			StateName(got.State), got.DriverID)
	}
	if e.matcher.calls != 0 {
		t.Errorf("matcher called %d times for a scheduled trip, want 0", e.matcher.calls)
	}
}

func TestCreate_ExplicitDriver(t *testing.T) {
	e := newTestEnv()

	cmd := baseCommand()
	id := types.ID(10)
	cmd.DriverID = &id

	got, err := e.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.State != StateAssigned || got.DriverID == nil || *got.DriverID != 10 {
		t.Fatalf("state = %s driver = %v, want assigned to 10", StateName(got.State), got.DriverID)
	}
	if e.matcher.calls != 0 {
		t.Errorf("matcher called for manual dispatch")
	}
	waitNotify(t, e.notifier)
}

func TestCreate_UnknownReferences(t *testing.T) {
	e := newTestEnv()

	cmd := baseCommand()
	cmd.ClientID = 99
	if _, err := e.svc.Create(context.Background(), cmd); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown client: error = %v, want ErrNotFound", err)
	}

	cmd = baseCommand()
	unknown := types.ID(404)
	cmd.DriverID = &unknown
	if _, err := e.svc.Create(context.Background(), cmd); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("unknown driver: error = %v, want driver.ErrNotFound", err)
	}

	if _, err := e.svc.Create(context.Background(), CreateCommand{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty command: error = %v, want ErrBadRequest", err)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	e := newTestEnv()

	cmd := baseCommand()
	cmd.IsImmediate = false
	created, err := e.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := e.svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PickupAddress != created.PickupAddress ||
		got.DropoffAddress != created.DropoffAddress ||
		got.State != created.State {
		t.Errorf("round-trip mismatch: got %+v, created %+v", got, created)
	}
	if got.Price == nil || created.Price == nil || *got.Price != *created.Price {
		t.Errorf("price mismatch: got %v, created %v", got.Price, created.Price)
	}
}

func TestUpdate_MergeAndClamp(t *testing.T) {
	e := newTestEnv()

	cmd := baseCommand()
	cmd.IsImmediate = false
	created, err := e.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	notes := "ring the bell twice"
	got, err := e.svc.Update(context.Background(), created.ID, UpdateCommand{Notes: &notes})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Notes != notes {
		t.Errorf("notes = %q, want %q", got.Notes, notes)
	}
	if got.PickupAddress != created.PickupAddress {
		t.Errorf("untouched field changed: %q", got.PickupAddress)
	}

	// Attaching a driver clamps the state up to assigned.
	id := types.ID(10)
	got, err = e.svc.Update(context.Background(), created.ID, UpdateCommand{DriverID: &id})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.State != StateAssigned {
		t.Errorf("state = %s, want assigned after driver attach", StateName(got.State))
	}

	bad := 42
	if _, err := e.svc.Update(context.Background(), created.ID, UpdateCommand{State: &bad}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("unknown state: error = %v, want ErrBadRequest", err)
	}

	if _, err := e.svc.Update(context.Background(), 999, UpdateCommand{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing trip: error = %v, want ErrNotFound", err)
	}
}

func TestStates_Listing(t *testing.T) {
	got := States()
	if len(got) != 8 {
		t.Fatalf("States() returned %d entries, want 8", len(got))
	}
	if got[0].Code != StateReserved || got[0].Name != "reserved" {
		t.Errorf("first state = %+v, want reserved(7)", got[0])
	}
	if got[len(got)-1].Code != StateCancelled {
		t.Errorf("last state = %+v, want cancelled(90)", got[len(got)-1])
	}
	for _, s := range got {
		if s.Name == "" || s.Name == "unknown" {
			t.Errorf("state %d has no name", s.Code)
		}
	}
}
