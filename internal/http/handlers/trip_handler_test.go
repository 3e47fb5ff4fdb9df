package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/modules/trip"
	"cabdesk/internal/types"
)

type memTripStore struct {
	seq   int64
	trips map[types.ID]*trip.Trip
}

func newMemTripStore() *memTripStore {
	return &memTripStore{trips: map[types.ID]*trip.Trip{}}
}

func (m *memTripStore) Create(ctx context.Context, t *trip.Trip) error {
	m.seq++
	t.ID = types.ID(m.seq)
	t.CreatedAt = time.Now()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *memTripStore) GetByID(ctx context.Context, id types.ID) (*trip.Trip, error) {
	t, ok := m.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTripStore) Update(ctx context.Context, t *trip.Trip) error {
	if _, ok := m.trips[t.ID]; !ok {
		return trip.ErrNotFound
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *memTripStore) ListByDriver(ctx context.Context, driverID types.ID) ([]trip.Trip, error) {
	return nil, nil
}

func (m *memTripStore) List(ctx context.Context, limit int) ([]trip.Trip, error) {
	var out []trip.Trip
	for _, t := range m.trips {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTripStore) SoftDelete(ctx context.Context, id types.ID) error {
	if _, ok := m.trips[id]; !ok {
		return trip.ErrNotFound
	}
	delete(m.trips, id)
	return nil
}

func (m *memTripStore) FindOrphans(ctx context.Context, olderThan time.Time) ([]trip.Trip, error) {
	return nil, nil
}

func (m *memTripStore) CountOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (m *memTripStore) AssignDriver(ctx context.Context, tripID, driverID types.ID, eta *float64) (bool, error) {
	return false, nil
}

type stubFares struct{}

func (stubFares) CalculatePrice(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error) {
	return &pricing.Quote{
		Price:      types.Money{Amount: 875, Currency: "EUR"},
		TariffName: "standard",
		DistanceKm: 3,
		EtaMinutes: 6,
		Method:     "routed",
	}, nil
}

type stubMatcher struct{}

func (stubMatcher) FindForPickup(ctx context.Context, pickup *types.Point, immediate bool) (*matching.Match, error) {
	return nil, matching.ErrNoDriverAvailable
}

type stubClients struct{}

func (stubClients) Exists(ctx context.Context, id types.ID) (bool, error) {
	return id == 1, nil
}

func newTestRouter() (*gin.Engine, *memTripStore) {
	gin.SetMode(gin.TestMode)
	store := newMemTripStore()
	svc := trip.NewService(trip.Deps{
		Store:   store,
		Fares:   stubFares{},
		Matcher: stubMatcher{},
		Clients: stubClients{},
	})
	h := NewTripHandler(svc)

	r := gin.New()
	r.POST("/api/trips", h.Create)
	r.GET("/api/trips/:id", h.Get)
	r.GET("/api/trip-states", h.States)
	return r, store
}

func TestTripHandler_CreateAndGet(t *testing.T) {
	r, _ := newTestRouter()

	body := `{
		"client_id": 1,
		"pickup_address": "Calle Mayor 1",
		"dropoff_address": "Gran Via 20",
		"is_immediate": false
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created trip.Trip
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.State != trip.StateReserved {
		t.Errorf("state = %d, want reserved", created.State)
	}
	if created.Price == nil || created.Price.Amount != 875 {
		t.Errorf("price = %v, want quote price", created.Price)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/trips/1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestTripHandler_CreateImmediateNoDriver(t *testing.T) {
	r, store := newTestRouter()

	body := `{
		"client_id": 1,
		"pickup_address": "Calle Mayor 1",
		"dropoff_address": "Gran Via 20",
		"is_immediate": true
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no driver available", w.Code)
	}
	if len(store.trips) != 0 {
		t.Errorf("trip persisted despite failed match")
	}
}

func TestTripHandler_Validation(t *testing.T) {
	r, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(`{"client_id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing addresses: status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/trips/abc", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/trips/999", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing trip: status = %d, want 404", w.Code)
	}
}

func TestTripHandler_States(t *testing.T) {
	r, _ := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trip-states", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		States []trip.StateValue `json:"states"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.States) != 8 {
		t.Errorf("listed %d states, want 8", len(resp.States))
	}
}
