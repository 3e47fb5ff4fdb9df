package maps

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cabdesk/internal/types"
)

type fakeGeocoder struct {
	points map[string]types.Point
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	p, ok := f.points[address]
	if !ok {
		return types.Point{}, ErrAddressNotFound
	}
	return p, nil
}

type fakeRouter struct {
	km  float64
	dur time.Duration
	err error
}

func (f *fakeRouter) Route(_ context.Context, _, _ types.Point) (float64, time.Duration, error) {
	return f.km, f.dur, f.err
}

var (
	madrid    = types.Point{Lat: 40.4168, Lng: -3.7038}
	barcelona = types.Point{Lat: 41.3851, Lng: 2.1734}
)

func testGeocoder() *fakeGeocoder {
	return &fakeGeocoder{points: map[string]types.Point{
		"madrid":    madrid,
		"barcelona": barcelona,
	}}
}

func TestEstimate_RoutedPreferred(t *testing.T) {
	router := &fakeRouter{km: 620, dur: 370 * time.Minute}
	svc := NewDistanceService(testGeocoder(), router, 0, nil)

	est, err := svc.Estimate(context.Background(), Endpoint{Address: "madrid"}, Endpoint{Address: "barcelona"})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.Method != MethodRouted {
		t.Errorf("method = %q, want %q", est.Method, MethodRouted)
	}
	if est.DistanceKm != 620 {
		t.Errorf("distance = %f, want 620", est.DistanceKm)
	}
	if est.EtaMinutes != 370 {
		t.Errorf("eta = %f, want 370", est.EtaMinutes)
	}
}

func TestEstimate_FallsBackOnRouterFailure(t *testing.T) {
	router := &fakeRouter{err: errors.New("quota exceeded")}
	svc := NewDistanceService(testGeocoder(), router, 0, nil)

	est, err := svc.Estimate(context.Background(), Endpoint{Address: "madrid"}, Endpoint{Address: "barcelona"})
	if err != nil {
		t.Fatalf("routing failure must be recovered, got %v", err)
	}
	if est.Method != MethodHaversine {
		t.Errorf("method = %q, want %q", est.Method, MethodHaversine)
	}
	if math.Abs(est.DistanceKm-505) > 5 {
		t.Errorf("distance = %f, want ~505", est.DistanceKm)
	}
	if math.Abs(est.EtaMinutes-est.DistanceKm*2) > 0.001 {
		t.Errorf("eta = %f, want distance*2", est.EtaMinutes)
	}
}

func TestEstimate_NoRouterConfigured(t *testing.T) {
	svc := NewDistanceService(testGeocoder(), nil, 0, nil)

	est, err := svc.Estimate(context.Background(), Endpoint{Address: "madrid"}, Endpoint{Address: "barcelona"})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.Method != MethodHaversine {
		t.Errorf("method = %q, want %q", est.Method, MethodHaversine)
	}
}

func TestEstimate_GeocodeFailureIsFatal(t *testing.T) {
	svc := NewDistanceService(testGeocoder(), &fakeRouter{km: 1}, 0, nil)

	_, err := svc.Estimate(context.Background(), Endpoint{Address: "nowhere"}, Endpoint{Address: "barcelona"})
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("err = %v, want ErrAddressNotFound", err)
	}
}

func TestResolve_CoordsWinOverGeocoding(t *testing.T) {
	svc := NewDistanceService(testGeocoder(), nil, 0, nil)

	p := types.Point{Lat: 1, Lng: 2}
	got, err := svc.Resolve(context.Background(), Endpoint{Address: "madrid", Coords: &p})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != p {
		t.Errorf("resolve = %+v, want caller coords %+v", got, p)
	}
}
