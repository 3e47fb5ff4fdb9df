// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cabdesk/internal/config"
	httptransport "cabdesk/internal/http"
	"cabdesk/internal/infra"
	"cabdesk/internal/maps"
	"cabdesk/internal/modules/client"
	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/modules/trip"
	"cabdesk/internal/notify"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	// Routed distances and geocoding are optional; without an API key the
	// fare engine runs on haversine estimates alone.
	var geocoder maps.Geocoder
	var router maps.Router
	if cfg.Google.MapsAPIKey != "" {
		geocodeSvc, err := maps.NewGeocodeService(cfg.Google.MapsAPIKey)
		if err != nil {
			log.Error("geocode client init failed", "err", err)
			os.Exit(1)
		}
		routeSvc, err := maps.NewRouteService(cfg.Google.MapsAPIKey)
		if err != nil {
			log.Error("route client init failed", "err", err)
			os.Exit(1)
		}
		geocoder, router = geocodeSvc, routeSvc
	}
	distanceSvc := maps.NewDistanceService(geocoder, router, cfg.Geo.Timeout, log)

	var notifier trip.Notifier
	if cfg.Firebase.ProjectID != "" {
		fcmClient, err := infra.NewFirebaseMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Error("firebase init failed", "err", err)
			os.Exit(1)
		}
		notifier = notify.NewFCM(fcmClient, log)
	} else {
		log.Warn("FIREBASE_PROJECT_ID not set, assignment pushes disabled")
	}

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore, distanceSvc, log)

	matchingStore := matching.NewStore(redisClient)
	driverStore := driver.NewStore(dbPool)
	driverSvc := driver.NewService(driverStore, matchingStore, log)
	matchingSvc := matching.NewService(driverStore, matchingStore, log)

	clientStore := client.NewStore(dbPool)

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(trip.Deps{
		Store:     tripStore,
		Fares:     pricingSvc,
		Matcher:   matchingSvc,
		Drivers:   driverStore,
		Clients:   clientStore,
		Notifier:  notifier,
		OrphanAge: cfg.Dispatch.OrphanAge,
		Log:       log,
	})

	handler := httptransport.NewRouter(httptransport.Services{
		Trips:       tripSvc,
		Drivers:     driverSvc,
		Matcher:     matchingSvc,
		Fares:       pricingSvc,
		FareStore:   pricingStore,
		ClientStore: clientStore,
		Log:         log,

		NearbyRadiusKm: cfg.Dispatch.NearbyRadiusKm,
		NearbyLimit:    cfg.Dispatch.NearbyLimit,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go tripSvc.RunReconciler(ctx, cfg.Dispatch.ReconcileInterval)
	go tripSvc.RunMonitor(ctx, cfg.Dispatch.MonitorInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("server starting", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
