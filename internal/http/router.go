// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/http/handlers"
	"cabdesk/internal/http/middleware"
	"cabdesk/internal/modules/client"
	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/modules/trip"
)

type Services struct {
	Trips       *trip.Service
	Drivers     *driver.Service
	Matcher     *matching.Service
	Fares       *pricing.Service
	FareStore   *pricing.Store
	ClientStore *client.Store
	Log         *slog.Logger

	// NearbyRadiusKm and NearbyLimit are the defaults for the
	// nearby-drivers view when the query omits them.
	NearbyRadiusKm float64
	NearbyLimit    int
}

func NewRouter(s Services) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(s.Log))

	tripHandler := handlers.NewTripHandler(s.Trips)
	r.POST("/api/trips", tripHandler.Create)
	r.GET("/api/trips", tripHandler.List)
	r.GET("/api/trips/:id", tripHandler.Get)
	r.PATCH("/api/trips/:id", tripHandler.Update)
	r.DELETE("/api/trips/:id", tripHandler.Delete)
	r.GET("/api/trip-states", tripHandler.States)
	r.POST("/api/dispatch/reconcile", tripHandler.Reconcile)

	driverHandler := handlers.NewDriverHandler(s.Drivers, s.Matcher, s.NearbyRadiusKm, s.NearbyLimit)
	r.POST("/api/drivers", driverHandler.Create)
	r.GET("/api/drivers", driverHandler.List)
	r.GET("/api/drivers/eligible", driverHandler.ListEligible)
	r.GET("/api/drivers/nearest", driverHandler.Nearest)
	r.GET("/api/drivers/nearby", driverHandler.Nearby)
	r.GET("/api/drivers/:id", driverHandler.Get)
	r.GET("/api/drivers/:id/trips", tripHandler.ListByDriver)
	r.PUT("/api/drivers/:id/position", driverHandler.UpdatePosition)
	r.PUT("/api/drivers/:id/state", driverHandler.UpdateState)
	r.POST("/api/drivers/:id/penalty", driverHandler.Penalize)
	r.GET("/api/drivers/:id/penalty", driverHandler.PenaltyStatus)

	fareHandler := handlers.NewFareHandler(s.Fares, s.FareStore)
	r.POST("/api/fares/quote", fareHandler.Quote)
	r.POST("/api/fares/tariffs", fareHandler.CreateTariff)
	r.GET("/api/fares/tariffs", fareHandler.ListTariffs)
	r.GET("/api/fares/tariffs/:id", fareHandler.GetTariff)
	r.PUT("/api/fares/tariffs/:id", fareHandler.UpdateTariff)
	r.DELETE("/api/fares/tariffs/:id", fareHandler.DeleteTariff)
	r.POST("/api/fares/holidays", fareHandler.CreateHoliday)
	r.GET("/api/fares/holidays", fareHandler.ListHolidays)
	r.DELETE("/api/fares/holidays/:id", fareHandler.DeleteHoliday)

	clientHandler := handlers.NewClientHandler(s.ClientStore)
	r.POST("/api/clients", clientHandler.Create)
	r.GET("/api/clients", clientHandler.List)
	r.GET("/api/clients/:id", clientHandler.Get)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
