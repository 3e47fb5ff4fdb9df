// README: Trip handlers: create/get/list/update/delete plus dispatch endpoints.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/modules/trip"
	"cabdesk/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	ClientID       int64    `json:"client_id" binding:"required"`
	DriverID       *int64   `json:"driver_id"`
	AdminID        int64    `json:"admin_id"`
	PickupAddress  string   `json:"pickup_address" binding:"required"`
	DropoffAddress string   `json:"dropoff_address" binding:"required"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLng      *float64 `json:"pickup_lng"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLng     *float64 `json:"dropoff_lng"`
	IsImmediate    bool     `json:"is_immediate"`
	PaymentMethod  string   `json:"payment_method"`
	ServiceType    string   `json:"service_type"`
	Zone           string   `json:"zone"`
	PriceCents     *int64   `json:"price_cents"`
	Currency       string   `json:"currency"`
	Notes          string   `json:"notes"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	cmd := trip.CreateCommand{
		ClientID:       types.ID(req.ClientID),
		AdminID:        types.ID(req.AdminID),
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		PickupCoords:   pointOf(req.PickupLat, req.PickupLng),
		DropoffCoords:  pointOf(req.DropoffLat, req.DropoffLng),
		IsImmediate:    req.IsImmediate,
		PaymentMethod:  req.PaymentMethod,
		ServiceType:    req.ServiceType,
		Zone:           req.Zone,
		Notes:          req.Notes,
	}
	if req.DriverID != nil {
		id := types.ID(*req.DriverID)
		cmd.DriverID = &id
	}
	if req.PriceCents != nil {
		cur := req.Currency
		if cur == "" {
			cur = "EUR"
		}
		cmd.Price = &types.Money{Amount: *req.PriceCents, Currency: cur}
	}

	t, err := h.trips.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.trips.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trips, err := h.trips.List(c.Request.Context(), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": trips})
}

func (h *TripHandler) ListByDriver(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	trips, err := h.trips.ListByDriver(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": trips})
}

type updateTripReq struct {
	PickupAddress  *string  `json:"pickup_address"`
	DropoffAddress *string  `json:"dropoff_address"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLng      *float64 `json:"pickup_lng"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLng     *float64 `json:"dropoff_lng"`
	DriverID       *int64   `json:"driver_id"`
	State          *int     `json:"state"`
	PaymentMethod  *string  `json:"payment_method"`
	PriceCents     *int64   `json:"price_cents"`
	Currency       string   `json:"currency"`
	Notes          *string  `json:"notes"`
}

func (h *TripHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	cmd := trip.UpdateCommand{
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		PickupCoords:   pointOf(req.PickupLat, req.PickupLng),
		DropoffCoords:  pointOf(req.DropoffLat, req.DropoffLng),
		State:          req.State,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	}
	if req.DriverID != nil {
		d := types.ID(*req.DriverID)
		cmd.DriverID = &d
	}
	if req.PriceCents != nil {
		cur := req.Currency
		if cur == "" {
			cur = "EUR"
		}
		cmd.Price = &types.Money{Amount: *req.PriceCents, Currency: cur}
	}

	t, err := h.trips.Update(c.Request.Context(), id, cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.trips.Delete(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// States serves the trip-state enum listing.
func (h *TripHandler) States(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"states": trip.States()})
}

// Reconcile triggers an orphan reconciliation pass on demand.
func (h *TripHandler) Reconcile(c *gin.Context) {
	report, err := h.trips.ReconcileOrphans(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}

func pointOf(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}
