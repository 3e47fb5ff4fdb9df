// README: Driver handlers: registration, position reports, state, penalties, matching views.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/types"
)

type DriverHandler struct {
	drivers       *driver.Service
	matcher       *matching.Service
	defaultRadius float64
	defaultLimit  int
}

func NewDriverHandler(drivers *driver.Service, matcher *matching.Service, nearbyRadiusKm float64, nearbyLimit int) *DriverHandler {
	if nearbyRadiusKm <= 0 {
		nearbyRadiusKm = 5
	}
	if nearbyLimit <= 0 {
		nearbyLimit = 20
	}
	return &DriverHandler{drivers: drivers, matcher: matcher, defaultRadius: nearbyRadiusKm, defaultLimit: nearbyLimit}
}

type createDriverReq struct {
	CompanyID          int64  `json:"company_id"`
	Name               string `json:"name" binding:"required"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	LicensePlate       string `json:"license_plate"`
	ActiveForImmediate bool   `json:"active_for_immediate"`
	ActiveForScheduled bool   `json:"active_for_scheduled"`
	PushToken          string `json:"push_token"`
}

func (h *DriverHandler) Create(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	d := driver.Driver{
		CompanyID:          types.ID(req.CompanyID),
		Name:               req.Name,
		Phone:              req.Phone,
		Email:              req.Email,
		LicensePlate:       req.LicensePlate,
		AccountStatus:      driver.AccountActive,
		ActiveForImmediate: req.ActiveForImmediate,
		ActiveForScheduled: req.ActiveForScheduled,
		PushToken:          req.PushToken,
	}
	if err := h.drivers.Create(c.Request.Context(), &d); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.drivers.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": drivers})
}

type positionReq struct {
	Lat string `json:"lat" binding:"required"`
	Lng string `json:"lng" binding:"required"`
}

func (h *DriverHandler) UpdatePosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	p, err := h.drivers.SavePosition(c.Request.Context(), id, req.Lat, req.Lng)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type stateReq struct {
	State int `json:"state" binding:"required"`
}

func (h *DriverHandler) UpdateState(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req stateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := h.drivers.SetState(c.Request.Context(), id, req.State); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "state": driver.StateName(req.State)})
}

type penaltyReq struct {
	Manual bool `json:"manual"`
}

func (h *DriverHandler) Penalize(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req penaltyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	until, err := h.drivers.Penalize(c.Request.Context(), id, req.Manual)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "penalty_until": until})
}

func (h *DriverHandler) PenaltyStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	active, until, err := h.drivers.PenaltyStatus(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "active": active, "until": until})
}

// ListEligible exposes the immediate-dispatch pool.
func (h *DriverHandler) ListEligible(c *gin.Context) {
	eligible, err := h.matcher.ListEligible(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(eligible))
	for _, e := range eligible {
		entry := gin.H{"driver": e.Driver}
		if e.Pos != nil {
			entry["position"] = e.Pos
		}
		out = append(out, entry)
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out})
}

// Nearest runs the matcher for a pickup point without creating a trip.
func (h *DriverHandler) Nearest(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "lat and lng query parameters required")
		return
	}
	m, err := h.matcher.FindNearest(c.Request.Context(), types.Point{Lat: lat, Lng: lng})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

// Nearby serves the live geo-index view for the ops dashboard.
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "lat and lng query parameters required")
		return
	}
	radius, err := strconv.ParseFloat(c.Query("radius_km"), 64)
	if err != nil || radius <= 0 {
		radius = h.defaultRadius
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = h.defaultLimit
	}

	drivers, err := h.matcher.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": drivers})
}
