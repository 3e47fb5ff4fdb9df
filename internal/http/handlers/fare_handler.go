// README: Fare handlers: price preview plus tariff and holiday management.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/maps"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/types"
)

type FareHandler struct {
	fares *pricing.Service
	store *pricing.Store
}

func NewFareHandler(svc *pricing.Service, store *pricing.Store) *FareHandler {
	return &FareHandler{fares: svc, store: store}
}

type quoteReq struct {
	Origin      string   `json:"origin" binding:"required"`
	Destination string   `json:"destination" binding:"required"`
	OriginLat   *float64 `json:"origin_lat"`
	OriginLng   *float64 `json:"origin_lng"`
	DestLat     *float64 `json:"dest_lat"`
	DestLng     *float64 `json:"dest_lng"`
	Date        string   `json:"date"` // "2006-01-02"
	Time        string   `json:"time"` // "15:04"
	ServiceType string   `json:"service_type"`
	Zone        string   `json:"zone"`
}

// Quote prices a hypothetical trip without creating one.
func (h *FareHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	qr := pricing.QuoteRequest{
		Origin:      maps.Endpoint{Address: req.Origin, Coords: pointOf(req.OriginLat, req.OriginLng)},
		Destination: maps.Endpoint{Address: req.Destination, Coords: pointOf(req.DestLat, req.DestLng)},
		Time:        req.Time,
		ServiceType: req.ServiceType,
		Zone:        req.Zone,
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		qr.Date = &d
	}

	quote, err := h.fares.CalculatePrice(c.Request.Context(), qr)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, quote)
}

type tariffReq struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	PerKmCents  int64               `json:"per_km_cents" binding:"required"`
	BaseCents   int64               `json:"base_cents"`
	Currency    string              `json:"currency"`
	Active      *bool               `json:"active"`
	Conditions  *pricing.Conditions `json:"conditions"`
}

func (h *FareHandler) CreateTariff(c *gin.Context) {
	var req tariffReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	cur := req.Currency
	if cur == "" {
		cur = "EUR"
	}
	t := pricing.Tariff{
		Name:        req.Name,
		Description: req.Description,
		PerKm:       types.Money{Amount: req.PerKmCents, Currency: cur},
		BaseFee:     types.Money{Amount: req.BaseCents, Currency: cur},
		Active:      req.Active == nil || *req.Active,
		Conditions:  req.Conditions,
	}
	if err := h.store.Create(c.Request.Context(), &t); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *FareHandler) ListTariffs(c *gin.Context) {
	var (
		tariffs []pricing.Tariff
		err     error
	)
	if c.Query("all") == "true" {
		tariffs, err = h.store.List(c.Request.Context())
	} else {
		tariffs, err = h.store.ListActive(c.Request.Context())
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tariffs": tariffs})
}

func (h *FareHandler) GetTariff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *FareHandler) UpdateTariff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	var req tariffReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	cur := req.Currency
	if cur == "" {
		cur = t.PerKm.Currency
	}
	t.Name = req.Name
	t.Description = req.Description
	t.PerKm = types.Money{Amount: req.PerKmCents, Currency: cur}
	t.BaseFee = types.Money{Amount: req.BaseCents, Currency: cur}
	if req.Active != nil {
		t.Active = *req.Active
	}
	t.Conditions = req.Conditions

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *FareHandler) DeleteTariff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Deactivate(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type holidayReq struct {
	Date        string `json:"date" binding:"required"` // "2006-01-02"
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *FareHandler) CreateHoliday(c *gin.Context) {
	var req holidayReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	d, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	hol := pricing.Holiday{Date: d, Name: req.Name, Description: req.Description, Active: true}
	if err := h.store.CreateHoliday(c.Request.Context(), &hol); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, hol)
}

func (h *FareHandler) ListHolidays(c *gin.Context) {
	holidays, err := h.store.ListHolidays(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"holidays": holidays})
}

func (h *FareHandler) DeleteHoliday(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteHoliday(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
