// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/maps"
	"cabdesk/internal/modules/client"
	"cabdesk/internal/modules/driver"
	"cabdesk/internal/modules/matching"
	"cabdesk/internal/modules/pricing"
	"cabdesk/internal/modules/trip"
	"cabdesk/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps sentinel errors from every module onto HTTP codes.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest), errors.Is(err, driver.ErrInvalidCoords),
		errors.Is(err, driver.ErrUnknownState):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound), errors.Is(err, driver.ErrNotFound),
		errors.Is(err, client.ErrNotFound), errors.Is(err, pricing.ErrNotFound),
		errors.Is(err, pricing.ErrNoTariff), errors.Is(err, maps.ErrAddressNotFound),
		errors.Is(err, trip.ErrNoDriverAvailable), errors.Is(err, matching.ErrNoDriverAvailable):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrAlreadyAssigned), errors.Is(err, driver.ErrNotAvailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the numeric :id (or other named) path parameter.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return types.ID(n), true
}
