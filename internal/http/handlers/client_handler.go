// README: Client handlers, minimal records for dispatch.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabdesk/internal/modules/client"
)

type ClientHandler struct {
	clients *client.Store
}

func NewClientHandler(store *client.Store) *ClientHandler {
	return &ClientHandler{clients: store}
}

type createClientReq struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req createClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	cl := client.Client{Name: req.Name, Phone: req.Phone, Email: req.Email, Active: true}
	if err := h.clients.Create(c.Request.Context(), &cl); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cl)
}

func (h *ClientHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cl, err := h.clients.GetByID(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cl)
}

func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"clients": clients})
}
