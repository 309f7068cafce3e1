package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biblio/internal/models"
	"biblio/internal/services"
)

type createClientRequest struct {
	Name    string         `json:"name" binding:"required"`
	CPF     string         `json:"cpf" binding:"required"`
	Email   string         `json:"email" binding:"required"`
	Phone   string         `json:"phone" binding:"required"`
	Address models.Address `json:"address"`
}

type updateClientRequest struct {
	Name    *string         `json:"name"`
	CPF     *string         `json:"cpf"`
	Email   *string         `json:"email"`
	Phone   *string         `json:"phone"`
	Address *models.Address `json:"address"`
}

func (h *LibraryHandler) createClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	client, err := h.svc.Clients.Create(c.Request.Context(), services.CreateClientInput{
		Name:    req.Name,
		CPF:     req.CPF,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *LibraryHandler) listClients(c *gin.Context) {
	clients, err := h.svc.Clients.FindAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *LibraryHandler) getClient(c *gin.Context) {
	id, ok := parseID(c, "client")
	if !ok {
		return
	}
	client, err := h.svc.Clients.FindOne(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *LibraryHandler) getClientByCPF(c *gin.Context) {
	client, err := h.svc.Clients.FindByCPF(c.Request.Context(), c.Param("cpf"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *LibraryHandler) updateClient(c *gin.Context) {
	id, ok := parseID(c, "client")
	if !ok {
		return
	}
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	client, err := h.svc.Clients.Update(c.Request.Context(), id, services.UpdateClientInput{
		Name:    req.Name,
		CPF:     req.CPF,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *LibraryHandler) deleteClient(c *gin.Context) {
	id, ok := parseID(c, "client")
	if !ok {
		return
	}
	if err := h.svc.Clients.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
