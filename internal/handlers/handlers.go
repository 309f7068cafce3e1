package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"biblio/internal/services"
)

// Services bundles what the HTTP layer dispatches to.
type Services struct {
	Books        services.BookService
	Clients      services.ClientService
	Reservations services.ReservationService
	Auth         services.AuthService
}

type LibraryHandler struct {
	svc    Services
	logger *zap.Logger
}

// RegisterRoutes mounts the API under /api. Every route except login
// requires a bearer token unless authDisabled is set.
func RegisterRoutes(r *gin.Engine, svc Services, authDisabled bool, logger *zap.Logger) {
	h := &LibraryHandler{svc: svc, logger: logger}

	api := r.Group("/api")
	api.POST("/auth/login", h.login)

	protected := api.Group("")
	if !authDisabled {
		protected.Use(RequireAuth(svc.Auth))
	}

	books := protected.Group("/books")
	books.POST("", h.createBook)
	books.GET("", h.listBooks)
	books.GET("/available", h.listAvailableBooks)
	books.GET("/:id", h.getBook)
	books.PUT("/:id", h.updateBook)
	books.DELETE("/:id", h.deleteBook)

	clients := protected.Group("/clients")
	clients.POST("", h.createClient)
	clients.GET("", h.listClients)
	clients.GET("/cpf/:cpf", h.getClientByCPF)
	clients.GET("/:id", h.getClient)
	clients.PUT("/:id", h.updateClient)
	clients.DELETE("/:id", h.deleteClient)

	reservations := protected.Group("/reservations")
	reservations.POST("", h.createReservation)
	reservations.GET("", h.listReservations)
	reservations.GET("/overdue", h.listOverdueReservations)
	reservations.GET("/report", h.cashReport)
	reservations.GET("/client/:id", h.listClientReservations)
	reservations.GET("/:id", h.getReservation)
	reservations.PUT("/:id", h.updateReservation)
	reservations.PUT("/:id/return", h.returnReservation)
	reservations.DELETE("/:id", h.deleteReservation)
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " id", "kind": "invalid_input"})
		return uuid.Nil, false
	}
	return id, true
}

// parseTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC
// midnight).
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_input"})
}

// respondError maps a service error to its HTTP status.
func (h *LibraryHandler) respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusBadRequest
	case "domain_rule":
		return http.StatusUnprocessableEntity
	case "unauthorized":
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
