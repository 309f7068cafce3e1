package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"biblio/internal/models"
	"biblio/internal/services"
)

type createReservationRequest struct {
	ClientID string `json:"client_id" binding:"required,uuid"`
	BookID   string `json:"book_id" binding:"required,uuid"`
	DueAt    string `json:"due_at" binding:"required"`
}

type updateReservationRequest struct {
	DueAt      *string `json:"due_at"`
	Status     *string `json:"status"`
	ReturnedAt *string `json:"returned_at"`
}

type listReservationsQuery struct {
	pageQuery
	Status string `form:"status"`
}

type reportQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

func (h *LibraryHandler) createReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	due, err := parseTime(req.DueAt)
	if err != nil {
		bindError(c, fmt.Errorf("invalid due_at: %w", err))
		return
	}

	res, err := h.svc.Reservations.Create(c.Request.Context(), services.CreateReservationInput{
		ClientID: uuid.MustParse(req.ClientID),
		BookID:   uuid.MustParse(req.BookID),
		DueAt:    due,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LibraryHandler) listReservations(c *gin.Context) {
	var q listReservationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.svc.Reservations.FindAll(c.Request.Context(), q.Page, q.Limit, q.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *LibraryHandler) listOverdueReservations(c *gin.Context) {
	items, err := h.svc.Reservations.FindOverdue(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *LibraryHandler) listClientReservations(c *gin.Context) {
	id, ok := parseID(c, "client")
	if !ok {
		return
	}
	items, err := h.svc.Reservations.FindByClient(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *LibraryHandler) getReservation(c *gin.Context) {
	id, ok := parseID(c, "reservation")
	if !ok {
		return
	}
	res, err := h.svc.Reservations.FindOne(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) updateReservation(c *gin.Context) {
	id, ok := parseID(c, "reservation")
	if !ok {
		return
	}
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var in services.UpdateReservationInput
	if req.DueAt != nil {
		t, err := parseTime(*req.DueAt)
		if err != nil {
			bindError(c, fmt.Errorf("invalid due_at: %w", err))
			return
		}
		in.DueAt = &t
	}
	if req.ReturnedAt != nil {
		t, err := parseTime(*req.ReturnedAt)
		if err != nil {
			bindError(c, fmt.Errorf("invalid returned_at: %w", err))
			return
		}
		in.ReturnedAt = &t
	}
	if req.Status != nil {
		st := models.ReservationStatus(*req.Status)
		in.Status = &st
	}

	res, err := h.svc.Reservations.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) returnReservation(c *gin.Context) {
	id, ok := parseID(c, "reservation")
	if !ok {
		return
	}
	res, err := h.svc.Reservations.Return(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) deleteReservation(c *gin.Context) {
	id, ok := parseID(c, "reservation")
	if !ok {
		return
	}
	if err := h.svc.Reservations.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// cashReport streams the fine ledger as a CSV attachment. from and to are
// optional YYYY-MM-DD dates.
func (h *LibraryHandler) cashReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	from, err := optionalDate(q.From)
	if err != nil {
		bindError(c, fmt.Errorf("invalid from: %w", err))
		return
	}
	to, err := optionalDate(q.To)
	if err != nil {
		bindError(c, fmt.Errorf("invalid to: %w", err))
		return
	}

	report, err := h.svc.Reservations.CashReport(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("cash report: generated", zap.Int("rows", len(report.Rows)), zap.String("total", report.Total.StringFixed(2)))

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="cash-report-%s.csv"`, time.Now().UTC().Format(time.DateOnly)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
