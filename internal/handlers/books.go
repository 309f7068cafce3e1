package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biblio/internal/services"
)

type createBookRequest struct {
	Title     string  `json:"title" binding:"required,max=200"`
	Author    string  `json:"author" binding:"required"`
	ISBN      *string `json:"isbn"`
	Publisher *string `json:"publisher"`
	Year      *int    `json:"year"`
	Category  *string `json:"category"`
}

type updateBookRequest struct {
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	ISBN      *string `json:"isbn"`
	Publisher *string `json:"publisher"`
	Year      *int    `json:"year"`
	Category  *string `json:"category"`
}

type listBooksQuery struct {
	pageQuery
	Q string `form:"q"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	book, err := h.svc.Books.Create(c.Request.Context(), services.CreateBookInput{
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		Publisher: req.Publisher,
		Year:      req.Year,
		Category:  req.Category,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	var q listBooksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.svc.Books.FindAll(c.Request.Context(), q.Q, q.Page, q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *LibraryHandler) listAvailableBooks(c *gin.Context) {
	books, err := h.svc.Books.FindAvailable(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	book, err := h.svc.Books.FindOne(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	book, err := h.svc.Books.Update(c.Request.Context(), id, services.UpdateBookInput{
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		Publisher: req.Publisher,
		Year:      req.Year,
		Category:  req.Category,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := parseID(c, "book")
	if !ok {
		return
	}
	if err := h.svc.Books.Remove(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
