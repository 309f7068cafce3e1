package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"biblio/internal/services"
)

// ClaimsKey is the gin context key holding the verified *services.Claims.
const ClaimsKey = "claims"

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (h *LibraryHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.svc.Auth.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// token.
func RequireAuth(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "unauthorized"})
			return
		}
		claims, err := auth.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": "unauthorized"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
