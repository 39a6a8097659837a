package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stitchtalk/internal/domain/identity"
)

// AuthHTTP exposes the identity endpoint.
type AuthHTTP interface {
	Me(c *gin.Context)
}

// AuthHandler answers who the bearer credential belongs to.
type AuthHandler struct {
	Directory identity.Directory
	Logger    *slog.Logger
}

func (h AuthHandler) Me(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	profile, err := h.Directory.Resolve(c.Request.Context(), principal)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Valid token for a user the directory no longer knows.
			c.JSON(http.StatusOK, gin.H{"id": principal.ID, "kind": principal.Kind})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("profile resolution failed", "user_id", principal.ID, "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     profile.ID,
		"kind":   profile.Kind,
		"name":   profile.Name,
		"role":   profile.Role,
		"avatar": profile.AvatarURL,
	})
}

var _ AuthHTTP = (*AuthHandler)(nil)
