package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	chatapp "stitchtalk/internal/app/chat"
	domainchat "stitchtalk/internal/domain/chat"
)

// ChatHTTP exposes the auxiliary chat endpoints.
type ChatHTTP interface {
	UnreadCount(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat service.
type ChatHandler struct {
	Service *chatapp.Service
	Logger  *slog.Logger
}

// UnreadCount returns how many unread messages a user has. Defaults to
// the caller; user_id may name any user, matching the permissive source
// behavior.
func (h ChatHandler) UnreadCount(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		userID = principal.ID
	}
	count, err := h.Service.Unread(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domainchat.ErrInvalidUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("unread count failed", "user_id", userID, "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

var _ ChatHTTP = (*ChatHandler)(nil)
