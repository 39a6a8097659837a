package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stitchtalk/internal/app/dto"
	"stitchtalk/internal/app/presence"
	"stitchtalk/internal/domain/identity"
)

// DirectoryHTTP exposes the merged user listing.
type DirectoryHTTP interface {
	Users(c *gin.Context)
}

// DirectoryHandler merges creator and customer profiles with live
// presence flags.
type DirectoryHandler struct {
	Directory identity.Directory
	Presence  *presence.Registry
	Logger    *slog.Logger
}

func (h DirectoryHandler) Users(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	profiles, err := h.Directory.List(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("directory listing failed", "error", err)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	online := h.Presence.OnlineIDs()
	entries := make([]dto.DirectoryEntry, 0, len(profiles))
	for _, profile := range profiles {
		entry := dto.DirectoryEntry{
			ID:     profile.ID,
			Kind:   string(profile.Kind),
			Name:   profile.Name,
			Role:   profile.Role,
			Avatar: profile.AvatarURL,
		}
		if _, ok := online[profile.ID]; ok {
			entry.Online = true
		}
		if !profile.LastSeenAt.IsZero() {
			lastSeen := profile.LastSeenAt
			entry.LastSeen = &lastSeen
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, entries)
}

var _ DirectoryHTTP = (*DirectoryHandler)(nil)
