package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"stitchtalk/internal/domain/identity"
)

const principalContextKey = "stitchtalk.principal"

// TokenVerifier validates a bearer credential and yields the user it
// belongs to.
type TokenVerifier interface {
	Verify(token string) (identity.Ref, error)
}

type AuthMiddleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Handle resolves the bearer token into a principal when present.
// Unauthenticated requests pass through; handlers that need identity
// use requirePrincipal.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Verifier == nil {
		c.Next()
		return
	}
	ref, err := m.Verifier.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(principalContextKey, ref)
	c.Next()
}

func currentPrincipal(c *gin.Context) (identity.Ref, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return identity.Ref{}, false
	}
	ref, ok := val.(identity.Ref)
	return ref, ok
}

func requirePrincipal(c *gin.Context) (identity.Ref, bool) {
	ref, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return identity.Ref{}, false
	}
	return ref, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
