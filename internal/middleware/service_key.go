package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"finpanel/internal/actor"
)

// ServiceKeyMiddleware creates a Gin middleware that validates the X-API-Key
// header against the configured key. Requests that pass run as the system
// actor, so machine-triggered runs are audited apart from users.
func ServiceKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, http.StatusServiceUnavailable, "SERVICE_KEY_NOT_CONFIGURED", "Service endpoints are not configured")
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or missing API key")
			return
		}
		c.Set(ActorIDKey, actor.System)
		c.Request = c.Request.WithContext(actor.WithID(c.Request.Context(), actor.System))
		c.Next()
	}
}
