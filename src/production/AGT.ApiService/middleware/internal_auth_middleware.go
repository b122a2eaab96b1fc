package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// InternalSecretHeader guards the service-to-service endpoints the MQTT
// ingestor forwards into.
const InternalSecretHeader = "X-Internal-Secret"

// InternalAuthMiddleware validates the shared secret on internal routes.
func InternalAuthMiddleware(expectedSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedSecret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal API secret not configured",
			})
			c.Abort()
			return
		}

		provided := c.GetHeader(InternalSecretHeader)
		if provided == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + InternalSecretHeader + " header",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid service secret",
			})
			c.Abort()
			return
		}

		c.Set("service_auth", true)
		c.Set("service_name", "mqtt-ingestor")

		c.Next()
	}
}
