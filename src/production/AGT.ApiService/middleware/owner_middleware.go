package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	identity "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/identity"
)

type contextKey string

const (
	// OwnerIDContextKey carries the resolved owner through the request.
	OwnerIDContextKey contextKey = "owner_id"
)

// OwnerMiddleware resolves the request's owner from the Authorization
// header. It never rejects: unauthenticated requests run as the configured
// default owner, which is what field devices without credentials rely on.
func OwnerMiddleware(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := resolver.ResolveOwner(c.GetHeader("Authorization"))
		c.Set(string(OwnerIDContextKey), ownerID)
		c.Next()
	}
}

// GetOwnerFromGinContext retrieves the resolved owner id from a Gin context.
func GetOwnerFromGinContext(c *gin.Context) (string, error) {
	ownerVal, exists := c.Get(string(OwnerIDContextKey))
	if !exists {
		return "", errors.New("owner not found in context")
	}

	ownerID, ok := ownerVal.(string)
	if !ok || ownerID == "" {
		return "", errors.New("invalid owner id in context")
	}
	return ownerID, nil
}
