package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
)

// Resolver maps an Authorization header to an owner id. Identity is
// advisory for this service: a missing, malformed or expired token resolves
// to the configured default owner instead of failing the request, so
// ingestion from unauthenticated field devices always lands somewhere.
type Resolver struct {
	cfg config.IdentityConfig
}

func NewResolver(cfg config.IdentityConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// ResolveOwner extracts the owner id from a Bearer JWT's sub claim. Any
// failure falls back to the default owner.
func (r *Resolver) ResolveOwner(authorizationHeader string) string {
	if !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return r.cfg.DefaultOwnerID
	}
	token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, "Bearer "))
	if token == "" {
		return r.cfg.DefaultOwnerID
	}

	subject, err := r.parseSubject(token)
	if err != nil || subject == "" {
		return r.cfg.DefaultOwnerID
	}
	return subject
}

func (r *Resolver) parseSubject(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(r.cfg.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
