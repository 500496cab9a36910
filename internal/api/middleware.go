package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/api/handlers"
	"github.com/valuelens/screener/pkg/logger"
)

// authMiddleware reads the bearer token and resolves user id, tier and
// the premium override flag from its claims. Invalid or missing tokens
// degrade to anonymous free tier, never an error: gating happens per
// column, not per request.
func authMiddleware(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ent := access.Entitlement{Tier: "free"}

			if tokenString := bearerToken(r); tokenString != "" {
				token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return key, nil
				})
				if err == nil && token.Valid {
					if claims, ok := token.Claims.(jwt.MapClaims); ok {
						ent = entitlementFromClaims(claims)
					}
				} else {
					log.WithError(err).Debug("Rejected bearer token")
				}
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithEntitlement(r.Context(), ent)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func entitlementFromClaims(claims jwt.MapClaims) access.Entitlement {
	ent := access.Entitlement{Tier: "free"}

	if sub, ok := claims["sub"].(string); ok {
		ent.UserID = sub
	}
	if tier, ok := claims["tier"].(string); ok && tier != "" {
		ent.Tier = tier
	}
	if override, ok := claims["allowOverride"].(bool); ok {
		ent.AllowOverride = override
	}

	return ent
}
