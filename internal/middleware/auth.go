// Package middleware holds the HTTP middleware shared across handlers.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorContextKey = "actor"

// Claims are the token claims the console issues at login
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWT authenticates requests with a Bearer token and stores the actor's
// email on the request context for audit fields.
func JWT(secret string) echo.MiddlewareFunc {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor := claims.Email
			if actor == "" {
				actor = claims.Subject
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

// ActorFromContext returns the authenticated actor's identity, or "unknown"
// outside an authenticated request.
func ActorFromContext(c echo.Context) string {
	if actor, ok := c.Get(actorContextKey).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}
