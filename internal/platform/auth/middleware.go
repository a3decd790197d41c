package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const ActorKey contextKey = "actor"

// Actor identifies the authenticated user for the duration of a request.
type Actor struct {
	UserID   uuid.UUID
	AgencyID string
	Roles    []string
}

// HasRole reports whether the actor carries the role. Admin implies every
// other role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == "admin" {
			return true
		}
	}
	return false
}

type Claims struct {
	jwt.RegisteredClaims
	AgencyID string   `json:"agency_id"`
	Roles    []string `json:"roles"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// JWTMiddleware authenticates requests with an HMAC-signed bearer token and
// stashes the resulting Actor on the request context. The agency claim is
// also set on the echo context for the tenant middleware.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
			}

			c.Set("jwt_tenant_id", claims.AgencyID)

			actor := Actor{UserID: userID, AgencyID: claims.AgencyID, Roles: claims.Roles}
			ctx := context.WithValue(c.Request().Context(), ActorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that allows
// unauthenticated requests with default values.
func DevAuthMiddleware() echo.MiddlewareFunc {
	devUserID := uuid.New()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				c.Set("jwt_tenant_id", "default")
				actor := Actor{UserID: devUserID, AgencyID: "default", Roles: []string{"admin"}}
				ctx := context.WithValue(c.Request().Context(), ActorKey, actor)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// ActorFromContext retrieves the authenticated actor. The zero Actor is
// returned on unauthenticated contexts.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(ActorKey).(Actor)
	return actor
}

// WithActor returns a context carrying the given actor. Used by tests and
// internal callers that bypass the HTTP middleware.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
