package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger returns middleware that writes one structured log line per request.
// The request id and agency schema are attached when upstream middleware has
// resolved them.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			if rid, ok := c.Get("request_id").(string); ok && rid != "" {
				evt = evt.Str("request_id", rid)
			}
			if tenant, ok := c.Get("jwt_tenant_id").(string); ok && tenant != "" {
				evt = evt.Str("tenant", tenant)
			}

			evt.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
