package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiSecurityHeaders is the response header set for the whole API. CareGrid
// serves JSON to its own clients only, so the policy denies framing, script
// sources, and caching of responses that carry care records.
var apiSecurityHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders returns middleware that stamps apiSecurityHeaders on
// every response, including error responses.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, hdr := range apiSecurityHeaders {
				h.Set(hdr[0], hdr[1])
			}
			return next(c)
		}
	}
}
