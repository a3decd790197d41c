package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const defaultBodyLimit = 1 << 20 // 1 MB

// BodyLimit returns middleware that caps the request body size. The limit
// is a human-readable size such as "1M" or "512K"; a bare number is bytes.
// Oversized requests get a 413, either up front when Content-Length says so
// or as soon as the cap is crossed mid-read.
func BodyLimit(limit string) echo.MiddlewareFunc {
	maxBytes := parseSize(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > maxBytes {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
					"error": fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", maxBytes),
				})
			}

			req.Body = &cappedBody{inner: req.Body, remaining: maxBytes}
			return next(c)
		}
	}
}

// cappedBody enforces the limit while the handler reads, covering clients
// that omit or understate Content-Length.
type cappedBody struct {
	inner     io.ReadCloser
	remaining int64
	tripped   bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.tripped {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// Read one byte past the cap so overflow is detectable.
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.inner.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.tripped = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.inner.Close() }

var sizeSuffixes = []struct {
	suffix string
	factor int64
}{
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
}

// parseSize converts "10M"-style strings into bytes, defaulting to 1 MB on
// anything unparseable.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var factor int64 = 1
	for _, sz := range sizeSuffixes {
		if rest, ok := strings.CutSuffix(s, sz.suffix); ok {
			factor = sz.factor
			s = rest
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return defaultBodyLimit
	}
	return n * factor
}
