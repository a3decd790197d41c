package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout returns middleware that puts a deadline on each request's
// context and answers 504 when the handler does not finish in time. The
// handler runs on its own goroutine; a panic there is forwarded back to the
// request goroutine so the recovery middleware still sees it.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			panicked := make(chan interface{}, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						panicked <- r
					}
				}()
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case r := <-panicked:
				panic(r)
			case <-ctx.Done():
				if ctx.Err() != context.DeadlineExceeded {
					// Client disconnects and other cancellations.
					return ctx.Err()
				}
				if c.Response().Committed {
					return nil
				}
				return c.JSON(http.StatusGatewayTimeout, map[string]string{
					"error": "request processing exceeded the allowed time limit",
				})
			}
		}
	}
}
