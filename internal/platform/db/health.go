package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is a snapshot of connection pool usage reported by /health/db.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

type healthReport struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

func snapshotPool(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthHandler serves the database health endpoint. Health is determined
// by an actual ping so a pool full of dead connections reports unhealthy.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := healthReport{Status: "healthy", Pool: snapshotPool(pool)}
		if err := pool.Ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		return c.JSON(http.StatusOK, report)
	}
}
