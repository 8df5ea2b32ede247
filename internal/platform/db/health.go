package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by the datastore backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the active datastore answers within five
// seconds.
func HealthHandler(store Pinger, backend, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := store.Ping(ctx)
		latency := time.Since(start).String()

		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"backend": backend,
				"error":   err.Error(),
				"latency": latency,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"backend": backend,
			"version": version,
			"latency": latency,
		})
	}
}
