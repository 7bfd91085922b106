package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	checks map[string]Pinger
}

// NewHealthController probes each named dependency on every request.
func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks}
}

func (hc *HealthController) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{"status": "healthy"}
	for name, check := range hc.checks {
		if err := check.Ping(ctx); err != nil {
			out[name] = "unavailable"
			out["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "connected"
	}
	return c.JSON(status, out)
}
