// middleware/security_headers.go
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

type SecurityConfig struct {
	// ConnectOrigins are allowed in connect-src, for the dashboard websocket.
	ConnectOrigins []string
}

// SecurityHeadersWithConfig sets the response hardening headers. The API
// serves JSON and PNG only, so the content security policy is strict.
func SecurityHeadersWithConfig(config SecurityConfig) echo.MiddlewareFunc {
	csp := buildCSP(config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Del("Server")
			h.Del("X-Powered-By")
			return next(c)
		}
	}
}

func buildCSP(config SecurityConfig) string {
	csp := []string{
		"default-src 'none'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
	}
	if len(config.ConnectOrigins) > 0 {
		csp = append(csp, "connect-src 'self' "+strings.Join(config.ConnectOrigins, " "))
	}
	return strings.Join(csp, "; ")
}

// CORSWithOrigins allows the dashboard origins to call the API with
// credentials.
func CORSWithOrigins(origins []string) echo.MiddlewareFunc {
	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "HEAD", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:           86400,
	})
}
