// middleware/rate_limiter.go
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/HSouheill/referral_backend/metrics"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter keeps one token bucket per client IP. Limits can be tuned per
// route path; everything else gets the default.
type RateLimiter struct {
	mu             sync.Mutex
	ips            map[string]*visitor
	defaultLimit   endpointLimit
	endpointLimits map[string]endpointLimit
	idleTTL        time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		ips:            make(map[string]*visitor),
		defaultLimit:   endpointLimit{limit: rate.Limit(perSecond), burst: burst},
		endpointLimits: make(map[string]endpointLimit),
		idleTTL:        10 * time.Minute,
	}
}

// SetEndpointLimit overrides the limit for a route path such as
// "/api/tiers/preview".
func (r *RateLimiter) SetEndpointLimit(path string, perSecond float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: rate.Limit(perSecond), burst: burst}
}

// Cleanup drops buckets of clients idle for longer than the TTL until ctx is
// done.
func (r *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for key, v := range r.ips {
				if now.Sub(v.lastSeen) > r.idleTTL {
					delete(r.ips, key)
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if !r.allow(c.RealIP(), path) {
				metrics.RateLimited.WithLabelValues(path).Inc()
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"message": "Too many requests",
				})
			}
			return next(c)
		}
	}
}

func (r *RateLimiter) allow(ip, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim := r.defaultLimit
	if l, ok := r.endpointLimits[path]; ok {
		lim = l
	}
	key := ip + " " + path
	v, ok := r.ips[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(lim.limit, lim.burst)}
		r.ips[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}
