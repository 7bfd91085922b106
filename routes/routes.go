package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/middleware"
)

// Controllers groups the handlers the router mounts.
type Controllers struct {
	Webhook  *controllers.WebhookController
	Tiers    *controllers.TiersController
	Creator  *controllers.CreatorController
	Referrer *controllers.ReferrerController
	Health   *controllers.HealthController
}

// Options are the router's middleware settings.
type Options struct {
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, ctrl Controllers, opts Options) {
	e.Match([]string{"GET", "HEAD"}, "/health", ctrl.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	RegisterWebhookRoutes(e, ctrl.Webhook, opts.RateLimiter)
	RegisterTierRoutes(e, ctrl.Tiers, opts.RateLimiter)

	auth := middleware.JWTMiddleware(opts.JWTSecret)
	RegisterCreatorRoutes(e, ctrl.Creator, auth)
	RegisterReferrerRoutes(e, ctrl.Referrer, auth)
}

// RegisterWebhookRoutes mounts the payment platform webhook. It is not behind
// JWT; the platform signs its requests instead.
func RegisterWebhookRoutes(e *echo.Echo, wc *controllers.WebhookController, rl *middleware.RateLimiter) {
	e.POST("/api/webhooks/payments", wc.HandlePaymentWebhook, rl.RateLimit())
}

func RegisterTierRoutes(e *echo.Echo, tc *controllers.TiersController, rl *middleware.RateLimiter) {
	tiers := e.Group("/api/tiers")
	tiers.GET("", tc.ListTiers)
	tiers.POST("/preview", tc.PreviewSplit, rl.RateLimit())
}

func RegisterCreatorRoutes(e *echo.Echo, cc *controllers.CreatorController, auth echo.MiddlewareFunc) {
	creators := e.Group("/api/creators", auth)

	// Any authenticated member may join a program.
	creators.POST("/:id/referrers", cc.JoinProgram)

	ownerOnly := middleware.RequireUserType(middleware.UserTypeCreator)
	creators.POST("", cc.OnboardCreator, ownerOnly)
	creators.PUT("/referrers/:id/custom-rate", cc.SetCustomRate, ownerOnly)
	creators.DELETE("/referrers/:id/custom-rate", cc.ClearCustomRate, ownerOnly)
}

func RegisterReferrerRoutes(e *echo.Echo, rc *controllers.ReferrerController, auth echo.MiddlewareFunc) {
	me := e.Group("/api/referrers/me", auth)
	me.GET("/stats", rc.GetStats)
	me.GET("/qrcode", rc.GetQRCode)
	me.PUT("/fcm-token", rc.UpdateFCMToken)
	me.GET("/notifications", rc.ListNotifications)
	me.PUT("/notifications/:id/read", rc.MarkNotificationRead)

	e.GET("/api/ws", rc.Connect, auth)
}
