package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/HSouheill/referral_backend/config"
	"github.com/HSouheill/referral_backend/controllers"
	"github.com/HSouheill/referral_backend/jobs"
	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/middleware"
	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/routes"
	"github.com/HSouheill/referral_backend/services"
	"github.com/HSouheill/referral_backend/websocket"
)

const memoryQueueCapacity = 10000

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	client, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB: %v", err)
	}
	store := repositories.NewStore(client, cfg.DBName)

	// Post-commit tasks survive restarts only when Redis is available.
	var queue services.TaskQueue
	redisClient := config.ConnectRedis(cfg)
	if redisClient != nil {
		queue = services.NewRedisQueue(redisClient, cfg.TaskQueueKey)
	} else {
		queue = services.NewMemoryQueue(memoryQueueCapacity)
	}

	// Notification channels; each one is optional.
	var push services.PushSender
	if app, err := config.InitFirebase(cfg); err != nil {
		logger.Error("Failed to initialize Firebase: %v", err)
	} else if app != nil {
		sender, err := services.NewFCMSender(ctx, app)
		if err != nil {
			logger.Error("Push notifications disabled: %v", err)
		} else {
			push = sender
		}
	}

	var mailer services.Mailer
	if m := services.NewGomailMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom); m != nil {
		mailer = m
	} else {
		logger.Warn("SMTP_HOST not set, email notifications disabled")
	}

	hub := websocket.NewHub()
	go hub.Run()

	var payoutClient services.PayoutClient
	if pc := services.NewHTTPPayoutClient(cfg.PayoutAPIURL, cfg.PayoutAPIKey, cfg.PayoutTimeout, cfg.IsDevelopment()); pc != nil {
		payoutClient = pc
	} else {
		logger.Warn("PAYOUT_API_URL not set, commissions will not be paid out")
	}

	// Services
	commissions := services.NewCommissionService(store, queue)
	programs := services.NewProgramService(store, queue, cfg.PublicBaseURL)
	notifier := services.NewNotifier(store, mailer, push, hub)

	pool := services.NewWorkerPool(queue, cfg.WorkerConcurrency)
	notifier.Register(pool)

	var payouts *services.PayoutService
	if payoutClient != nil {
		payouts = services.NewPayoutService(store, payoutClient, queue, cfg.PayoutCurrency, cfg.PayoutMaxAttempts)
		payouts.Register(pool)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool.Start(workerCtx)

	// Scheduled jobs
	scheduler, err := jobs.NewManager()
	if err != nil {
		logger.Fatal("Failed to create job scheduler: %v", err)
	}
	if err := scheduler.Register(jobs.NewCounterResetJob(store)); err != nil {
		logger.Fatal("%v", err)
	}
	if payouts != nil {
		if err := scheduler.Register(jobs.NewPayoutReconciliationJob(payouts, cfg.ReconcileInterval)); err != nil {
			logger.Fatal("%v", err)
		}
	}
	scheduler.Start()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewCustomValidator()

	rateLimiter := middleware.NewRateLimiter(cfg.WebhookRatePerSecond, cfg.WebhookRateBurst)
	rateLimiter.SetEndpointLimit("/api/tiers/preview", 5, 10)
	go rateLimiter.Cleanup(ctx)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.CORSWithOrigins(cfg.CORSAllowedOrigins))
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		ConnectOrigins: cfg.CORSAllowedOrigins,
	}))

	checks := map[string]controllers.Pinger{
		"database": controllers.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}),
	}
	if redisClient != nil {
		checks["redis"] = controllers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	routes.SetupRoutes(e, routes.Controllers{
		Webhook:  controllers.NewWebhookController(commissions),
		Tiers:    controllers.NewTiersController(),
		Creator:  controllers.NewCreatorController(programs),
		Referrer: controllers.NewReferrerController(programs, store, hub, websocket.NewUpgrader(cfg.CORSAllowedOrigins)),
		Health:   controllers.NewHealthController(checks),
	}, routes.Options{
		JWTSecret:   cfg.JWTSecret,
		RateLimiter: rateLimiter,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	scheduler.Stop()
	hub.Close()

	stopWorkers()
	pool.Wait()

	closeRedis(redisClient)
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("MongoDB disconnect: %v", err)
	}
}

func closeRedis(c *redis.Client) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Error("Redis close: %v", err)
	}
}
