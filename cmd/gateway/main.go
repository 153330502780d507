package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/api"
	"github.com/vibesoft/herald/internal/circuitbreaker"
	"github.com/vibesoft/herald/internal/config"
	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/dispatch"
	"github.com/vibesoft/herald/internal/engine"
	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/observ"
	"github.com/vibesoft/herald/internal/redis"
	"github.com/vibesoft/herald/internal/status"
	"github.com/vibesoft/herald/internal/template"
	"github.com/vibesoft/herald/internal/watzap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "gateway")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting herald gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewLogRepository(database, logger)
	templateStore := db.NewTemplateStore(database, logger)

	// Redis backs the rate limiter and, optionally, the idempotency
	// ledger. With the postgres ledger it is allowed to be absent.
	var redisClient *redis.Client
	redisClient, err = redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		if cfg.LedgerBackend == "redis" {
			return fmt.Errorf("redis required for ledger backend: %w", err)
		}
		logger.Warn("redis unavailable, rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var ledger engine.LedgerStore
	if cfg.LedgerBackend == "redis" {
		ledger = redis.NewLedger(redisClient, logger)
	} else {
		ledger = db.NewLedger(database, logger)
	}
	logger.Info("idempotency ledger initialized", zap.String("backend", cfg.LedgerBackend))

	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  100,
			Window: 1 * time.Minute,
		})
	}

	// Channel senders, each behind its own circuit breaker.
	emailSender, err := dispatch.NewSESEmailSender(ctx, dispatch.SESConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create SES email sender: %w", err)
	}

	senders := []dispatch.Sender{
		circuitbreaker.NewProtectedSender(emailSender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), logger), logger),
	}

	if cfg.WatzapAPIKey != "" {
		chatClient := watzap.New(watzap.Config{
			BaseURL:   cfg.WatzapBaseURL,
			APIKey:    cfg.WatzapAPIKey,
			NumberKey: cfg.WatzapNumberKey,
			Timeout:   time.Duration(cfg.WatzapTimeout) * time.Second,
		}, logger)
		chatSender := dispatch.NewWatzapSender(chatClient, logger)
		senders = append(senders, circuitbreaker.NewProtectedSender(chatSender,
			circuitbreaker.New(circuitbreaker.DefaultConfig("watzap"), logger), logger))
	} else {
		logger.Warn("watzap credentials missing, chat notifications disabled")
	}

	router := dispatch.NewRouter(logger, senders...)

	var publisher engine.StatusPublisher
	if cfg.SNSStatusTopicARN != "" {
		snsPublisher, err := status.NewPublisher(ctx, cfg.SNSStatusTopicARN, logger,
			awsconfig.WithRegion(cfg.SNSRegion))
		if err != nil {
			return fmt.Errorf("failed to create status publisher: %w", err)
		}
		publisher = snsPublisher
	} else {
		logger.Warn("no status topic configured, status events will be dropped")
		publisher = status.NewNopPublisher(logger)
	}

	resolver := template.NewResolver(templateStore, logger)
	renderer := template.NewRenderer()

	processor := engine.NewProcessor(repo, ledger, resolver, renderer, router, publisher, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	pool := engine.NewPool(processor, cfg.WorkerPoolSize, cfg.WorkerPoolSize*4, logger)
	pool.Start(workerCtx)
	logger.Info("worker pool started", zap.Int("workers", cfg.WorkerPoolSize))

	reaper := engine.NewReaper(repo, time.Minute, 10*time.Minute, logger)
	go reaper.Run(workerCtx)

	// HTTP surface
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, pool, repo)
	templateHandler := api.NewTemplateHandler(logger, templateStore)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.APIKeyMiddleware(cfg.APIKey, logger))
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.ClientKeyFunc))

		r.Post("/notifications/send", handler.SendNotification)
		r.Get("/notifications/{id}", handler.GetNotification)
		r.Get("/notifications/trace/{traceID}", handler.GetNotificationByTrace)

		r.Post("/templates", templateHandler.CreateTemplate)
		r.Get("/templates", templateHandler.ListTemplates)
		r.Get("/templates/{slug}/{language}/{channel}", templateHandler.GetTemplate)
		r.Put("/templates/{slug}/{language}/{channel}", templateHandler.UpdateTemplate)
		r.Delete("/templates/{slug}/{language}/{channel}", templateHandler.DeleteTemplate)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Let in-flight deliveries reach a terminal state.
		pool.Close()
		workerCancel()

		logger.Info("server stopped gracefully")
	}

	return nil
}
