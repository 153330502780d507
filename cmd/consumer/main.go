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
	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/circuitbreaker"
	"github.com/vibesoft/herald/internal/config"
	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/dispatch"
	"github.com/vibesoft/herald/internal/engine"
	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/observ"
	"github.com/vibesoft/herald/internal/queue"
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

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "consumer")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting herald consumer",
		zap.String("env", cfg.Env),
		zap.String("queue_url", cfg.SQSQueueURL),
	)

	if cfg.SQSQueueURL == "" || cfg.SQSDLQURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL and SQS_DLQ_URL are required")
	}

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

	var ledger engine.LedgerStore
	if cfg.LedgerBackend == "redis" {
		redisClient, err := redis.New(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return fmt.Errorf("redis required for ledger backend: %w", err)
		}
		defer redisClient.Close()
		ledger = redis.NewLedger(redisClient, logger)
	} else {
		ledger = db.NewLedger(database, logger)
	}
	logger.Info("idempotency ledger initialized", zap.String("backend", cfg.LedgerBackend))

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
	var recovererPublisher queue.EventPublisher
	if cfg.SNSStatusTopicARN != "" {
		snsPublisher, err := status.NewPublisher(ctx, cfg.SNSStatusTopicARN, logger,
			awsconfig.WithRegion(cfg.SNSRegion))
		if err != nil {
			return fmt.Errorf("failed to create status publisher: %w", err)
		}
		publisher = snsPublisher
		recovererPublisher = snsPublisher
	} else {
		logger.Warn("no status topic configured, status events will be dropped")
		nop := status.NewNopPublisher(logger)
		publisher = nop
		recovererPublisher = nop
	}

	resolver := template.NewResolver(templateStore, logger)
	renderer := template.NewRenderer()

	processor := engine.NewProcessor(repo, ledger, resolver, renderer, router, publisher, logger)

	sqsClient, err := queue.NewClient(ctx, awsconfig.WithRegion(cfg.SQSRegion))
	if err != nil {
		return fmt.Errorf("failed to create SQS client: %w", err)
	}

	recoverer := queue.NewRecoverer(sqsClient, cfg.SQSDLQURL, cfg.SQSQueueName, recovererPublisher, logger)

	consumer := queue.NewConsumer(queue.ConsumerConfig{
		Client:      sqsClient,
		QueueURL:    cfg.SQSQueueURL,
		Processor:   processor,
		Ledger:      ledger,
		Resolver:    resolver,
		Retry:       queue.DefaultRetryPolicy(logger),
		Recoverer:   recoverer,
		Concurrency: cfg.ConsumerConcurrency,
		Logger:      logger,
	})

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	done := make(chan struct{})
	go func() {
		consumer.Run(consumerCtx)
		close(done)
	}()

	reaper := engine.NewReaper(repo, time.Minute, 10*time.Minute, logger)
	go reaper.Run(consumerCtx)

	// Health and metrics sidecar endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	consumerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	select {
	case <-done:
		logger.Info("consumer stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("consumer shutdown timed out")
	}

	return nil
}
