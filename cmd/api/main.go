package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/eraycetinay/mailblast/internal/config"
	"github.com/eraycetinay/mailblast/internal/handler"
	"github.com/eraycetinay/mailblast/internal/infra/postgresql"
	"github.com/eraycetinay/mailblast/internal/infra/postgresql/migrations"
	infraredis "github.com/eraycetinay/mailblast/internal/infra/redis"
	"github.com/eraycetinay/mailblast/internal/mailer"
	"github.com/eraycetinay/mailblast/internal/observability"
	"github.com/eraycetinay/mailblast/internal/queue"
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/eraycetinay/mailblast/internal/service"
	"github.com/eraycetinay/mailblast/internal/transport"
	"github.com/eraycetinay/mailblast/internal/ws"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("mailblast exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	guard, err := queue.NewRedisEnqueueGuard(rdb)
	if err != nil {
		return fmt.Errorf("enqueue guard initialization failed: %w", err)
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	mailTransport, err := buildMailTransport(cfg)
	if err != nil {
		return fmt.Errorf("mail transport initialization failed: %w", err)
	}

	batchRepo := repository.NewGormBatchRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)

	hub := ws.NewHub(logger)
	go hub.Run()

	metrics := observability.NewMetrics()

	batchService, err := service.NewBatchService(batchRepo, deliveryRepo, templateRepo, publisher, guard, logger)
	if err != nil {
		return err
	}
	batchService.SetMetrics(metrics)

	templateService, err := service.NewTemplateService(templateRepo, logger)
	if err != nil {
		return err
	}

	worker, err := service.NewWorkerService(
		deliveryRepo,
		batchRepo,
		templateRepo,
		consumer,
		mailTransport,
		cfg.MailTransport,
		limiter,
		hub,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	retryScanner, err := service.NewRetryScanner(deliveryRepo, publisher, 0, 0, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      "mailblast",
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    16 << 20,
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterBatchRoutes(app, batchService); err != nil {
		return err
	}
	if err := handler.RegisterTemplateRoutes(app, templateService); err != nil {
		return err
	}

	// Metrics and the websocket progress feed run on a plain net/http server
	// so Prometheus and gorilla handlers plug in directly.
	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", metrics.Handler())
	opsMux.HandleFunc("/v1/progress/ws", hub.HandleWebSocket)
	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OpsPort),
		Handler: opsMux,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		logger.Info("ops listening", zap.Int("port", cfg.OpsPort))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return retryScanner.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildMailTransport(cfg *config.Config) (mailer.Transport, error) {
	switch cfg.MailTransport {
	case "smtp":
		return mailer.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	case "api":
		return mailer.NewAPITransport(cfg.MailAPIEndpoint, cfg.MailAPIKey)
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.MailTransport)
	}
}
