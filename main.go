package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eursukkul/mentorship-slots/config"
	"github.com/Eursukkul/mentorship-slots/internal/consumer"
	"github.com/Eursukkul/mentorship-slots/internal/events"
	"github.com/Eursukkul/mentorship-slots/internal/handler"
	"github.com/Eursukkul/mentorship-slots/internal/middleware"
	"github.com/Eursukkul/mentorship-slots/internal/ratelimit"
	"github.com/Eursukkul/mentorship-slots/internal/repository"
	"github.com/Eursukkul/mentorship-slots/internal/service"
	"github.com/Eursukkul/mentorship-slots/internal/worker"
	"github.com/Eursukkul/mentorship-slots/pkg/database"
	"github.com/Eursukkul/mentorship-slots/pkg/logger"
	"github.com/Eursukkul/mentorship-slots/pkg/rabbitmq"
	"github.com/Eursukkul/mentorship-slots/pkg/redisclient"
	"github.com/Eursukkul/mentorship-slots/pkg/telemetry"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	serviceName     = "slot-booking-service"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("failed to set up telemetry", zap.Error(err))
	}
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		log.Fatal("failed to create metrics", zap.Error(err))
	}

	db, err := database.NewPostgresDB(cfg.DSN(), database.DefaultPool)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("database ready")

	sinks := events.MultiSink{}
	var counters ratelimit.CounterStore = ratelimit.NewMemoryCounterStore()

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.New(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()

		sinks = append(sinks, events.NewRedisSink(rdb))
		counters = ratelimit.NewRedisCounterStore(rdb)
		log.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitURL, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		sinks = append(sinks, events.NewBrokerSink(publisher))
	}

	// Repositories
	txr := repository.NewTransactor(db, cfg.LockTimeout)
	slotRepo := repository.NewSlotRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	// Services
	opts := service.Options{
		Sink:             sinks,
		Logger:           log,
		Metrics:          metrics,
		OperationTimeout: cfg.OperationTimeout,
		AutoConfirm:      cfg.BookingAutoConfirm,
	}
	availabilitySvc := service.NewAvailabilityManager(txr, slotRepo, bookingRepo, opts)
	bookingSvc := service.NewBookingCoordinator(txr, slotRepo, bookingRepo, opts)

	if cfg.RabbitURL != "" {
		mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.PaymentQueueName, rabbitmq.PaymentRoutingKey, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConsumer.Close()

		msgs, err := mqConsumer.Consume()
		if err != nil {
			log.Fatal("failed to start consuming", zap.Error(err))
		}
		consumer.NewPaymentConsumer(bookingSvc, log).Start(ctx, msgs)
	}

	if cfg.CompletionSweepInterval > 0 {
		sweeper := worker.NewCompletionSweeper(bookingSvc, cfg.CompletionSweepInterval, log)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.NewErrorHandler(log)
	e.Use(echoMw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		version, err := database.Version(c.Request().Context(), db)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":         "ok",
			"service":        serviceName,
			"schema_version": version,
		})
	})

	api := e.Group("/api/v1", middleware.Authenticate([]byte(cfg.JWTSecret)))
	limit := middleware.RateLimit(counters, "booking", cfg.BookingRateLimit, cfg.BookingRateWindow, log)

	handler.NewAvailabilityHandler(availabilitySvc).RegisterRoutes(api)
	handler.NewBookingHandler(bookingSvc).RegisterRoutes(api, limit)

	go func() {
		log.Info("slot booking service starting", zap.String("port", cfg.ServerPort))
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
}
