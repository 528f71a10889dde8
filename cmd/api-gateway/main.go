package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/busca-ativa-api/api/swagger"
	"github.com/noah-isme/busca-ativa-api/internal/handler"
	"github.com/noah-isme/busca-ativa-api/internal/middleware"
	"github.com/noah-isme/busca-ativa-api/internal/process"
	"github.com/noah-isme/busca-ativa-api/internal/repository"
	"github.com/noah-isme/busca-ativa-api/internal/service"
	"github.com/noah-isme/busca-ativa-api/pkg/broker"
	"github.com/noah-isme/busca-ativa-api/pkg/cache"
	"github.com/noah-isme/busca-ativa-api/pkg/config"
	"github.com/noah-isme/busca-ativa-api/pkg/database"
	"github.com/noah-isme/busca-ativa-api/pkg/export"
	"github.com/noah-isme/busca-ativa-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/busca-ativa-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/busca-ativa-api/pkg/middleware/requestid"
)

// @title Busca Ativa API
// @version 1.0.0
// @description Absence follow-up and disciplinary occurrence tracking
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cache and cross-node events disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := broker.NewNATS(cfg.NATS, logr)
	if err != nil {
		logr.Warn("nats unavailable", zap.Error(err))
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Cache.Namespace, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.StudentTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	eventRedis, eventNATS := redisClient, natsConn
	if !cfg.Events.Enabled {
		eventRedis, eventNATS = nil, nil
	}
	events := service.NewEventService(eventRedis, eventNATS, service.EventConfig{
		ChannelBase: cfg.Events.ChannelBase,
		Workers:     cfg.Events.Workers,
		Retries:     cfg.Events.Retries,
		RetryDelay:  cfg.Events.RetryDelay,
	}, metrics, logr)
	events.Start(ctx)
	defer events.Stop()

	studentRepo := repository.NewStudentRepository(db)
	absenceRepo := repository.NewAbsenceActionRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)

	students := service.NewStudentService(studentRepo, cacheSvc, cfg.Cache.StudentTTL, logr)
	absences := service.NewAbsenceService(absenceRepo, students, events, process.NewTracker(nil), metrics, validate, logr)
	occurrences := service.NewOccurrenceService(occurrenceRepo, students, events, validate, logr)
	reports := service.NewExportService(absenceRepo, students, logr, csvExporter(cfg.Exports), nil)

	readiness := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"cache":    cacheRepo.Ping,
	}
	if natsConn != nil {
		readiness["nats"] = func(context.Context) error {
			if status := natsConn.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats status %s", status)
			}
			return nil
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Students:    handler.NewStudentHandler(students, absences, occurrences),
		Absences:    handler.NewAbsenceHandler(absences, reports),
		Occurrences: handler.NewOccurrenceHandler(occurrences),
		Events:      handler.NewEventsHandler(events, cfg.Events.Heartbeat),
		Metrics:     metricsHandler,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func csvExporter(cfg config.ExportsConfig) *export.CSVExporter {
	delimiter := ','
	if runes := []rune(cfg.CSVDelimiter); len(runes) == 1 {
		delimiter = runes[0]
	}
	return export.NewCSVExporter(export.WithDelimiter(delimiter), export.WithBOM())
}
