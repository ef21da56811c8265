package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gameshelf/internal/client/bgg"
	"gameshelf/internal/config"
	cronrunner "gameshelf/internal/cron"
	"gameshelf/internal/db"
	"gameshelf/internal/handler"
	"gameshelf/internal/logger"
	gormrepository "gameshelf/internal/repository/gorm"
	"gameshelf/internal/service"
)

func main() {
	cfgPath := os.Getenv("GS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("GS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	catalogHTTP := &http.Client{Timeout: cfg.Catalog.Timeout}
	catalogClient := bgg.NewClient(catalogHTTP, cfg.Catalog.BaseURL)
	store := gormrepository.New(dbConn.Gorm)
	mirror := &service.MirrorService{
		Repo:       store,
		Catalog:    catalogClient,
		Logger:     logger,
		TTL:        cfg.Mirror.TTL,
		BatchSize:  cfg.Mirror.BatchSize,
		BatchDelay: cfg.Mirror.BatchDelay,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.RequestLogger(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	thingsHandler := &handler.ThingsHandler{
		Service: mirror,
		Repo:    store,
		Logger:  logger,
	}
	thingsHandler.Register(engine)

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runner *cronrunner.Runner
	if cfg.Cron.Enabled {
		runner = cronrunner.New(logger, baseCtx)
		if _, err := runner.Add(cfg.Cron.StaleSweep, func(ctx context.Context) {
			result, err := mirror.SweepStale(ctx, cfg.Cron.SweepLimit)
			if err != nil {
				logger.Warn("stale sweep failed", zap.Error(err))
				return
			}
			logger.Info("stale sweep done",
				zap.Int("refreshed", len(result.Things)),
				zap.Int("failed", len(result.FailedIDs)))
		}); err != nil {
			logger.Fatal("cron add failed", zap.Error(err))
		}
		runner.Start()
	}

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()
	if runner != nil {
		runner.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
