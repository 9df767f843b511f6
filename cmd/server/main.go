package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camx/internal/core/services"
	httphandlers "camx/internal/handlers/http"
	"camx/internal/infrastructure/discovery"
	"camx/internal/infrastructure/middleware"
	"camx/internal/infrastructure/monitoring"
	repositories "camx/internal/infrastructure/repositories"
	signalrelay "camx/internal/infrastructure/signal"
	"camx/pkg/config"
	apperrors "camx/pkg/errors"
	"camx/pkg/logger"
	"camx/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths, falling back to defaults when none exist
	cfg, err := config.LoadFirst(
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/camx/config.yaml",
		"config.yaml",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Tracing (no-op unless enabled in config)
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "camx",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	deviceRepo := repoFactory.CreateDeviceRepository()
	historyRepo := repoFactory.CreateHistoryRepository()

	directoryService := services.NewDirectoryService(deviceRepo, log)
	historyService := services.NewHistoryService(historyRepo, log)

	metrics := monitoring.NewPrometheusCollector()

	// Discovery engine and relay reference each other: the engine pushes
	// snapshots through the relay, the relay triggers scans on the engine.
	engine := discovery.NewEngine(discovery.Config{
		Port:          cfg.Discovery.Port,
		SubnetMask:    cfg.Discovery.SubnetMask,
		ServerName:    cfg.Server.Name,
		AdvertisePort: cfg.Server.AdvertisePort,
		DeviceTTL:     cfg.Discovery.DeviceTTL,
		SweepInterval: cfg.Discovery.SweepInterval,
	}, directoryService, metrics, log)

	relayCfg := signalrelay.Config{
		PingInterval:   cfg.Relay.PingInterval,
		PongTimeout:    cfg.Relay.PongTimeout,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		MaxMessageSize: cfg.Relay.MaxMessageSize,
	}
	if cfg.RateLimiting.Enabled {
		relayCfg.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		relayCfg.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	relay := signalrelay.NewRelay(relayCfg, directoryService, engine, metrics, log)
	engine.SetBroadcaster(relay)

	if err := engine.Start(); err != nil {
		log.Fatalw("failed to start discovery engine", "error", err, "port", cfg.Discovery.Port)
	}

	deviceHandler := httphandlers.NewDeviceHandler(directoryService, historyService, engine)
	networkHandler := httphandlers.NewNetworkHandler(engine)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	deviceHandler.SetupRoutes(router)
	networkHandler.SetupRoutes(router)

	router.GET(cfg.Relay.Path, func(c *gin.Context) {
		relay.HandleWebSocket(c.Writer, c.Request)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"clients":   relay.ClientCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.Error(apperrors.NewServiceUnavailableError("storage not ready").WithContext("cause", err.Error()))
			return
		}

		c.JSON(200, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	// Metrics are served on their own port so the API surface stays clean
	var metricsSrv *http.Server
	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
			Handler: mux,
		}
		go func() {
			log.Infow("Prometheus metrics enabled", "port", cfg.Monitoring.PrometheusPort)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting CamX server on %s (discovery on udp/%d)", cfg.Server.Address, cfg.Discovery.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down CamX server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error during metrics server shutdown", "error", err)
		}
	}

	engine.Stop()

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("CamX server stopped")
}
