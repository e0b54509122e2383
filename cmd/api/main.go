// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/leadpulse/leadpulse/internal/analytics"
	"github.com/leadpulse/leadpulse/internal/api"
	"github.com/leadpulse/leadpulse/internal/cache"
	"github.com/leadpulse/leadpulse/internal/config"
	"github.com/leadpulse/leadpulse/internal/db"
	"github.com/leadpulse/leadpulse/internal/health"
	"github.com/leadpulse/leadpulse/internal/lead"
	"github.com/leadpulse/leadpulse/internal/middleware"
	"github.com/leadpulse/leadpulse/internal/notify"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("LeadPulse API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	// Initialize logger
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Connect to PostgreSQL
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Prometheus registry shared by every component
	registry := prometheus.NewRegistry()

	httpMetrics := middleware.NewMetrics()
	analyticsMetrics := analytics.NewMetrics()
	notifyMetrics := notify.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, analyticsMetrics, notifyMetrics} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Repositories and cache
	redisCache := cache.NewRedisCache(redisClient)
	metricsRepo := analytics.NewPostgresRepository(conn)
	notifyRepo := notify.NewPostgresRepository(conn)
	leadRepo := lead.NewPostgresRepository(conn)
	userRepo := lead.NewPostgresUserRepository(conn)

	// Metrics pipeline
	analyticsService := analytics.NewService(metricsRepo, redisCache, logger, analyticsMetrics, analytics.Config{
		FlushInterval: cfg.FlushInterval,
		Window:        cfg.MetricsWindow,
		BufferLimit:   cfg.BufferLimit,
		Queues:        cfg.Queues,
	})
	analyticsService.Start()

	// Notification fanout and alerting
	notifyRegistry := notify.NewRegistry(notifyMetrics)
	fanout := notify.NewFanout(notifyRepo, leadRepo, userRepo, notifyRegistry, nil, logger, notifyMetrics)
	evaluator := notify.NewAlertEvaluator(analyticsService, fanout, logger, notifyMetrics, notify.AlertEvaluatorConfig{
		Interval: cfg.AlertInterval,
		Cooldown: cfg.AlertCooldown,
		Thresholds: notify.AlertThresholds{
			MaxResponseTime:   cfg.ResponseTimeThreshold,
			MinConversionRate: cfg.ConversionRateThreshold,
		},
	})
	evaluator.Start()

	// Handlers
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(conn),
		RedisChecker: health.NewRedisChecker(redisClient),
		Reporter:     analyticsService,
	})
	metricsHandlers := api.NewMetricsHandlers(analyticsService)
	eventHandlers := api.NewEventHandlers(analyticsService)
	notificationHandlers := api.NewNotificationHandlers(fanout)
	leadHandlers := api.NewLeadHandlers(leadRepo)
	wsHandlers := api.NewWebSocketHandlers(notifyRegistry, fanout)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", wsHandlers.Subscribe)
	mux.HandleFunc("/api/metrics/dashboard", metricsHandlers.Dashboard)
	mux.HandleFunc("/api/metrics/performance", metricsHandlers.Performance)
	mux.HandleFunc("/api/metrics/health", healthHandlers.MetricsHealth)
	mux.HandleFunc("/api/events/lead-response", eventHandlers.LeadResponse)
	mux.HandleFunc("/api/events/conversion", eventHandlers.Conversion)
	mux.HandleFunc("/api/events/queue-job", eventHandlers.QueueJob)
	mux.HandleFunc("/api/notifications/stats", notificationHandlers.Stats)
	mux.HandleFunc("/api/notifications/read", notificationHandlers.MarkRead)
	mux.HandleFunc("/api/leads/", leadHandlers.GetLead)

	// Placeholder root endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"leadpulse-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> CORS -> Logging -> HTTPMetrics -> APITracking
	var handler http.Handler = mux
	handler = middleware.APITracking(analyticsService)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		MaxAge:           600,
	})(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop background loops; the analytics stop runs one final flush so
	// buffered events are not lost on deploys.
	evaluator.Stop()
	analyticsService.Stop(shutdownCtx)

	logger.Info("server stopped")
}
